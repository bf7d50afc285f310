// Package state persists the installation status of each application as a
// JSON document keyed by application id.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
	b11errors "github.com/Cornman92/Better11-sub004/pkg/errors"
)

// Store is a file-backed ports.StateStore. The whole document is rewritten
// after every mutation.
type Store struct {
	path string
	now  func() time.Time

	mu       sync.RWMutex
	statuses map[string]app.Status
}

// Option customises a Store.
type Option func(*Store)

// WithClock injects the time source used for install timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open loads the state file at path. A missing file is an empty store.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:     path,
		now:      time.Now,
		statuses: make(map[string]app.Status),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var doc map[string]app.Status
	if err := json.Unmarshal(data, &doc); err != nil {
		return b11errors.NewParseError(s.path, 0, fmt.Errorf("parse state file: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, status := range doc {
		status.AppID = id
		s.statuses[id] = status
	}
	return nil
}

// save writes the document through a temporary file. Callers hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return app.NewError(app.ErrCodeState, "write state file", err, map[string]interface{}{"path": tmpPath})
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return app.NewError(app.ErrCodeState, "replace state file", err, map[string]interface{}{"path": s.path})
	}
	return nil
}

// Get returns the status recorded for id.
func (s *Store) Get(id string) (app.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[id]
	if !ok {
		return app.Status{}, false
	}
	return cloneStatus(status), true
}

// List returns every recorded status sorted by id.
func (s *Store) List() []app.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]app.Status, 0, len(s.statuses))
	for _, status := range s.statuses {
		out = append(out, cloneStatus(status))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out
}

// MarkInstalled records id as installed at version and persists the store.
func (s *Store) MarkInstalled(id, version, installerPath string, dependencies []string) (app.Status, error) {
	installedAt := s.now().UTC()
	status := app.Status{
		AppID:                 id,
		Version:               version,
		InstallerPath:         installerPath,
		Installed:             true,
		DependenciesInstalled: append([]string{}, dependencies...),
		InstalledAt:           &installedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.statuses[id]
	s.statuses[id] = status
	if err := s.save(); err != nil {
		s.restore(id, previous, existed)
		return app.Status{}, err
	}
	return cloneStatus(status), nil
}

// MarkUninstalled flips the installed flag of id, keeping the other fields.
func (s *Store) MarkUninstalled(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.statuses[id]
	if !ok {
		return app.NewError(app.ErrCodeNotFound, fmt.Sprintf("no installation state for %q", id), nil, map[string]interface{}{"app_id": id})
	}
	next := previous
	next.Installed = false
	s.statuses[id] = next
	if err := s.save(); err != nil {
		s.restore(id, previous, true)
		return err
	}
	return nil
}

func (s *Store) restore(id string, previous app.Status, existed bool) {
	if existed {
		s.statuses[id] = previous
		return
	}
	delete(s.statuses, id)
}

func cloneStatus(s app.Status) app.Status {
	s.DependenciesInstalled = append([]string(nil), s.DependenciesInstalled...)
	if s.InstalledAt != nil {
		at := *s.InstalledAt
		s.InstalledAt = &at
	}
	return s
}

var _ ports.StateStore = (*Store)(nil)
