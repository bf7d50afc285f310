package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
	"github.com/Cornman92/Better11-sub004/internal/progress"
	"github.com/Cornman92/Better11-sub004/internal/state"
	"github.com/Cornman92/Better11-sub004/internal/verify"
)

func payload(id, version string) []byte {
	return []byte("installer payload for " + id + " " + version)
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// entry builds catalog metadata whose hash matches payload(id, version).
func entry(id, version string, deps ...string) app.Metadata {
	return app.Metadata{
		ID:            id,
		Name:          id,
		Version:       version,
		URI:           "https://downloads.example.com/" + id + ".msi",
		SHA256:        digest(payload(id, version)),
		Kind:          app.KindMSI,
		VettedDomains: []string{"downloads.example.com"},
		Dependencies:  deps,
	}
}

type fakeCatalog struct {
	entries map[string]app.Metadata
	listErr error
}

func newFakeCatalog(entries ...app.Metadata) *fakeCatalog {
	c := &fakeCatalog{entries: make(map[string]app.Metadata)}
	for _, e := range entries {
		c.entries[e.ID] = e
	}
	return c
}

func (c *fakeCatalog) Get(id string) (app.Metadata, error) {
	meta, ok := c.entries[id]
	if !ok {
		return app.Metadata{}, app.NewNotFoundError(id)
	}
	return meta, nil
}

func (c *fakeCatalog) List() ([]app.Metadata, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	out := make([]app.Metadata, 0, len(c.entries))
	for _, meta := range c.entries {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeDownloader writes payload(id, version) to the destination and counts
// fetches per id.
type fakeDownloader struct {
	mu      sync.Mutex
	dir     string
	fetches map[string]int
	corrupt map[string]bool
	errs    map[string]error
	retries map[string]error
}

func newFakeDownloader(dir string) *fakeDownloader {
	return &fakeDownloader{
		dir:     dir,
		fetches: make(map[string]int),
		corrupt: make(map[string]bool),
		errs:    make(map[string]error),
		retries: make(map[string]error),
	}
}

func (d *fakeDownloader) Destination(meta app.Metadata) string {
	return filepath.Join(d.dir, meta.ArtifactName())
}

func (d *fakeDownloader) Fetch(_ context.Context, meta app.Metadata, dest string, opts ports.FetchOptions) (string, error) {
	d.mu.Lock()
	d.fetches[meta.ID]++
	err := d.errs[meta.ID]
	retryErr := d.retries[meta.ID]
	corrupt := d.corrupt[meta.ID]
	d.mu.Unlock()

	if retryErr != nil && opts.OnRetry != nil {
		opts.OnRetry(1, 0, retryErr)
	}
	if err != nil {
		return "", err
	}

	data := payload(meta.ID, meta.Version)
	if corrupt {
		data = []byte("tampered")
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", err
	}
	if opts.Progress != nil {
		total := int64(len(data))
		opts.Progress(total/2, total)
		opts.Progress(total, total)
	}
	return dest, nil
}

func (d *fakeDownloader) count(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches[id]
}

// countingVerifier delegates to the real verifier and counts calls.
type countingVerifier struct {
	mu    sync.Mutex
	inner *verify.Verifier
	calls int
}

func (v *countingVerifier) Verify(meta app.Metadata, path string) error {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	return v.inner.Verify(meta, path)
}

type fakeRunner struct {
	mu         sync.Mutex
	dryRun     bool
	installs   []string
	uninstalls []string
	paths      map[string]string
	fail       map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{paths: make(map[string]string), fail: make(map[string]error)}
}

func (r *fakeRunner) Install(_ context.Context, meta app.Metadata, installerPath string) (app.ExecutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installs = append(r.installs, meta.ID)
	r.paths[meta.ID] = installerPath
	result := app.ExecutionResult{Command: []string{"msiexec", "/i", installerPath, "/qn"}, DryRun: r.dryRun}
	if err := r.fail[meta.ID]; err != nil {
		result.ExitCode = 1603
		return result, err
	}
	return result, nil
}

func (r *fakeRunner) Uninstall(_ context.Context, meta app.Metadata, installerPath string) (app.ExecutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uninstalls = append(r.uninstalls, meta.ID)
	r.paths[meta.ID] = installerPath
	result := app.ExecutionResult{Command: []string{"msiexec", "/x", installerPath, "/qn"}, DryRun: r.dryRun}
	if err := r.fail[meta.ID]; err != nil {
		result.ExitCode = 1605
		return result, err
	}
	return result, nil
}

func (r *fakeRunner) installed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.installs...)
}

type fakeMetrics struct {
	mu        sync.Mutex
	installs  map[string]int
	hits      int
	misses    int
	retries   int
	durations map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{installs: make(map[string]int), durations: make(map[string]int)}
}

func (m *fakeMetrics) IncInstall(appID, status string) {
	m.mu.Lock()
	m.installs[appID+"/"+status]++
	m.mu.Unlock()
}

func (m *fakeMetrics) IncDownload(cacheHit bool) {
	m.mu.Lock()
	if cacheHit {
		m.hits++
	} else {
		m.misses++
	}
	m.mu.Unlock()
}

func (m *fakeMetrics) IncRetry() {
	m.mu.Lock()
	m.retries++
	m.mu.Unlock()
}

func (m *fakeMetrics) ObserveInstallDuration(appID string, _ float64) {
	m.mu.Lock()
	m.durations[appID]++
	m.mu.Unlock()
}

type fixture struct {
	dir        string
	catalog    *fakeCatalog
	state      *state.Store
	downloader *fakeDownloader
	verifier   *countingVerifier
	runner     *fakeRunner
	metrics    *fakeMetrics
	recorder   *progress.Recorder
	orch       *Orchestrator
}

func newFixture(t *testing.T, entries ...app.Metadata) *fixture {
	t.Helper()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))

	store, err := state.Open(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	f := &fixture{
		dir:        dir,
		catalog:    newFakeCatalog(entries...),
		state:      store,
		downloader: newFakeDownloader(cacheDir),
		verifier:   &countingVerifier{inner: verify.New()},
		runner:     newFakeRunner(),
		metrics:    newFakeMetrics(),
		recorder:   &progress.Recorder{},
	}
	f.orch = New(f.catalog, f.state, f.downloader, f.verifier, f.runner,
		WithProgress(f.recorder),
		WithMetrics(f.metrics),
	)
	return f
}

// markInstalled records id as installed without going through the pipeline.
func (f *fixture) markInstalled(t *testing.T, id, version string, deps ...string) {
	t.Helper()
	_, err := f.state.MarkInstalled(id, version, filepath.Join(f.dir, id+".msi"), deps)
	require.NoError(t, err)
}

// stages returns the stage and percent sequence reported for id.
func (f *fixture) stages(id string) []app.Progress {
	var out []app.Progress
	for _, record := range f.recorder.Records() {
		if record.AppID == id && record.BytesDownloaded == 0 && record.BytesTotal == 0 {
			out = append(out, record)
		}
	}
	return out
}
