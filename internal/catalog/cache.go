package catalog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
	b11errors "github.com/Cornman92/Better11-sub004/pkg/errors"
)

// DefaultExpiration is how long a parsed catalog is served before re-reading.
const DefaultExpiration = 5 * time.Minute

// Stats describes the state of a Cache.
type Stats struct {
	Path       string
	Valid      bool
	Entries    int
	Hits       int
	Misses     int
	Reloads    int
	LoadedAt   time.Time
	ModTime    time.Time
	Expiration time.Duration
	Age        time.Duration
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithExpiration overrides DefaultExpiration. Non-positive values are ignored.
func WithExpiration(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.expiration = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache memoizes the catalog file at path. The catalog is re-parsed when the
// cached copy is older than the expiration or the file has been modified since
// the last load.
type Cache struct {
	path       string
	expiration time.Duration
	now        func() time.Time

	mu       sync.Mutex
	catalog  *Catalog
	loadedAt time.Time
	modTime  time.Time
	hits     int
	misses   int
	reloads  int
}

// NewCache constructs a Cache for the catalog file at path. Nothing is read
// until the first access.
func NewCache(path string, opts ...CacheOption) *Cache {
	c := &Cache{
		path:       path,
		expiration: DefaultExpiration,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the metadata for id from the current catalog.
func (c *Cache) Get(id string) (app.Metadata, error) {
	cat, err := c.current()
	if err != nil {
		return app.Metadata{}, err
	}
	return cat.Get(id)
}

// List returns every entry of the current catalog in document order.
func (c *Cache) List() ([]app.Metadata, error) {
	cat, err := c.current()
	if err != nil {
		return nil, err
	}
	return cat.List()
}

// Catalog returns the current parsed catalog, reloading if needed.
func (c *Cache) Catalog() (*Catalog, error) {
	return c.current()
}

// Invalidate forces the next access to re-parse the file.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = nil
	c.loadedAt = time.Time{}
	c.modTime = time.Time{}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Path:       c.path,
		Valid:      c.catalog != nil,
		Hits:       c.hits,
		Misses:     c.misses,
		Reloads:    c.reloads,
		LoadedAt:   c.loadedAt,
		ModTime:    c.modTime,
		Expiration: c.expiration,
	}
	if c.catalog != nil {
		stats.Entries = c.catalog.Len()
		stats.Age = c.now().Sub(c.loadedAt)
	}
	return stats
}

func (c *Cache) current() (*Catalog, error) {
	info, err := os.Stat(c.path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.catalog = nil
		c.misses++
		return nil, b11errors.NewParseError(c.path, 0, fmt.Errorf("stat catalog: %w", err))
	}

	now := c.now()
	if c.catalog != nil && now.Sub(c.loadedAt) <= c.expiration && !info.ModTime().After(c.modTime) {
		c.hits++
		return c.catalog, nil
	}

	c.misses++
	cat, err := Load(c.path)
	if err != nil {
		// A failed reload never serves the previous copy.
		c.catalog = nil
		return nil, err
	}
	c.catalog = cat
	c.loadedAt = now
	c.modTime = info.ModTime()
	c.reloads++
	return cat, nil
}

var _ ports.CatalogReader = (*Cache)(nil)
