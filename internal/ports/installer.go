package ports

import (
	"context"
	"time"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

// CatalogReader is the read side of the vetted application catalog. Both the
// parsed catalog and the expiring cache satisfy it.
//
// Error mapping expectations:
//   - unknown id → app.ErrCodeNotFound
//   - malformed catalog document → pkg/errors.ValidationError or ParseError
type CatalogReader interface {
	Get(id string) (app.Metadata, error)
	List() ([]app.Metadata, error)
}

// FetchOptions tunes a single download.
type FetchOptions struct {
	// Progress receives cumulative byte counts. Total is zero when the size is
	// unknown.
	Progress func(downloaded, total int64)
	// OnRetry is invoked before each retry sleep.
	OnRetry RetryObserver
}

// RetryObserver is notified of every retry attempt with the delay that will be
// slept and the error that caused it.
type RetryObserver func(attempt int, delay time.Duration, err error)

// Downloader resolves a catalog URI to a local artifact. Implementations must
// refuse hosts outside the entry's vetted domains before touching the network
// and respect ctx between chunks.
type Downloader interface {
	Destination(meta app.Metadata) string
	Fetch(ctx context.Context, meta app.Metadata, dest string, opts FetchOptions) (string, error)
}

// Verifier checks artifact integrity against the catalog declaration.
type Verifier interface {
	Verify(meta app.Metadata, path string) error
}

// InstallerRunner executes installers and uninstallers for an installer kind.
// Once a process has started it runs to completion.
type InstallerRunner interface {
	Install(ctx context.Context, meta app.Metadata, installerPath string) (app.ExecutionResult, error)
	Uninstall(ctx context.Context, meta app.Metadata, installerPath string) (app.ExecutionResult, error)
}

// StateStore persists the installation status of each application. Every
// mutation is durable before it returns.
type StateStore interface {
	Get(id string) (app.Status, bool)
	List() []app.Status
	MarkInstalled(id, version, installerPath string, dependencies []string) (app.Status, error)
	MarkUninstalled(id string) error
}
