package ports

import (
	"context"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

// ProgressSink receives progress records while an operation runs. Records are
// informational; sinks must not block for long and must be safe for concurrent
// use.
type ProgressSink interface {
	Report(ctx context.Context, p app.Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ctx context.Context, p app.Progress)

// Report implements ProgressSink.
func (f ProgressFunc) Report(ctx context.Context, p app.Progress) {
	if f != nil {
		f(ctx, p)
	}
}

// Metrics records quantitative signals about installer activity. Standard
// metric names:
//   - better11_installs_total{app="...", status="installed|already-installed|failed|uninstalled"}
//   - better11_downloads_total{cache="hit|miss"}
//   - better11_download_retries_total
//   - better11_install_duration_seconds{app="..."}
type Metrics interface {
	IncInstall(appID, status string)
	IncDownload(cacheHit bool)
	IncRetry()
	ObserveInstallDuration(appID string, seconds float64)
}
