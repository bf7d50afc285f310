package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
)

// unknownSizeStep throttles byte progress when the total size is unknown.
const unknownSizeStep = 1 << 20

// installRun holds the traversal state of one Install call.
type installRun struct {
	o        *Orchestrator
	visiting map[string]bool
	path     []string
	done     map[string]*app.InstallOutcome
}

// Install installs target after its dependencies, depth first. A cycle, a
// missing dependency or any failing phase aborts the whole call; dependencies
// installed before the failure stay installed.
func (o *Orchestrator) Install(ctx context.Context, target string) (*app.InstallOutcome, error) {
	if err := app.ValidateID(target); err != nil {
		return nil, err
	}
	run := &installRun{
		o:        o,
		visiting: make(map[string]bool),
		done:     make(map[string]*app.InstallOutcome),
	}
	return run.install(ctx, target)
}

func (r *installRun) install(ctx context.Context, id string) (*app.InstallOutcome, error) {
	if r.visiting[id] {
		return nil, app.NewCycleError(id, append(append([]string(nil), r.path...), id))
	}
	if outcome, ok := r.done[id]; ok {
		return outcome, nil
	}

	r.visiting[id] = true
	r.path = append(r.path, id)
	defer func() {
		delete(r.visiting, id)
		r.path = r.path[:len(r.path)-1]
	}()

	o := r.o
	meta, err := o.catalog.Get(id)
	if err != nil {
		return nil, err
	}

	if status, ok := o.state.Get(id); ok && status.Satisfies(meta) {
		o.emitStage(ctx, id, app.StageCompleted, app.PercentCompleted, "already installed")
		o.metrics.IncInstall(id, app.ItemAlreadyInstalled)
		o.logger.Info(ctx, "application already installed", "app_id", id, "version", status.Version)
		outcome := &app.InstallOutcome{
			Kind:   app.OutcomeAlreadyInstalled,
			Status: status,
			Result: app.ExecutionResult{ExitCode: 0},
		}
		r.done[id] = outcome
		return outcome, nil
	}

	started := time.Now()
	o.emitStage(ctx, id, app.StageInitializing, app.PercentInitializing, "starting installation")
	o.emitStage(ctx, id, app.StageResolvingDependencies, app.PercentResolvingDependencies, "resolving dependencies")

	deps := make([]app.Status, 0, len(meta.Dependencies))
	for _, dep := range meta.Dependencies {
		depOutcome, err := r.install(ctx, dep)
		if err != nil {
			// The failed dependency already counted itself.
			o.emitFailure(ctx, id, app.PercentResolvingDependencies, err)
			o.logger.Warn(ctx, "dependency failed", "app_id", id, "dependency", dep, "error", err.Error())
			return nil, err
		}
		deps = append(deps, depOutcome.Status)
	}

	outcome, err := o.runPipeline(ctx, meta)
	if err != nil {
		return nil, err
	}
	outcome.Dependencies = deps
	o.metrics.ObserveInstallDuration(id, time.Since(started).Seconds())
	r.done[id] = outcome
	return outcome, nil
}

// runPipeline downloads, verifies, executes and records one application whose
// dependencies are already satisfied.
func (o *Orchestrator) runPipeline(ctx context.Context, meta app.Metadata) (*app.InstallOutcome, error) {
	id := meta.ID
	log := o.logger.With("app_id", id, "version", meta.Version)

	current := app.PercentDownloading
	o.emitStage(ctx, id, app.StageDownloading, current, "downloading installer")
	path, hit, err := o.fetchArtifact(ctx, meta, o.fetchOptions(ctx, id, &current))
	if err != nil {
		o.fail(ctx, id, current, err)
		return nil, err
	}

	o.emitStage(ctx, id, app.StageVerifying, app.PercentVerifying, "verifying installer")
	if !hit {
		if err := o.verifier.Verify(meta, path); err != nil {
			o.discard(ctx, id, path)
			o.fail(ctx, id, app.PercentVerifying, err)
			return nil, err
		}
	}

	o.emitStage(ctx, id, app.StageInstalling, app.PercentInstalling, "running installer")
	result, err := o.runner.Install(ctx, meta, path)
	if err != nil {
		o.fail(ctx, id, app.PercentInstalling, err)
		return nil, err
	}

	o.emitStage(ctx, id, app.StageUpdatingState, app.PercentUpdatingState, "recording installation")
	status := app.Status{
		AppID:                 id,
		Version:               meta.Version,
		InstallerPath:         path,
		Installed:             true,
		DependenciesInstalled: append([]string{}, meta.Dependencies...),
	}
	if o.readOnlyState {
		log.Info(ctx, "read-only state, installation not recorded", "command", result.CommandLine())
	} else {
		status, err = o.state.MarkInstalled(id, meta.Version, path, meta.Dependencies)
		if err != nil {
			o.fail(ctx, id, app.PercentUpdatingState, err)
			return nil, err
		}
	}

	o.emitStage(ctx, id, app.StageCompleted, app.PercentCompleted, "installation complete")
	o.metrics.IncInstall(id, app.ItemInstalled)
	log.Info(ctx, "application installed",
		"path", path,
		"cache_hit", hit,
		"exit_code", result.ExitCode,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return &app.InstallOutcome{
		Kind:     app.OutcomeInstalled,
		Status:   status,
		Result:   result,
		CacheHit: hit,
	}, nil
}

// DownloadWithCache returns a verified artifact for id. An artifact already at
// the deterministic destination that verifies is a cache hit and no fetch
// happens; otherwise it is deleted and fetched exactly once.
func (o *Orchestrator) DownloadWithCache(ctx context.Context, id string) (string, bool, error) {
	if err := app.ValidateID(id); err != nil {
		return "", false, err
	}
	meta, err := o.catalog.Get(id)
	if err != nil {
		return "", false, err
	}

	path, hit, err := o.fetchArtifact(ctx, meta, ports.FetchOptions{OnRetry: o.retryObserver(ctx, id, nil)})
	if err != nil {
		return "", false, err
	}
	if !hit {
		if err := o.verifier.Verify(meta, path); err != nil {
			o.discard(ctx, id, path)
			return "", false, err
		}
	}
	return path, hit, nil
}

// fetchArtifact reuses a destination that verifies, otherwise deletes it and
// fetches once. A freshly fetched artifact is returned unverified.
func (o *Orchestrator) fetchArtifact(ctx context.Context, meta app.Metadata, opts ports.FetchOptions) (string, bool, error) {
	dest := o.downloader.Destination(meta)
	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
		verr := o.verifier.Verify(meta, dest)
		if verr == nil {
			o.metrics.IncDownload(true)
			o.logger.Debug(ctx, "cached installer verified", "app_id", meta.ID, "path", dest)
			return dest, true, nil
		}
		o.logger.Warn(ctx, "cached installer failed verification", "app_id", meta.ID, "path", dest, "error", verr.Error())
		o.discard(ctx, meta.ID, dest)
	}

	path, err := o.downloader.Fetch(ctx, meta, dest, opts)
	if err != nil {
		return "", false, err
	}
	o.metrics.IncDownload(false)
	return path, false, nil
}

// fetchOptions maps byte progress into the downloading band and never lets
// the percent go backwards.
func (o *Orchestrator) fetchOptions(ctx context.Context, id string, current *int) ports.FetchOptions {
	var lastUnknown int64
	band := app.PercentVerifying - app.PercentDownloading - 1

	return ports.FetchOptions{
		Progress: func(downloaded, total int64) {
			if total <= 0 {
				if downloaded-lastUnknown < unknownSizeStep {
					return
				}
				lastUnknown = downloaded
				o.emit(ctx, app.Progress{
					AppID:           id,
					Stage:           app.StageDownloading,
					Percent:         *current,
					Message:         "downloading installer",
					BytesDownloaded: downloaded,
				})
				return
			}
			if downloaded > total {
				downloaded = total
			}
			percent := app.PercentDownloading + int(int64(band)*downloaded/total)
			if percent <= *current && downloaded < total {
				return
			}
			if percent > *current {
				*current = percent
			}
			o.emit(ctx, app.Progress{
				AppID:           id,
				Stage:           app.StageDownloading,
				Percent:         *current,
				Message:         "downloading installer",
				BytesDownloaded: downloaded,
				BytesTotal:      total,
			})
		},
		OnRetry: o.retryObserver(ctx, id, current),
	}
}

func (o *Orchestrator) retryObserver(ctx context.Context, id string, percent *int) ports.RetryObserver {
	return func(attempt int, delay time.Duration, err error) {
		o.metrics.IncRetry()
		o.logger.Warn(ctx, "download failed, retrying",
			"app_id", id,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)
		if percent == nil {
			return
		}
		o.emit(ctx, app.Progress{
			AppID:   id,
			Stage:   app.StageDownloading,
			Percent: *percent,
			Message: fmt.Sprintf("retrying download (attempt %d) in %s", attempt+1, delay),
		})
	}
}

func (o *Orchestrator) fail(ctx context.Context, id string, percent int, err error) {
	o.emitFailure(ctx, id, percent, err)
	o.metrics.IncInstall(id, app.ItemFailed)
	o.logger.Error(ctx, "installation failed", "app_id", id, "code", string(app.CodeOf(err)), "error", err.Error())
}

func (o *Orchestrator) discard(ctx context.Context, id, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn(ctx, "failed to remove installer", "app_id", id, "path", path, "error", err.Error())
	}
}
