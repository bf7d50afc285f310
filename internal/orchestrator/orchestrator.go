// Package orchestrator resolves application dependency graphs and drives the
// download, verify, install and record pipeline for each node.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/logger"
	"github.com/Cornman92/Better11-sub004/internal/metrics"
	"github.com/Cornman92/Better11-sub004/internal/ports"
)

// Orchestrator coordinates the catalog, state store, downloader, verifier and
// installer runner. Operations on one Orchestrator are sequential; each call
// keeps its own traversal state.
type Orchestrator struct {
	catalog    ports.CatalogReader
	state      ports.StateStore
	downloader ports.Downloader
	verifier   ports.Verifier
	runner     ports.InstallerRunner

	progress      ports.ProgressSink
	metrics       ports.Metrics
	logger        ports.Logger
	now           func() time.Time
	readOnlyState bool
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithProgress sets the sink receiving progress records.
func WithProgress(sink ports.ProgressSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.progress = sink
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m ports.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReadOnlyState keeps every operation from writing the state store.
// Installers still run through the runner; their outcomes are reported but
// not recorded, so a later call plans and installs the same applications
// again.
func WithReadOnlyState(readOnly bool) Option {
	return func(o *Orchestrator) { o.readOnlyState = readOnly }
}

// WithClock injects the time source used for batch timing.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs an Orchestrator over its collaborators.
func New(catalog ports.CatalogReader, state ports.StateStore, downloader ports.Downloader, verifier ports.Verifier, runner ports.InstallerRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:    catalog,
		state:      state,
		downloader: downloader,
		verifier:   verifier,
		runner:     runner,
		progress:   ports.ProgressFunc(nil),
		metrics:    metrics.Noop{},
		logger:     logger.NewNoOp(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o
}

// Status returns the recorded state of id.
func (o *Orchestrator) Status(id string) (app.Status, bool) {
	return o.state.Get(id)
}

// Installed returns the applications currently marked installed, sorted by id.
func (o *Orchestrator) Installed() []app.Status {
	var out []app.Status
	for _, status := range o.state.List() {
		if status.Installed {
			out = append(out, status)
		}
	}
	return out
}

// CheckUpdates lists installed applications whose catalog version is newer
// than the installed one. Installed ids no longer in the catalog are ignored.
func (o *Orchestrator) CheckUpdates(ctx context.Context) ([]app.Update, error) {
	var updates []app.Update
	for _, status := range o.Installed() {
		if err := ctx.Err(); err != nil {
			return nil, app.NewError(app.ErrCodeCancelled, "update check cancelled", err, nil)
		}
		meta, err := o.catalog.Get(status.AppID)
		if err != nil {
			if errors.Is(err, app.ErrNotFound) {
				o.logger.Debug(ctx, "installed application not in catalog", "app_id", status.AppID)
				continue
			}
			return nil, err
		}
		if app.IsNewer(meta.Version, status.Version) {
			updates = append(updates, app.Update{
				AppID:            meta.ID,
				Name:             meta.Name,
				InstalledVersion: status.Version,
				CatalogVersion:   meta.Version,
			})
		}
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].AppID < updates[j].AppID })
	o.logger.Info(ctx, "update check complete", "installed", len(o.Installed()), "updates", len(updates))
	return updates, nil
}

func (o *Orchestrator) emit(ctx context.Context, record app.Progress) {
	record.Done = record.Terminal()
	o.progress.Report(ctx, record)
}

func (o *Orchestrator) emitStage(ctx context.Context, id string, stage app.Stage, percent int, message string) {
	o.emit(ctx, app.Progress{AppID: id, Stage: stage, Percent: percent, Message: message})
}

func (o *Orchestrator) emitFailure(ctx context.Context, id string, percent int, err error) {
	o.emit(ctx, app.Progress{
		AppID:   id,
		Stage:   app.StageFailed,
		Percent: percent,
		Message: "operation failed",
		Error:   err.Error(),
	})
}
