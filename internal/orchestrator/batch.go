package orchestrator

import (
	"context"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

// BatchInstall installs ids in order. The first failure stops the batch
// unless continueOnError is set. Only invalid ids are returned as an error;
// per-item failures are recorded in the result.
func (o *Orchestrator) BatchInstall(ctx context.Context, ids []string, continueOnError bool) (*app.BatchResult, error) {
	return o.batch(ctx, "install", ids, continueOnError, func(ctx context.Context, id string) (app.ItemResult, error) {
		outcome, err := o.Install(ctx, id)
		if err != nil {
			return app.ItemResult{}, err
		}
		item := app.ItemResult{Version: outcome.Status.Version, Status: app.ItemInstalled}
		if outcome.AlreadyInstalled() {
			item.Status = app.ItemAlreadyInstalled
		}
		return item, nil
	})
}

// BatchUninstall uninstalls ids in order with the same stopping rule as
// BatchInstall.
func (o *Orchestrator) BatchUninstall(ctx context.Context, ids []string, continueOnError bool) (*app.BatchResult, error) {
	return o.batch(ctx, "uninstall", ids, continueOnError, func(ctx context.Context, id string) (app.ItemResult, error) {
		status, _ := o.state.Get(id)
		if _, err := o.Uninstall(ctx, id); err != nil {
			return app.ItemResult{}, err
		}
		return app.ItemResult{Version: status.Version, Status: app.ItemUninstalled}, nil
	})
}

type batchStep func(ctx context.Context, id string) (app.ItemResult, error)

func (o *Orchestrator) batch(ctx context.Context, operation string, ids []string, continueOnError bool, step batchStep) (*app.BatchResult, error) {
	if err := app.ValidateIDs(ids); err != nil {
		return nil, err
	}

	log := o.logger.With("operation", operation)
	result := app.NewBatchResult(operation, ids, o.now())
	for _, id := range ids {
		started := o.now()
		var (
			item app.ItemResult
			err  error
		)
		if cerr := ctx.Err(); cerr != nil {
			err = app.NewError(app.ErrCodeCancelled, "batch cancelled", cerr, nil)
		} else {
			item, err = step(ctx, id)
		}
		item.AppID = id
		item.StartedAt = started
		item.Duration = o.now().Sub(started)
		if err != nil {
			item.Success = false
			item.Status = app.ItemFailed
			item.Error = err.Error()
			result.Add(item)
			log.Warn(ctx, "batch item failed", "app_id", id, "error", err.Error())
			if !continueOnError || app.CodeOf(err) == app.ErrCodeCancelled {
				break
			}
			continue
		}
		item.Success = true
		result.Add(item)
	}
	result.Finish(o.now())

	log.Info(ctx, "batch complete",
		"requested", len(ids),
		"succeeded", result.SucceededCount,
		"failed", result.FailedCount,
		"duration_ms", result.TotalDuration.Milliseconds(),
	)
	return result, nil
}
