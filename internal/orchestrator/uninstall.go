package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

// Uninstall removes id. It refuses while another installed catalog entry
// depends on id, and when id is not installed.
func (o *Orchestrator) Uninstall(ctx context.Context, id string) (*app.ExecutionResult, error) {
	if err := app.ValidateID(id); err != nil {
		return nil, err
	}
	meta, err := o.catalog.Get(id)
	if err != nil {
		return nil, err
	}

	blockers, err := o.installedDependents(id)
	if err != nil {
		return nil, err
	}
	if len(blockers) > 0 {
		return nil, app.NewDependencyConflictError(id, blockers)
	}

	status, ok := o.state.Get(id)
	if !ok || !status.Installed {
		return nil, app.NewError(app.ErrCodeState, fmt.Sprintf("application %q is not installed", id), nil,
			map[string]interface{}{"app_id": id})
	}

	log := o.logger.With("app_id", id, "version", status.Version)
	o.emitStage(ctx, id, app.StageUninstalling, app.PercentInitializing, "running uninstaller")
	result, err := o.runner.Uninstall(ctx, meta, status.InstallerPath)
	if err != nil {
		o.emitFailure(ctx, id, app.PercentInitializing, err)
		o.metrics.IncInstall(id, app.ItemFailed)
		log.Error(ctx, "uninstall failed", "code", string(app.CodeOf(err)), "error", err.Error())
		return &result, err
	}

	o.emitStage(ctx, id, app.StageUpdatingState, app.PercentUpdatingState, "recording uninstall")
	if o.readOnlyState {
		log.Info(ctx, "read-only state, uninstall not recorded", "command", result.CommandLine())
	} else if err := o.state.MarkUninstalled(id); err != nil {
		o.emitFailure(ctx, id, app.PercentUpdatingState, err)
		return &result, err
	}

	o.emitStage(ctx, id, app.StageCompleted, app.PercentCompleted, "uninstall complete")
	o.metrics.IncInstall(id, app.ItemUninstalled)
	log.Info(ctx, "application uninstalled", "exit_code", result.ExitCode)
	return &result, nil
}

// installedDependents lists the installed catalog entries that declare id as a
// direct dependency, sorted by id.
func (o *Orchestrator) installedDependents(id string) ([]string, error) {
	entries, err := o.catalog.List()
	if err != nil {
		return nil, err
	}
	var blockers []string
	for _, entry := range entries {
		if entry.ID == id || !entry.DependsOn(id) {
			continue
		}
		if status, ok := o.state.Get(entry.ID); ok && status.Installed {
			blockers = append(blockers, entry.ID)
		}
	}
	sort.Strings(blockers)
	return blockers, nil
}
