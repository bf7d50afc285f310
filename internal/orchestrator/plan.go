package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// planner holds the traversal state of one Plan call.
type planner struct {
	o        *Orchestrator
	states   map[string]visitState
	blocked  map[string]bool
	notes    map[string][]string
	path     []string
	steps    []app.PlanStep
	warnings []string
}

// Plan computes what installing target would do without mutating anything.
// Cycles and missing catalog entries are reported as blocked steps and
// warnings rather than errors; only an invalid target id or a catalog read
// failure is returned as an error.
func (o *Orchestrator) Plan(ctx context.Context, target string) (*app.InstallPlan, error) {
	if err := app.ValidateID(target); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, app.NewError(app.ErrCodeCancelled, "plan cancelled", err, nil)
	}

	p := &planner{
		o:       o,
		states:  make(map[string]visitState),
		blocked: make(map[string]bool),
		notes:   make(map[string][]string),
	}
	if err := p.visit(target); err != nil {
		return nil, err
	}

	plan := &app.InstallPlan{Target: target, Steps: p.steps, Warnings: p.warnings}
	o.logger.Debug(ctx, "plan computed",
		"app_id", target,
		"steps", len(plan.Steps),
		"install", len(plan.ToInstall()),
		"blocked", len(plan.Blocked()),
	)
	return plan, nil
}

func (p *planner) visit(id string) error {
	switch p.states[id] {
	case visited:
		return nil
	case visiting:
		p.markCycle(id)
		return nil
	}

	p.states[id] = visiting
	p.path = append(p.path, id)
	defer func() {
		p.path = p.path[:len(p.path)-1]
		p.states[id] = visited
	}()

	meta, err := p.o.catalog.Get(id)
	if err != nil {
		if !errors.Is(err, app.ErrNotFound) {
			return err
		}
		p.block(id, app.NoteMissingFromCatalog)
		p.steps = append(p.steps, app.PlanStep{
			AppID:  id,
			Action: app.ActionBlocked,
			Notes:  append([]string(nil), p.notes[id]...),
		})
		return nil
	}

	for _, dep := range meta.Dependencies {
		if err := p.visit(dep); err != nil {
			return err
		}
		if p.blocked[dep] {
			p.block(id, app.DependencyBlockedNote(dep))
		}
	}

	step := app.PlanStep{
		AppID:        id,
		Name:         meta.Name,
		Version:      meta.Version,
		Dependencies: append([]string(nil), meta.Dependencies...),
		Notes:        append([]string(nil), p.notes[id]...),
	}
	if status, ok := p.o.state.Get(id); ok {
		step.Satisfied = status.Satisfies(meta)
	}
	switch {
	case p.blocked[id]:
		step.Action = app.ActionBlocked
	case step.Satisfied:
		step.Action = app.ActionSkip
	default:
		step.Action = app.ActionInstall
	}
	p.steps = append(p.steps, step)
	return nil
}

// markCycle blocks every node on the current path from the first occurrence
// of id onward and records the cycle as a warning.
func (p *planner) markCycle(id string) {
	start := 0
	for i, node := range p.path {
		if node == id {
			start = i
			break
		}
	}
	cycle := append(append([]string(nil), p.path[start:]...), id)
	for _, node := range p.path[start:] {
		p.block(node, app.NoteCycleDetected)
	}
	p.warn(app.NoteCycleDetected + ": " + strings.Join(cycle, " -> "))
}

func (p *planner) block(id, note string) {
	p.blocked[id] = true
	for _, existing := range p.notes[id] {
		if existing == note {
			return
		}
	}
	p.notes[id] = append(p.notes[id], note)
}

func (p *planner) warn(message string) {
	for _, existing := range p.warnings {
		if existing == message {
			return
		}
	}
	p.warnings = append(p.warnings, message)
}
