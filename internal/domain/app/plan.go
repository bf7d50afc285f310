package app

import (
	"fmt"
	"strings"
)

// PlanAction is the intended action for one node of an install plan.
type PlanAction string

const (
	ActionSkip    PlanAction = "skip"
	ActionInstall PlanAction = "install"
	ActionBlocked PlanAction = "blocked"
)

// Block reasons recorded in plan step notes.
const (
	NoteCycleDetected      = "cycle detected"
	NoteMissingFromCatalog = "missing from catalog"
)

// PlanStep is the planned outcome for one application reachable from the
// plan target.
type PlanStep struct {
	AppID        string
	Name         string
	Version      string
	Dependencies []string
	Satisfied    bool
	Action       PlanAction
	Notes        []string
}

// InstallPlan is the non-mutating result of planning an install. Steps are in
// dependency-before-dependent order.
type InstallPlan struct {
	Target   string
	Steps    []PlanStep
	Warnings []string
}

// Step returns the step for id.
func (p *InstallPlan) Step(id string) (PlanStep, bool) {
	if p == nil {
		return PlanStep{}, false
	}
	for _, step := range p.Steps {
		if step.AppID == id {
			return step, true
		}
	}
	return PlanStep{}, false
}

// Blocked returns the steps that cannot be installed.
func (p *InstallPlan) Blocked() []PlanStep {
	return p.filter(ActionBlocked)
}

// ToInstall returns the steps that would be installed.
func (p *InstallPlan) ToInstall() []PlanStep {
	return p.filter(ActionInstall)
}

// Installable reports whether nothing in the plan is blocked.
func (p *InstallPlan) Installable() bool {
	return len(p.Blocked()) == 0
}

func (p *InstallPlan) filter(action PlanAction) []PlanStep {
	if p == nil {
		return nil
	}
	var out []PlanStep
	for _, step := range p.Steps {
		if step.Action == action {
			out = append(out, step)
		}
	}
	return out
}

// String renders a human readable summary of the plan.
func (p *InstallPlan) String() string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	for i, step := range p.Steps {
		fmt.Fprintf(&b, "%d. %-8s %s", i+1, step.Action, step.AppID)
		if step.Version != "" {
			fmt.Fprintf(&b, " %s", step.Version)
		}
		if len(step.Notes) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(step.Notes, "; "))
		}
		b.WriteString("\n")
	}
	for _, warning := range p.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", warning)
	}
	return b.String()
}

// DependencyBlockedNote formats the transitive block reason for a dependency.
func DependencyBlockedNote(dep string) string {
	return fmt.Sprintf("dependency %s is blocked", dep)
}
