package app

import (
	"strings"
	"time"
)

// ExecutionResult captures one installer or uninstaller invocation.
type ExecutionResult struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	DryRun   bool
	Duration time.Duration
}

// CommandLine renders Command as a single display string.
func (r ExecutionResult) CommandLine() string {
	parts := make([]string, 0, len(r.Command))
	for _, arg := range r.Command {
		if strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// PrimaryOutput returns stderr if present, otherwise stdout.
func (r ExecutionResult) PrimaryOutput() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return r.Stdout
}

// OutcomeKind distinguishes the non-exceptional results of an install call.
type OutcomeKind string

const (
	OutcomeAlreadyInstalled OutcomeKind = "already-installed"
	OutcomeInstalled        OutcomeKind = "installed"
)

// InstallOutcome is the result of a successful install call for one target.
type InstallOutcome struct {
	Kind         OutcomeKind
	Status       Status
	Result       ExecutionResult
	Dependencies []Status
	CacheHit     bool
}

// AlreadyInstalled reports whether the call short-circuited without side
// effects.
func (o *InstallOutcome) AlreadyInstalled() bool {
	return o != nil && o.Kind == OutcomeAlreadyInstalled
}
