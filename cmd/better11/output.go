package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderPlan(w io.Writer, plan *app.InstallPlan) error {
	fmt.Fprintln(w, titleStyle.Render("Install plan for "+plan.Target))
	table := newTable(w)
	fmt.Fprintln(table, "#\tACTION\tAPP\tVERSION\tNOTES")
	for i, step := range plan.Steps {
		fmt.Fprintf(table, "%d\t%s\t%s\t%s\t%s\n",
			i+1,
			step.Action,
			step.AppID,
			valueOrFallback(step.Version, "-"),
			strings.Join(step.Notes, "; "),
		)
	}
	if err := table.Flush(); err != nil {
		return err
	}
	for _, warning := range plan.Warnings {
		fmt.Fprintln(w, warningStyle.Render("warning: "+warning))
	}
	fmt.Fprintf(w, "%d to install, %d already satisfied, %d blocked\n",
		len(plan.ToInstall()), len(plan.Steps)-len(plan.ToInstall())-len(plan.Blocked()), len(plan.Blocked()))
	return nil
}

func renderBatch(w io.Writer, result *app.BatchResult) error {
	table := newTable(w)
	fmt.Fprintln(table, "APP\tRESULT\tVERSION\tDURATION\tERROR")
	for _, item := range result.Items {
		status := okStyle.Render(item.Status)
		if !item.Success {
			status = failStyle.Render(item.Status)
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n",
			item.AppID,
			status,
			valueOrFallback(item.Version, "-"),
			item.Duration.Round(time.Millisecond),
			firstLine(item.Error),
		)
	}
	if err := table.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d/%d succeeded (%.0f%%) in %s\n",
		result.Operation,
		result.SucceededCount,
		len(result.Requested),
		result.CompletionPercent,
		result.TotalDuration.Round(time.Millisecond),
	)
	return nil
}

// batchError summarises a batch that did not fully succeed.
func batchError(result *app.BatchResult) error {
	if result.AllSucceeded() {
		return nil
	}
	failures := result.Failures()
	var cause error = errors.New("batch stopped before all applications were processed")
	if len(failures) > 0 {
		cause = errors.New(failures[0].Error)
		if msg, ok := strings.CutPrefix(failures[0].Error, string(app.ErrCodeCancelled)+": "); ok {
			cause = app.NewError(app.ErrCodeCancelled, msg, nil, nil)
		}
	}
	return newCommandError(result.Operation,
		fmt.Sprintf("%d of %d applications succeeded", result.SucceededCount, len(result.Requested)),
		cause,
		"Re-run with --verbose for details, or pass --continue-on-error to process the remaining applications.")
}

func formatTime(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func valueOrFallback(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
