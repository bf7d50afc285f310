package progress

import (
	"context"
	"fmt"
	"io"
	"sync"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

var (
	appStyle    = lipgloss.NewStyle().Bold(true)
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

// TerminalSink renders a progress bar per record. Non-terminal records on an
// interactive terminal overwrite the current line; terminal records end it.
type TerminalSink struct {
	mu          sync.Mutex
	out         io.Writer
	bar         bprogress.Model
	interactive bool
	lastStage   map[string]app.Stage
}

// NewTerminalSink renders to out. When interactive is false every stage
// change is written on its own line and byte-level updates are skipped.
func NewTerminalSink(out io.Writer, width int, interactive bool) *TerminalSink {
	if width <= 0 {
		width = 40
	}
	return &TerminalSink{
		out:         out,
		bar:         bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithWidth(width)),
		interactive: interactive,
		lastStage:   make(map[string]app.Stage),
	}
}

// Report implements ports.ProgressSink.
func (s *TerminalSink) Report(_ context.Context, record app.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stageChanged := s.lastStage[record.AppID] != record.Stage
	s.lastStage[record.AppID] = record.Stage
	if !s.interactive && !stageChanged {
		return
	}

	line := s.render(record)
	if s.interactive {
		fmt.Fprintf(s.out, "\r\x1b[2K%s", line)
		if record.Terminal() {
			fmt.Fprintln(s.out)
		}
		return
	}
	fmt.Fprintln(s.out, line)
}

func (s *TerminalSink) render(record app.Progress) string {
	stage := stageStyle.Render(string(record.Stage))
	switch record.Stage {
	case app.StageCompleted:
		stage = doneStyle.Render(string(record.Stage))
	case app.StageFailed:
		stage = failedStyle.Render(string(record.Stage))
	}

	line := fmt.Sprintf("%s %s %s", appStyle.Render(record.AppID), s.bar.ViewAs(float64(record.Percent)/100), stage)
	if record.BytesTotal > 0 {
		line += fmt.Sprintf(" %s/%s", formatBytes(record.BytesDownloaded), formatBytes(record.BytesTotal))
	}
	if record.Stage == app.StageFailed && record.Error != "" {
		line += " " + record.Error
	}
	return line
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
