package progress

import (
	"context"
	"fmt"
	"io"
	"strings"

	bprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
)

// RecordMsg carries one progress record into the interactive view.
type RecordMsg struct {
	Record app.Progress
}

// Model is the bubbletea model behind ProgramSink. It keeps one row per
// application in the order the applications first reported.
type Model struct {
	order       []string
	rows        map[string]app.Progress
	bar         bprogress.Model
	interrupted bool
	onInterrupt func()
}

// NewModel builds an empty view. onInterrupt runs once when the user presses
// ctrl+c inside the program and may be nil.
func NewModel(width int, onInterrupt func()) Model {
	if width <= 0 {
		width = 40
	}
	return Model{
		rows:        make(map[string]app.Progress),
		bar:         bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithWidth(width)),
		onInterrupt: onInterrupt,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RecordMsg:
		id := msg.Record.AppID
		if _, seen := m.rows[id]; !seen {
			m.order = append(m.order, id)
		}
		m.rows[id] = msg.Record
		return m, nil
	case tea.WindowSizeMsg:
		if width := msg.Width / 3; width > 10 {
			m.bar.Width = width
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC && !m.interrupted {
			m.interrupted = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	for _, id := range m.order {
		record := m.rows[id]
		stage := stageStyle.Render(string(record.Stage))
		switch record.Stage {
		case app.StageCompleted:
			stage = doneStyle.Render(string(record.Stage))
		case app.StageFailed:
			stage = failedStyle.Render(string(record.Stage))
		}
		fmt.Fprintf(&b, "%s %s %s", appStyle.Render(id), m.bar.ViewAs(float64(record.Percent)/100), stage)
		if record.Stage == app.StageFailed && record.Error != "" {
			fmt.Fprintf(&b, " %s", record.Error)
		} else if record.Message != "" && !record.Terminal() {
			fmt.Fprintf(&b, " %s", record.Message)
		}
		b.WriteString("\n")
	}
	if m.interrupted {
		b.WriteString(failedStyle.Render("interrupted, waiting for the current step to stop"))
		b.WriteString("\n")
	}
	return b.String()
}

// Interrupted reports whether ctrl+c was pressed.
func (m Model) Interrupted() bool {
	return m.interrupted
}

// Rows returns the latest record per application in display order.
func (m Model) Rows() []app.Progress {
	rows := make([]app.Progress, 0, len(m.order))
	for _, id := range m.order {
		rows = append(rows, m.rows[id])
	}
	return rows
}

// ProgramSink forwards progress records to a running bubbletea program.
type ProgramSink struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewProgramSink prepares a program writing to out. Call Start before the
// first record and Stop once the operation returns.
func NewProgramSink(out io.Writer, width int, onInterrupt func(), opts ...tea.ProgramOption) *ProgramSink {
	opts = append([]tea.ProgramOption{tea.WithOutput(out)}, opts...)
	return &ProgramSink{
		program: tea.NewProgram(NewModel(width, onInterrupt), opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (s *ProgramSink) Start() {
	go func() {
		_, s.err = s.program.Run()
		close(s.done)
	}()
}

// Report implements ports.ProgressSink.
func (s *ProgramSink) Report(_ context.Context, record app.Progress) {
	s.program.Send(RecordMsg{Record: record})
}

// Stop quits the program and waits for its final frame.
func (s *ProgramSink) Stop() error {
	s.program.Send(tea.QuitMsg{})
	<-s.done
	return s.err
}

var (
	_ tea.Model          = Model{}
	_ ports.ProgressSink = (*ProgramSink)(nil)
)
