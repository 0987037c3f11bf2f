package cli

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/mattfenn/erfgen/pkg/pipeline"
)

// =============================================================================
// Progress TUI - interactive runs
// =============================================================================

// progressMsg carries one pipeline progress update into the TUI.
type progressMsg struct {
	percent int
	message string
}

// runDoneMsg signals that the pipeline goroutine has returned.
type runDoneMsg struct{}

const progressBarWidth = 30

// progressModel renders a one-line progress bar for a pipeline run.
// Pressing q (or ctrl+c, esc) flags cancellation; the pipeline notices at the
// next stage boundary and the program quits when the run returns.
type progressModel struct {
	percent   int
	message   string
	cancelled *atomic.Bool
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancelled.Store(true)
			m.message = "cancelling after current stage..."
		}
	case progressMsg:
		m.percent = msg.percent
		m.message = msg.message
	case runDoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	filled := m.percent * progressBarWidth / 100
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	bar := styleProgressBar.Render(strings.Repeat("█", filled)) +
		StyleDim.Render(strings.Repeat("░", progressBarWidth-filled))

	var b strings.Builder
	b.WriteString(bar)
	b.WriteString(StyleValue.Render(" " + m.message))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q cancel"))
	b.WriteString("\n")
	return b.String()
}

// tuiSink bridges pipeline progress into a running bubbletea program. The
// cancelled flag is shared with the model, so a keypress in the UI becomes
// visible to the pipeline's next poll.
type tuiSink struct {
	prog      *tea.Program
	cancelled *atomic.Bool
}

func (s *tuiSink) Report(percent int, message string) {
	s.prog.Send(progressMsg{percent: percent, message: message})
}

func (s *tuiSink) Cancelled() bool {
	return s.cancelled.Load()
}

// =============================================================================
// Plain progress - logs only
// =============================================================================

// logSink reports progress through the logger; cancellation comes from the
// context instead of a keypress.
type logSink struct {
	logger *log.Logger
}

func (s logSink) Report(percent int, message string) {
	s.logger.Info(message, "progress", percent)
}

func (s logSink) Cancelled() bool {
	return false
}

// =============================================================================
// Execution helpers
// =============================================================================

// runWithProgress executes the pipeline with an interactive progress bar when
// stderr is a terminal, falling back to log-line progress otherwise.
func (c *CLI) runWithProgress(ctx context.Context, runner *pipeline.Runner, input pipeline.Input, opts pipeline.Options, plain bool) (*pipeline.Result, error) {
	if plain || !isTerminal(os.Stderr) {
		return runner.Execute(ctx, input, opts, logSink{logger: c.Logger})
	}

	var cancelled atomic.Bool
	prog := tea.NewProgram(
		progressModel{cancelled: &cancelled},
		tea.WithOutput(os.Stderr),
	)
	sink := &tuiSink{prog: prog, cancelled: &cancelled}

	var (
		result *pipeline.Result
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = runner.Execute(ctx, input, opts, sink)
		prog.Send(runDoneMsg{})
	}()

	if _, err := prog.Run(); err != nil {
		// The UI failed; the run itself decides the outcome.
		c.Logger.Debug("progress ui failed", "err", err)
	}
	<-done

	return result, runErr
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
