package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/diffkit/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Runner is the work the TUI waits on.
type Runner interface {
	Execute() (model.Summary, error)
}

// StackTracer is implemented by errors that carry a stack trace.
type StackTracer interface {
	StackTrace() []byte
}

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

type progressMsg struct{ current, total int }

// --- Model ---
type Model struct {
	runner   Runner
	spinner  spinner.Model
	state    state
	summary  summaryMsg
	progress progressMsg
	err      error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

func New(runner Runner) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		runner:  runner,
		spinner: s,
		state:   stateProcessing,
	}
}

// Progress returns a message that updates the progress counter; send it with
// tea.Program.Send.
func Progress(current, total int) tea.Msg {
	return progressMsg{current: current, total: total}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case progressMsg:
		m.progress = msg
		return m, nil

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.progress.total > 0 {
			return fmt.Sprintf("%s Processing... (%d/%d)", m.spinner.View(), m.progress.current, m.progress.total)
		}
		return fmt.Sprintf("%s Processing...", m.spinner.View())
	case stateError:
		return errorStyle.Render("Error: ", m.err.Error()) + "\n"
	case stateSummary:
		return RenderSummary(m.summary.Summary)
	default:
		return ""
	}
}

// Err returns the error the run ended with, if any.
func (m Model) Err() error {
	if m.state == stateError {
		return m.err
	}
	return nil
}

// Summary returns the summary of a successful run.
func (m Model) Summary() model.Summary {
	return m.summary.Summary
}

// RenderSummary formats a summary with the TUI styles.
func RenderSummary(s model.Summary) string {
	var b strings.Builder

	if s.Message != "" {
		b.WriteString(headerStyle.Render(s.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	section := func(title string, style lipgloss.Style, files []string) {
		if len(files) == 0 {
			return
		}
		hasContent = true
		b.WriteString(style.Render(title))
		b.WriteString("\n")
		for _, f := range files {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	section("Created:", successStyle, s.Created)
	section("Modified:", successStyle, s.Modified)
	section("Failed:", errorStyle, s.Failed)

	if !hasContent && s.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) runApp() tea.Msg {
	summary, err := m.runner.Execute()
	if err != nil {
		// Check for detailed error to print stack
		var st StackTracer
		if errors.As(err, &st) {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", st.StackTrace())
		}
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}
