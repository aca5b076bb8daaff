package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/sokinpui/diffkit/model"
)

// Level orders log output; messages below the current level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	// LevelQuiet drops everything.
	LevelQuiet
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	DebugColor   = color.New(color.FgHiBlack)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	PromptColor  = color.New(color.FgMagenta)
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	level            = LevelInfo
	silent bool
)

// SetOutput redirects all log output, e.g. to io.Discard while a TUI owns
// the terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the minimum level printed.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// Silence drops all output until called again with false. The level is kept.
func Silence(on bool) {
	mu.Lock()
	defer mu.Unlock()
	silent = on
}

func logf(l Level, c *color.Color, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if silent || l < level {
		return
	}
	c.Fprintf(out, format+"\n", a...)
}

func Header(format string, a ...interface{}) {
	logf(LevelInfo, HeaderColor, format, a...)
}

func Debug(format string, a ...interface{}) {
	logf(LevelDebug, DebugColor, format, a...)
}

func Info(format string, a ...interface{}) {
	logf(LevelInfo, InfoColor, format, a...)
}

func Success(format string, a ...interface{}) {
	logf(LevelInfo, SuccessColor, format, a...)
}

func Warning(format string, a ...interface{}) {
	logf(LevelWarning, WarningColor, format, a...)
}

func Error(format string, a ...interface{}) {
	logf(LevelError, ErrorColor, format, a...)
}

func Path(format string, a ...interface{}) {
	logf(LevelInfo, PathColor, "  "+format, a...)
}

func Prompt(format string, a ...interface{}) string {
	return PromptColor.Sprintf(format, a...)
}

// --- Summaries ---

// PrintSummary logs the outcome of a run. It is the plain counterpart of the
// TUI summary.
func PrintSummary(s model.Summary) {
	if s.Message != "" {
		Header("%s", s.Message)
	}
	PrintUpdateSummary(s.Modified, s.Created, s.Failed)
}

func PrintUpdateSummary(modified, created, failed []string) {
	if len(modified) == 0 && len(created) == 0 && len(failed) == 0 {
		return
	}
	Header("\n--- Update Summary ---")

	if len(modified) > 0 {
		Success("Modified %d file(s):", len(modified))
		for _, f := range modified {
			Path("- %s", f)
		}
	}
	if len(created) > 0 {
		Success("Created %d new file(s):", len(created))
		for _, f := range created {
			Path("- %s", f)
		}
	}
	if len(failed) > 0 {
		Error("Failed to process %d file(s):", len(failed))
		for _, f := range failed {
			logf(LevelError, PathColor, "  - %s", f)
		}
	}
}

// --- Progress Bar ---

type ProgressBar struct {
	w       io.Writer
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{w: os.Stderr, total: total, prefix: prefix}
}

func (p *ProgressBar) Start() {
	p.draw()
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int) {
	p.current = current
	p.draw()
}

func (p *ProgressBar) Increment() {
	p.Set(p.current + 1)
}

func (p *ProgressBar) Finish() {
	if p.total > 0 {
		fmt.Fprintln(p.w)
	}
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	fmt.Fprintf(p.w, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
