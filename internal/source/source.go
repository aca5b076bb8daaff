package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/sokinpui/diffkit/internal/ui"
)

// SourceProvider determines and retrieves the source content.
type SourceProvider struct {
	// inputPath, when set, is read instead of stdin or the clipboard.
	inputPath string
	stdin     *os.File
	clipboard func() (string, error)
}

// New creates a new SourceProvider. A non-empty inputPath takes precedence
// over stdin and the clipboard; "-" forces stdin.
func New(inputPath string) *SourceProvider {
	return &SourceProvider{inputPath: inputPath, stdin: os.Stdin, clipboard: clipboard.ReadAll}
}

// GetContent retrieves content from the input file, stdin (if piped) or the
// clipboard, in that order.
func (sp *SourceProvider) GetContent() (string, error) {
	switch sp.inputPath {
	case "":
	case "-":
		return sp.readStdin()
	default:
		ui.Header("--- Reading from %s ---", sp.inputPath)
		content, err := os.ReadFile(sp.inputPath)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(content), nil
	}

	if sp.isPiped() {
		return sp.readStdin()
	}

	ui.Header("--- Reading from clipboard ---")
	content, err := sp.clipboard()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		ui.Warning("Clipboard is empty. Nothing to process.")
		return "", nil
	}
	return content, nil
}

func (sp *SourceProvider) isPiped() bool {
	stat, err := sp.stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (sp *SourceProvider) readStdin() (string, error) {
	ui.Header("--- Reading from stdin ---")
	content, err := io.ReadAll(sp.stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return string(content), nil
}
