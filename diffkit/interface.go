package diffkit

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/sokinpui/diffkit/cli"
	"github.com/sokinpui/diffkit/internal/dataset"
	"github.com/sokinpui/diffkit/internal/fragment"
	"github.com/sokinpui/diffkit/internal/localization"
	"github.com/sokinpui/diffkit/internal/parser"
	"github.com/sokinpui/diffkit/internal/patcher"
	"github.com/sokinpui/diffkit/internal/scope"
	"github.com/sokinpui/diffkit/internal/segment"
	"github.com/sokinpui/diffkit/model"
)

// Config for using diffkit as a library.
type Config struct {
	// Directories relative paths are resolved against; the working
	// directory when empty.
	LookupDirs []string
	// Filter by extension (e.g., '.py', '.go').
	Extensions []string
	// Report what would change without writing files.
	DryRun bool
}

// ScoreReport is the aggregate of a localization metric over a dataset.
type ScoreReport = localization.Report

// EditFunc replaces the snippet of one line segment of fileRef.
type EditFunc = segment.EditFunc

// Apply parses the diff blocks in the given content string and applies them
// to files. It returns a summary of the operations in a map.
func Apply(content string, config Config) (map[string][]string, error) {
	cliCfg := cli.Default()
	cliCfg.LookupDirs = config.LookupDirs
	cliCfg.Extensions = config.Extensions
	cliCfg.DryRun = config.DryRun

	app, err := New(cliCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize diffkit app: %w", err)
	}

	summary, err := app.processAndApply(content)
	if err != nil {
		return nil, err
	}

	result := map[string][]string{
		"Created":  summary.Created,
		"Modified": summary.Modified,
		"Failed":   summary.Failed,
	}

	return result, nil
}

// Parse parses unified diff text into one record per file block.
func Parse(diffText string) []model.ParsedDiff {
	return parser.Parse(diffText)
}

// EditedLines maps each file of a model response's patch to the line numbers
// its hunks replace.
func EditedLines(response string) (map[string][]int, error) {
	patch, ok := parser.ExtractPatch(response)
	if !ok {
		return nil, ErrNoPatch
	}
	return parser.EditedLinesPerFile(patch), nil
}

// EditSegments applies edit to each contiguous run of lines in text.
func EditSegments(fileRef, text string, lines []int, edit EditFunc) (string, error) {
	return segment.ApplyText(fileRef, text, lines, edit)
}

// Reconstruct merges edited fragments back into one unified diff. Fragments
// are keyed "<file>#L<start>"; context is the number of context lines per hunk.
func Reconstruct(base, edited map[string]string, context int) (string, error) {
	opts := patcher.DefaultOptions()
	opts.Context = context
	res, err := patcher.Reconstruct(base, edited, opts)
	if err != nil {
		return "", err
	}
	return res.Diff, nil
}

// ReconstructResponse is Reconstruct over the fragments framed in a model
// response.
func ReconstructResponse(base map[string]string, response string) (string, error) {
	return Reconstruct(base, fragment.ParseResponse(response), -1)
}

// FragmentPrompt frames the base fragments of diffText's hunks, cut from
// contents, for a model to rewrite.
func FragmentPrompt(diffText string, contents map[string]string) (string, map[string]string) {
	fragments := fragment.Extract(diffText, contents)
	return fragment.FormatPrompt(fragments), fragments
}

// ApplyDiff applies a unified diff to in-memory file contents.
func ApplyDiff(diffText string, contents map[string]string) (map[string]string, error) {
	return patcher.ApplyDiff(diffText, contents)
}

// Score reads a JSONL dataset from r and scores localization with the named
// metric ("file", "line" or "scope"). Scope metrics resolve Python files
// under root.
func Score(ctx context.Context, r io.Reader, metric string, view bool, root string) (ScoreReport, error) {
	rows, err := dataset.Read(r)
	if err != nil {
		return ScoreReport{}, err
	}
	m, err := localization.ParseMetric(metric, view, scope.NewPython(scope.FromDir(root)))
	if err != nil {
		return ScoreReport{}, err
	}
	return dataset.Score(ctx, rows, m, runtime.GOMAXPROCS(0), false)
}
