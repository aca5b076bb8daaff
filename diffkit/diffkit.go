// Package diffkit wires the diff engine to files, model output and datasets.
package diffkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/sokinpui/diffkit/cli"
	"github.com/sokinpui/diffkit/internal/dataset"
	"github.com/sokinpui/diffkit/internal/fragment"
	"github.com/sokinpui/diffkit/internal/fs"
	"github.com/sokinpui/diffkit/internal/linediff"
	"github.com/sokinpui/diffkit/internal/localization"
	"github.com/sokinpui/diffkit/internal/parser"
	"github.com/sokinpui/diffkit/internal/patcher"
	"github.com/sokinpui/diffkit/internal/scope"
	"github.com/sokinpui/diffkit/internal/segment"
	"github.com/sokinpui/diffkit/internal/source"
	"github.com/sokinpui/diffkit/internal/state"
	"github.com/sokinpui/diffkit/internal/ui"
	"github.com/sokinpui/diffkit/model"
)

// ErrNoPatch is returned when the source holds neither a diff nor a diff fence.
var ErrNoPatch = errors.New("no diff found in source")

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// ContentSource supplies the text the app works on.
type ContentSource interface {
	GetContent() (string, error)
}

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	pathResolver     *fs.PathResolver
	sourceProvider   ContentSource
	locks            fs.Locker
	stateManager     *state.Manager
	historyOff       bool
	progressCallback ProgressUpdate
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error { return e.Err }

// StackTrace returns the stack captured when the error was created.
func (e *DetailedError) StackTrace() []byte { return e.Stack }

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	if cfg == nil {
		cfg = cli.Default()
	}
	if _, err := linediff.New(cfg.Differ); err != nil {
		return nil, err
	}
	if _, err := patcher.ParseOverlapPolicy(cfg.Overlap); err != nil {
		return nil, err
	}
	return &App{
		cfg:            cfg,
		pathResolver:   fs.NewPathResolver(cfg.LookupDirs),
		sourceProvider: source.New(cfg.Input),
	}, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// SetSource replaces the stdin/clipboard source.
func (a *App) SetSource(src ContentSource) {
	a.sourceProvider = src
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute() (model.Summary, error) {
	return a.ExecuteContext(context.Background())
}

// ExecuteContext is Execute with a context for the modes that can be
// cancelled.
func (a *App) ExecuteContext(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch a.cfg.Mode() {
	case cli.ModeEdit:
		return a.editSegments()
	case cli.ModeScore:
		return a.score(ctx)
	case cli.ModeUndo:
		return a.undoLastOperation()
	case cli.ModeRedo:
		return a.redoLastOperation()
	}

	content, err := a.sourceProvider.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if strings.TrimSpace(content) == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	switch a.cfg.Mode() {
	case cli.ModeParse:
		return a.parseEditedLines(content)
	case cli.ModeOutputDiffFix:
		return a.fixAndPrintDiffs(content)
	case cli.ModeReconstruct:
		return a.reconstruct(content)
	case cli.ModeExtract:
		return a.extract(content)
	default:
		return a.processAndApply(content)
	}
}

// processAndApply recounts and applies every diff block of content to the
// files it names.
func (a *App) processAndApply(content string) (model.Summary, error) {
	blocks, err := parser.ExtractDiffBlocks(content)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to read diff blocks: %w", err)
	}
	changes, failed := patcher.GeneratePatchedContents(blocks, a.pathResolver, a.cfg.Extensions)
	if len(changes) == 0 && len(failed) == 0 {
		return model.Summary{Message: "No valid changes were generated. Nothing to do."}, nil
	}

	summary, err := a.writeChanges(changes)
	if err != nil {
		return model.Summary{}, err
	}
	summary.Failed = append(summary.Failed, failed...)
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// writeChanges creates missing directories and writes each change, unless
// this is a dry run.
func (a *App) writeChanges(changes []patcher.FileChange) (model.Summary, error) {
	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.Path
	}
	actions, dirs := fs.GetFileActionsAndDirs(paths)

	var summary model.Summary
	if a.cfg.DryRun {
		summary.Message = "Dry run: no files were written."
	} else if err := fs.CreateDirs(dirs); err != nil {
		return model.Summary{}, err
	}

	var ops []state.Operation
	total := len(changes)
	a.reportProgress(0, total)
	for i, c := range changes {
		if !a.cfg.DryRun {
			op, err := a.write(c.Path, c.Content)
			if err != nil {
				ui.Error("  -> %v", err)
				summary.Failed = append(summary.Failed, c.Path)
				a.reportProgress(i+1, total)
				continue
			}
			if op != nil {
				ops = append(ops, *op)
			}
		}
		if actions[c.Path] == fs.ActionCreate {
			summary.Created = append(summary.Created, c.Path)
		} else {
			summary.Modified = append(summary.Modified, c.Path)
		}
		a.reportProgress(i+1, total)
	}
	a.recordHistory(ops)
	return summary, nil
}

// history opens the undo/redo history on first use. Failing to open it only
// disables undo.
func (a *App) history() *state.Manager {
	if a.stateManager == nil && !a.historyOff {
		m, err := state.New(a.pathResolver.Root())
		if err != nil {
			ui.Warning("History is disabled: %v", err)
			a.historyOff = true
			return nil
		}
		a.stateManager = m
	}
	return a.stateManager
}

// write replaces path with content and returns the history record of the
// write, or nil when history is unavailable.
func (a *App) write(path, content string) (*state.Operation, error) {
	before, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := fs.WriteFile(&a.locks, path, content); err != nil {
		return nil, err
	}
	m := a.history()
	if m == nil {
		return nil, nil
	}
	op, err := m.Record(path, before, content)
	if err != nil {
		ui.Warning("  -> Not recorded in history: %v", err)
		return nil, nil
	}
	return &op, nil
}

func (a *App) recordHistory(ops []state.Operation) {
	if len(ops) == 0 {
		return
	}
	if err := a.history().Write(ops); err != nil {
		ui.Warning("History is not saved: %v", err)
	}
}

func (a *App) reportProgress(current, total int) {
	if a.progressCallback != nil {
		a.progressCallback(current, total)
	}
}

// parseEditedLines prints the old-side line numbers each file of the
// source's patch touches.
func (a *App) parseEditedLines(content string) (model.Summary, error) {
	patch, ok := parser.ExtractPatch(content)
	if !ok {
		return model.Summary{}, ErrNoPatch
	}
	report := parser.ParseReport(patch)
	for _, err := range report.Skipped {
		ui.Warning("Skipping: %v", err)
	}
	edited := make(map[string][]int, len(report.Files))
	for _, d := range report.Files {
		edited[d.FileName] = d.OldLineNumbers()
	}
	out, err := json.MarshalIndent(edited, "", "  ")
	if err != nil {
		return model.Summary{}, err
	}
	return model.Summary{Output: string(out) + "\n"}, nil
}

// fixAndPrintDiffs corrects diffs from the source and prints them to stdout.
func (a *App) fixAndPrintDiffs(content string) (model.Summary, error) {
	blocks, err := parser.ExtractDiffBlocks(content)
	if err != nil {
		return model.Summary{}, err
	}

	var out strings.Builder
	for _, diff := range blocks {
		var src string
		if data, err := a.pathResolver.ReadFile(diff.FilePath); err == nil {
			src = string(data)
		}
		corrected, err := patcher.CorrectDiff(diff, src)
		if err != nil {
			// Silently skip failures for this mode.
			ui.Debug("  -> Skipping %s: %v", diff.FilePath, err)
			continue
		}
		if corrected == "" {
			continue
		}
		if a.cfg.Fence {
			corrected = parser.FenceDiff(strings.TrimSuffix(corrected, "\n")) + "\n"
		}
		out.WriteString(corrected)
	}
	return model.Summary{Output: out.String()}, nil
}

func (a *App) reconstructOptions() (patcher.Options, error) {
	differ, err := linediff.New(a.cfg.Differ)
	if err != nil {
		return patcher.Options{}, err
	}
	overlap, err := patcher.ParseOverlapPolicy(a.cfg.Overlap)
	if err != nil {
		return patcher.Options{}, err
	}
	return patcher.Options{Differ: differ, Context: a.cfg.Context, Overlap: overlap}, nil
}

// reconstruct rebuilds one diff from the fragments framed in content, using
// the fragments file as the base.
func (a *App) reconstruct(content string) (model.Summary, error) {
	base, err := fragment.ReadFile(a.cfg.Reconstruct)
	if err != nil {
		return model.Summary{}, err
	}
	edited := fragment.ParseResponse(content)
	if len(edited) == 0 {
		return model.Summary{Message: "No fragments found in source. Nothing to do."}, nil
	}
	ui.Info("Found %d edited fragment(s).", len(edited))

	opts, err := a.reconstructOptions()
	if err != nil {
		return model.Summary{}, err
	}
	res, err := patcher.Reconstruct(base, edited, opts)
	if err != nil {
		return model.Summary{}, err
	}
	return a.diffSummary(res)
}

func (a *App) diffSummary(res patcher.Result) (model.Summary, error) {
	for _, err := range res.Skipped {
		ui.Warning("  -> Skipping fragment: %v", err)
	}
	if res.Diff == "" {
		return model.Summary{Message: "Fragments are unchanged. No diff produced."}, nil
	}

	stats, err := parser.Validate(res.Diff)
	if err != nil {
		return model.Summary{}, fmt.Errorf("reconstructed diff is invalid: %w", err)
	}
	ui.Success("Reconstructed %d hunk(s) over %d file(s): +%d -%d", stats.Hunks, stats.Files, stats.Added, stats.Removed)

	out := res.Diff
	if a.cfg.Fence {
		out = parser.FenceDiff(strings.TrimSuffix(out, "\n")) + "\n"
	}
	return model.Summary{Output: out}, nil
}

// extract cuts the fragments the source's patch touches out of the files on
// disk. They are written to the --extract file, or printed as a prompt when
// it is "-".
func (a *App) extract(content string) (model.Summary, error) {
	patch, ok := parser.ExtractPatch(content)
	if !ok {
		return model.Summary{}, ErrNoPatch
	}

	contents := make(map[string]string)
	var failed []string
	for _, d := range parser.Parse(patch) {
		if _, seen := contents[d.FileName]; seen {
			continue
		}
		data, err := a.pathResolver.ReadFile(d.FileName)
		if err != nil {
			ui.Warning("  -> Skipping %s: %v", d.FileName, err)
			failed = append(failed, d.FileName)
			continue
		}
		contents[d.FileName] = string(data)
	}

	fragments := fragment.Extract(patch, contents)
	summary := model.Summary{Failed: failed}
	if a.cfg.Extract == "-" {
		summary.Output = fragment.FormatPrompt(fragments) + "\n"
		return summary, nil
	}

	data, err := fragment.Marshal(fragments, filepath.Ext(a.cfg.Extract))
	if err != nil {
		return model.Summary{}, err
	}
	if a.cfg.DryRun {
		summary.Output = string(data)
		return summary, nil
	}
	if err := fs.WriteFile(&a.locks, a.cfg.Extract, string(data)); err != nil {
		return model.Summary{}, err
	}
	summary.Message = fmt.Sprintf("Extracted %d fragment(s).", len(fragments))
	summary.Created = []string{a.cfg.Extract}
	return summary, nil
}

// editSegments runs the --exec command over each contiguous run of --lines
// in the --edit file. The command gets the snippet on stdin and the file in
// $DIFFKIT_FILE; its stdout replaces the snippet.
func (a *App) editSegments() (model.Summary, error) {
	path := a.pathResolver.ResolveExisting(a.cfg.Edit)
	if path == "" {
		return model.Summary{}, fmt.Errorf("%s: %w", a.cfg.Edit, os.ErrNotExist)
	}

	unlock := a.locks.Lock(path)
	data, err := os.ReadFile(path)
	if err != nil {
		unlock()
		return model.Summary{}, err
	}
	before := string(data)
	after, err := segment.ApplyText(a.cfg.Edit, before, a.cfg.Lines, a.runCommand)
	unlock()
	if err != nil {
		return model.Summary{}, err
	}

	if a.cfg.DryRun {
		opts, err := a.reconstructOptions()
		if err != nil {
			return model.Summary{}, err
		}
		id := model.FragmentID{FileName: a.cfg.Edit, StartLine: 1}.String()
		res, err := patcher.Reconstruct(map[string]string{id: before}, map[string]string{id: after}, opts)
		if err != nil {
			return model.Summary{}, err
		}
		return a.diffSummary(res)
	}

	if after == before {
		return model.Summary{Message: "Segments are unchanged. Nothing to write."}, nil
	}
	op, err := a.write(path, after)
	if err != nil {
		return model.Summary{}, err
	}
	if op != nil {
		a.recordHistory([]state.Operation{*op})
	}
	summary := model.Summary{Modified: []string{path}}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

func (a *App) runCommand(fileRef, snippet string) (string, error) {
	cmd := exec.Command("sh", "-c", a.cfg.Exec)
	cmd.Stdin = strings.NewReader(snippet)
	cmd.Env = append(os.Environ(), "DIFFKIT_FILE="+fileRef)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("exec %q on %s: %w: %s", a.cfg.Exec, fileRef, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSuffix(stdout.String(), "\n"), nil
}

// score evaluates localization over a JSONL dataset and prints the report as
// JSON. Scope metrics read Python sources from the first lookup directory.
func (a *App) score(ctx context.Context) (model.Summary, error) {
	rows, err := dataset.ReadFile(a.cfg.Score)
	if err != nil {
		return model.Summary{}, err
	}
	metric, err := localization.ParseMetric(a.cfg.Metric, a.cfg.View, scope.NewPython(scope.FromDir(a.pathResolver.Root())))
	if err != nil {
		return model.Summary{}, err
	}
	ui.Info("Scoring %d sample(s) with %s.", len(rows), metric.Name())

	report, err := dataset.Score(ctx, rows, metric, a.cfg.Workers, a.cfg.PerSample)
	if err != nil {
		return model.Summary{}, err
	}
	if report.Skipped > 0 {
		ui.Warning("%d sample(s) had no readable prediction and scored zero.", report.Skipped)
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return model.Summary{}, err
	}
	return model.Summary{Output: string(out) + "\n"}, nil
}

// undoLastOperation handles the undo logic.
func (a *App) undoLastOperation() (model.Summary, error) {
	m := a.history()
	if m == nil {
		return model.Summary{}, errors.New("history is not available")
	}
	ops, err := m.GetOperationsToUndo()
	if err != nil {
		return model.Summary{}, err
	}
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to undo."}, nil
	}

	undone, failed := m.Undo(&a.locks, ops, a.opProgress(len(ops)))
	summary := model.Summary{
		Modified: undone,
		Failed:   failed,
		Message:  "Undid last operation.",
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// redoLastOperation handles the redo logic.
func (a *App) redoLastOperation() (model.Summary, error) {
	m := a.history()
	if m == nil {
		return model.Summary{}, errors.New("history is not available")
	}
	ops, err := m.GetOperationsToRedo()
	if err != nil {
		return model.Summary{}, err
	}
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to redo."}, nil
	}

	redone, failed := m.Redo(&a.locks, ops, a.opProgress(len(ops)))
	summary := model.Summary{
		Modified: redone,
		Failed:   failed,
		Message:  "Redid last undone operation.",
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

func (a *App) opProgress(total int) func(int) {
	if a.progressCallback == nil {
		return nil
	}
	a.progressCallback(0, total)
	return func(current int) {
		a.progressCallback(current, total)
	}
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the current working directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		// Cannot get CWD, so we can't make paths relative.
		// Return without changing anything.
		return
	}

	makeRelative := func(absPaths []string) []string {
		relPaths := make([]string, len(absPaths))
		for i, p := range absPaths {
			rel, err := filepath.Rel(wd, p)
			if err != nil || !filepath.IsAbs(p) {
				relPaths[i] = p // Fallback to the path as given
			} else {
				relPaths[i] = rel
			}
		}
		sort.Strings(relPaths)
		return relPaths
	}

	summary.Created = makeRelative(summary.Created)
	summary.Modified = makeRelative(summary.Modified)
	summary.Failed = makeRelative(summary.Failed)
}
