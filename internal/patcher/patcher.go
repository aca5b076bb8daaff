// Package patcher turns edited fragments into unified diffs and applies
// unified diffs to file contents held in memory.
package patcher

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sokinpui/diffkit/internal/fs"
	"github.com/sokinpui/diffkit/internal/parser"
	"github.com/sokinpui/diffkit/internal/ui"
)

// FileChange is the content a diff block produced for one file.
type FileChange struct {
	// Path is absolute, resolved through the lookup directories.
	Path    string
	Content string
	Created bool
}

// ExtractPathFromDiff finds the file path in a raw diff string.
func ExtractPathFromDiff(content string) string {
	return parser.ExtractPathFromDiff(content)
}

// ApplyDiff applies every file section of diffText to contents, keyed by the
// paths the diff names. Files the diff creates start empty, deleted files are
// removed from the result, and renamed files move to their new key. contents
// itself is not modified.
func ApplyDiff(diffText string, contents map[string]string) (map[string]string, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(diffText))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	out := make(map[string]string, len(contents))
	for k, v := range contents {
		out[k] = v
	}

	for _, f := range files {
		name := resolveName(out, f.OldName)
		if f.IsNew || name == "" {
			name = resolveName(out, f.NewName)
		}

		src, ok := out[name]
		if !ok && !f.IsNew {
			return nil, fmt.Errorf("apply %s: file not found", name)
		}

		if f.IsDelete {
			delete(out, name)
			continue
		}

		patched, err := applyFile(f, src)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", name, err)
		}
		if newName := resolveName(out, f.NewName); newName != "" && newName != name {
			delete(out, name)
			name = newName
		}
		out[name] = patched
	}
	return out, nil
}

// resolveName maps a name from a diff header to a key of contents. Headers
// without a git preamble keep their a/ and b/ prefixes.
func resolveName(contents map[string]string, name string) string {
	if _, ok := contents[name]; ok {
		return name
	}
	for _, prefix := range []string{"a/", "b/"} {
		if trimmed, ok := strings.CutPrefix(name, prefix); ok {
			return trimmed
		}
	}
	return name
}

// applyFile patches one file. Contents are handled as lines joined by "\n";
// a missing final newline is restored after the patch so the diff does not
// need "\ No newline at end of file" markers to apply.
func applyFile(f *gitdiff.File, src string) (string, error) {
	terminated := src == "" || strings.HasSuffix(src, "\n")
	if !terminated {
		src += "\n"
	}

	var dst bytes.Buffer
	if err := gitdiff.Apply(&dst, strings.NewReader(src), f); err != nil {
		return "", err
	}

	result := dst.String()
	if !terminated {
		result = strings.TrimSuffix(result, "\n")
	}
	return result, nil
}

// GeneratePatchedContents recounts and applies each diff block against the
// file it names, reading sources through resolver. Blocks whose extension is
// not in extensions (when given) are ignored; blocks that fail are logged and
// reported by path in failed.
func GeneratePatchedContents(diffs []parser.DiffBlock, resolver *fs.PathResolver, extensions []string) (changes []FileChange, failed []string) {
	if len(diffs) == 0 {
		return nil, nil
	}
	ui.Info("Found %d diff block(s) to process.", len(diffs))

	for _, diff := range diffs {
		if len(extensions) > 0 && !slices.Contains(extensions, filepath.Ext(diff.FilePath)) {
			continue
		}

		change, err := patchBlock(diff, resolver)
		if err != nil {
			ui.Warning("  -> Skipping %s: %v", diff.FilePath, err)
			failed = append(failed, resolver.Resolve(diff.FilePath))
			continue
		}

		ui.Success("  -> Generated patch for: %s", diff.FilePath)
		changes = append(changes, change)
	}
	return changes, failed
}

func patchBlock(diff parser.DiffBlock, resolver *fs.PathResolver) (FileChange, error) {
	sourcePath := resolver.ResolveExisting(diff.FilePath)
	var source string
	if sourcePath != "" {
		content, err := os.ReadFile(sourcePath)
		if err != nil {
			return FileChange{}, err
		}
		source = string(content)
	}

	corrected, err := CorrectDiff(diff, source)
	if err != nil {
		return FileChange{}, err
	}
	if corrected == "" {
		return FileChange{}, fmt.Errorf("diff has no hunks")
	}

	patched, err := ApplyDiff(corrected, map[string]string{diff.FilePath: source})
	if err != nil {
		return FileChange{}, err
	}
	return FileChange{
		Path:    resolver.Resolve(diff.FilePath),
		Content: patched[diff.FilePath],
		Created: sourcePath == "",
	}, nil
}

// CorrectDiff recounts a raw diff block against source, the current content
// of the file it targets ("" for a new file).
func CorrectDiff(diff parser.DiffBlock, source string) (string, error) {
	var sourceLines []string
	if source != "" {
		sourceLines = strings.Split(source, "\n")
	}
	ui.Debug("  -> Correcting diff for: %s", diff.FilePath)
	return Recount(sourceLines, diff.RawContent, diff.FilePath)
}
