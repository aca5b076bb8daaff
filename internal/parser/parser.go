package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sokinpui/diffkit/model"
)

var (
	// ErrMalformedHeader marks a hunk header that does not match
	// "@@ -a[,b] +c[,d] @@". The hunk is dropped; parsing continues.
	ErrMalformedHeader = errors.New("malformed hunk header")

	// ErrMissingFileHeader marks a block with hunks but no usable file name.
	ErrMissingFileHeader = errors.New("missing file header")
)

var (
	hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

	// filePathRegex extracts the file path from a '+++ b/...' line.
	filePathRegex = regexp.MustCompile(`(?m)^\+\+\+ b/(?P<path>.*?)(\s|$)`)
)

// Report is the outcome of parsing a diff document. Skipped holds one error
// per dropped unit (file block or hunk), in document order.
type Report struct {
	Files   []model.ParsedDiff
	Skipped []error
}

// Parse parses unified diff text into one ParsedDiff per file block. It never
// fails: blocks without a file name and hunks with malformed headers are
// dropped. Blank input yields nil.
func Parse(diffText string) []model.ParsedDiff {
	return ParseReport(diffText).Files
}

type hunkState struct {
	hunk     model.Hunk
	oldLeft  int
	newLeft  int
	dropping bool
}

func (h *hunkState) expecting() bool {
	return h != nil && !h.dropping && (h.oldLeft > 0 || h.newLeft > 0)
}

type fileState struct {
	oldName string
	newName string
	oldNull bool
	hunks   []model.Hunk
	cur     *hunkState
	started int // 1-indexed line the block started on
}

func (f *fileState) closeHunk() {
	if f.cur != nil && !f.cur.dropping {
		f.hunks = append(f.hunks, f.cur.hunk)
	}
	f.cur = nil
}

func (f *fileState) name() string {
	if f.oldName != "" && !f.oldNull {
		return f.oldName
	}
	return f.newName
}

// ParseReport is Parse, also returning what was skipped and why.
func ParseReport(diffText string) Report {
	var r Report
	if strings.TrimSpace(diffText) == "" {
		return r
	}

	lines := strings.Split(diffText, "\n")
	var cur *fileState

	finish := func() {
		if cur == nil {
			return
		}
		cur.closeHunk()
		name := cur.name()
		switch {
		case name != "":
			r.Files = append(r.Files, model.ParsedDiff{FileName: name, Hunks: cur.hunks})
		case len(cur.hunks) > 0:
			r.Skipped = append(r.Skipped, fmt.Errorf("%w: block at line %d", ErrMissingFileHeader, cur.started))
		}
		cur = nil
	}
	start := func(lineNo int) {
		finish()
		cur = &fileState{started: lineNo}
	}

	for i, line := range lines {
		lineNo := i + 1

		if cur != nil && cur.cur != nil && isBody(cur.cur, line, lines, i) {
			consume(cur.cur, line)
			continue
		}

		switch {
		case strings.HasPrefix(line, "diff "):
			start(lineNo)
		case strings.HasPrefix(line, "--- ") && isFileHeaderPair(lines, i):
			if cur == nil || len(cur.hunks) > 0 || cur.cur != nil || cur.oldName != "" || cur.oldNull {
				start(lineNo)
			}
			cur.oldName, cur.oldNull = headerPath(strings.TrimPrefix(line, "--- "), "a/")
		case strings.HasPrefix(line, "+++ ") && cur != nil && cur.cur == nil && len(cur.hunks) == 0:
			cur.newName, _ = headerPath(strings.TrimPrefix(line, "+++ "), "b/")
		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				start(lineNo)
			}
			cur.closeHunk()
			h, err := parseHunkHeader(line)
			if err != nil {
				r.Skipped = append(r.Skipped, fmt.Errorf("line %d: %w", lineNo, err))
				cur.cur = &hunkState{dropping: true}
				continue
			}
			// No body can be longer than the document it sits in.
			h.OldLen, h.NewLen = min(h.OldLen, len(lines)), min(h.NewLen, len(lines))
			cur.cur = &hunkState{hunk: h, oldLeft: h.OldLen, newLeft: h.NewLen}
		}
	}
	finish()
	return r
}

// isBody reports whether line belongs to the open hunk. Tagged lines are
// accepted even once the header's counts are used up (headers written by
// models are often wrong); an untagged empty line counts only while the
// header still expects lines. A file header pair ends the hunk once the
// counts are satisfied, and a pair followed by a hunk header ends it
// whatever the counts say.
func isBody(h *hunkState, line string, lines []string, i int) bool {
	if line == "" {
		return h.expecting()
	}
	switch line[0] {
	case '\\':
		return true
	case ' ', '+', '-':
		if strings.HasPrefix(line, "--- ") && isFileHeaderPair(lines, i) &&
			(!h.expecting() || isFileBoundary(lines, i)) {
			return false
		}
		return true
	default:
		return false
	}
}

func consume(h *hunkState, line string) {
	if h.dropping {
		return
	}
	if line == "" {
		h.hunk.Lines = append(h.hunk.Lines, model.HunkLine{Op: model.OpContext, Text: ""})
		h.oldLeft--
		h.newLeft--
		return
	}
	switch line[0] {
	case '\\':
		// "\ No newline at end of file"
	case ' ':
		h.hunk.Lines = append(h.hunk.Lines, model.HunkLine{Op: model.OpContext, Text: line[1:]})
		h.oldLeft--
		h.newLeft--
	case '-':
		h.hunk.Lines = append(h.hunk.Lines, model.HunkLine{Op: model.OpRemoved, Text: line[1:]})
		h.oldLeft--
	case '+':
		h.hunk.Lines = append(h.hunk.Lines, model.HunkLine{Op: model.OpAdded, Text: line[1:]})
		h.newLeft--
	}
}

func isFileHeaderPair(lines []string, i int) bool {
	return i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ")
}

// isFileBoundary reports whether lines[i] opens a "---", "+++", "@@" triple.
func isFileBoundary(lines []string, i int) bool {
	return isFileHeaderPair(lines, i) && i+2 < len(lines) && strings.HasPrefix(lines[i+2], "@@")
}

// headerPath extracts the path from the rest of a ---/+++ line, dropping a
// tab-separated timestamp and the a/ or b/ prefix.
func headerPath(rest, prefix string) (path string, devNull bool) {
	if idx := strings.IndexByte(rest, '\t'); idx >= 0 {
		rest = rest[:idx]
	}
	rest = strings.TrimSpace(rest)
	if rest == "/dev/null" {
		return "", true
	}
	return strings.TrimPrefix(rest, prefix), false
}

func parseHunkHeader(line string) (model.Hunk, error) {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return model.Hunk{}, fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}
	var nums [4]int
	for k, s := range m[1:5] {
		if s == "" {
			nums[k] = 1
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return model.Hunk{}, fmt.Errorf("%w: %q: %v", ErrMalformedHeader, line, err)
		}
		nums[k] = n
	}
	return model.Hunk{
		OldStart: nums[0],
		OldLen:   nums[1],
		NewStart: nums[2],
		NewLen:   nums[3],
	}, nil
}

// EditedLinesPerFile maps each file in diffText to the old-side line numbers
// its hunks cover. A file appearing twice keeps its last block.
func EditedLinesPerFile(diffText string) map[string][]int {
	edited := make(map[string][]int)
	for _, d := range Parse(diffText) {
		edited[d.FileName] = d.OldLineNumbers()
	}
	return edited
}

// ExtractPathFromDiff finds the file path in a raw diff string.
func ExtractPathFromDiff(content string) string {
	match := filePathRegex.FindStringSubmatch(content)
	if len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}
