package model

import (
	"fmt"
	"strings"
)

// LineOp tags a line inside a hunk body.
type LineOp byte

const (
	OpContext LineOp = ' '
	OpRemoved LineOp = '-'
	OpAdded   LineOp = '+'
)

// HunkLine is one body line of a hunk, without its prefix.
type HunkLine struct {
	Op   LineOp
	Text string
}

func (l HunkLine) String() string {
	return string(l.Op) + l.Text
}

// Hunk is one @@ block of a unified diff. Starts are 1-indexed; a length of 0
// means the range is empty and the start names the line before it.
type Hunk struct {
	OldStart int
	OldLen   int
	NewStart int
	NewLen   int
	Lines    []HunkLine
}

// Header renders the hunk header with explicit lengths.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLen, h.NewStart, h.NewLen)
}

// OldLines returns the removed and context lines in order.
func (h Hunk) OldLines() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Op == OpRemoved || l.Op == OpContext {
			out = append(out, l.Text)
		}
	}
	return out
}

// NewLines returns the added and context lines in order.
func (h Hunk) NewLines() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Op == OpAdded || l.Op == OpContext {
			out = append(out, l.Text)
		}
	}
	return out
}

// Counts returns the number of added and removed body lines.
func (h Hunk) Counts() (added, removed int) {
	for _, l := range h.Lines {
		switch l.Op {
		case OpAdded:
			added++
		case OpRemoved:
			removed++
		}
	}
	return added, removed
}

// String renders the header followed by the prefixed body, newline-terminated.
func (h Hunk) String() string {
	var b strings.Builder
	b.WriteString(h.Header())
	b.WriteByte('\n')
	for _, l := range h.Lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// ParsedDiff is one file's worth of a unified diff, hunks in document order.
type ParsedDiff struct {
	FileName string
	Hunks    []Hunk
}

// OldLineNumbers flattens range(OldStart, OldStart+OldLen) over every hunk
// that has at least one old-side line.
func (d ParsedDiff) OldLineNumbers() []int {
	var out []int
	for _, h := range d.Hunks {
		if len(h.OldLines()) == 0 {
			continue
		}
		for n := h.OldStart; n < h.OldStart+h.OldLen; n++ {
			out = append(out, n)
		}
	}
	return out
}

// NewLineNumbers is the new-side counterpart of OldLineNumbers.
func (d ParsedDiff) NewLineNumbers() []int {
	var out []int
	for _, h := range d.Hunks {
		if len(h.NewLines()) == 0 {
			continue
		}
		for n := h.NewStart; n < h.NewStart+h.NewLen; n++ {
			out = append(out, n)
		}
	}
	return out
}

// OldBlocks returns each hunk's old side as one text block, every line
// newline-terminated. Hunks without old lines contribute nothing.
func (d ParsedDiff) OldBlocks() []string {
	return blocks(d.Hunks, Hunk.OldLines)
}

// NewBlocks is the new-side counterpart of OldBlocks.
func (d ParsedDiff) NewBlocks() []string {
	return blocks(d.Hunks, Hunk.NewLines)
}

func blocks(hunks []Hunk, side func(Hunk) []string) []string {
	var out []string
	for _, h := range hunks {
		lines := side(h)
		if len(lines) == 0 {
			continue
		}
		out = append(out, strings.Join(lines, "\n")+"\n")
	}
	return out
}

// LineRange is a half-open, 1-indexed range [Start, End).
type LineRange struct {
	Start int
	End   int
}

// Len is the number of lines in the range.
func (r LineRange) Len() int {
	return r.End - r.Start
}

// Fragment is a line-addressed snippet of a file submitted for editing.
type Fragment struct {
	FileName     string
	StartLine    int
	OriginalText string
	EditedText   string
}

// ID returns the fragment's identifier.
func (f Fragment) ID() FragmentID {
	return FragmentID{FileName: f.FileName, StartLine: f.StartLine}
}

// FragmentID addresses a fragment as "<file>#L<start>".
type FragmentID struct {
	FileName  string
	StartLine int
}

func (id FragmentID) String() string {
	return fmt.Sprintf("%s#L%d", id.FileName, id.StartLine)
}

// Scores holds binary classification scores.
type Scores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Failed   []string
	Message  string
	// Output is printed to stdout after the summary, e.g. a diff or JSON report.
	Output string
}
