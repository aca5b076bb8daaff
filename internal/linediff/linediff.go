// Package linediff computes line-level edit scripts between two line
// sequences and groups them into unified-diff hunks.
//
// Two differs are provided. Difflib reproduces the hunks of the conventional
// difflib.unified_diff tool byte for byte; Myers computes a minimal edit
// script. Both emit deletions before insertions inside a change run, and both
// number hunk headers the way unified diffs do: an empty range names the line
// before it (e.g. "-3,0").
package linediff

import (
	"fmt"

	"github.com/sokinpui/diffkit/model"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// Kind is the kind of a line operation.
type Kind int

const (
	Keep Kind = iota
	Delete
	Insert
)

func (k Kind) String() string {
	switch k {
	case Keep:
		return "keep"
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	default:
		return "unknown"
	}
}

// Op is one line of an edit script.
type Op struct {
	Kind Kind
	Line string
}

// Differ computes edit scripts between line sequences.
type Differ interface {
	// Name identifies the differ, e.g. on the command line.
	Name() string
	// Diff returns the full edit script from a to b.
	Diff(a, b []string) []Op
	// Hunks groups the edit script into hunks with context lines of context.
	// Identical inputs yield no hunks.
	Hunks(a, b []string, context int) []model.Hunk
}

// New returns the differ registered under name.
func New(name string) (Differ, error) {
	switch name {
	case "", "difflib":
		return Difflib{}, nil
	case "myers":
		return Myers{}, nil
	default:
		return nil, fmt.Errorf("unknown differ %q (want difflib or myers)", name)
	}
}

// chunk is an opcode over a and b: a[I1:I2] relates to b[J1:J2].
type chunk struct {
	Tag            byte // 'e' equal, 'd' delete, 'i' insert, 'r' replace
	I1, I2, J1, J2 int
}

func opsFromChunks(chunks []chunk, a, b []string) []Op {
	var ops []Op
	for _, c := range chunks {
		switch c.Tag {
		case 'e':
			for _, l := range a[c.I1:c.I2] {
				ops = append(ops, Op{Kind: Keep, Line: l})
			}
		case 'd', 'i', 'r':
			for _, l := range a[c.I1:c.I2] {
				ops = append(ops, Op{Kind: Delete, Line: l})
			}
			for _, l := range b[c.J1:c.J2] {
				ops = append(ops, Op{Kind: Insert, Line: l})
			}
		}
	}
	return ops
}

// hunkFromGroup renders one group of chunks, numbering the header like
// unified_diff's range formatting.
func hunkFromGroup(group []chunk, a, b []string) model.Hunk {
	first, last := group[0], group[len(group)-1]
	h := model.Hunk{}
	h.OldStart, h.OldLen = unifiedRange(first.I1, last.I2)
	h.NewStart, h.NewLen = unifiedRange(first.J1, last.J2)
	for _, c := range group {
		if c.Tag == 'e' {
			for _, l := range a[c.I1:c.I2] {
				h.Lines = append(h.Lines, model.HunkLine{Op: model.OpContext, Text: l})
			}
			continue
		}
		for _, l := range a[c.I1:c.I2] {
			h.Lines = append(h.Lines, model.HunkLine{Op: model.OpRemoved, Text: l})
		}
		for _, l := range b[c.J1:c.J2] {
			h.Lines = append(h.Lines, model.HunkLine{Op: model.OpAdded, Text: l})
		}
	}
	return h
}

func unifiedRange(start, stop int) (int, int) {
	begin := start + 1
	length := stop - start
	if length == 0 {
		begin--
	}
	return begin, length
}

// groupChunks splits chunks into hunks with up to n lines of context, the
// same way difflib's get_grouped_opcodes does.
func groupChunks(codes []chunk, n int) [][]chunk {
	if n < 0 {
		n = DefaultContext
	}
	if len(codes) == 0 {
		codes = []chunk{{Tag: 'e', I1: 0, I2: 1, J1: 0, J2: 1}}
	}
	codes = append([]chunk(nil), codes...)
	if c := codes[0]; c.Tag == 'e' {
		codes[0] = chunk{Tag: 'e', I1: max(c.I1, c.I2-n), I2: c.I2, J1: max(c.J1, c.J2-n), J2: c.J2}
	}
	if c := codes[len(codes)-1]; c.Tag == 'e' {
		codes[len(codes)-1] = chunk{Tag: 'e', I1: c.I1, I2: min(c.I2, c.I1+n), J1: c.J1, J2: min(c.J2, c.J1+n)}
	}

	nn := n + n
	var groups [][]chunk
	var group []chunk
	for _, c := range codes {
		i1, j1 := c.I1, c.J1
		if c.Tag == 'e' && c.I2-c.I1 > nn {
			group = append(group, chunk{Tag: 'e', I1: i1, I2: min(c.I2, i1+n), J1: j1, J2: min(c.J2, j1+n)})
			groups = append(groups, group)
			group = nil
			i1, j1 = max(i1, c.I2-n), max(j1, c.J2-n)
		}
		group = append(group, chunk{Tag: c.Tag, I1: i1, I2: c.I2, J1: j1, J2: c.J2})
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].Tag == 'e') {
		groups = append(groups, group)
	}
	return groups
}

// HasChanges reports whether ops contain anything but Keep.
func HasChanges(ops []Op) bool {
	for _, op := range ops {
		if op.Kind != Keep {
			return true
		}
	}
	return false
}
