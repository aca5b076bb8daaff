package linediff

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/sokinpui/diffkit/model"
)

// Difflib diffs with difflib's SequenceMatcher (autojunk on, as in
// unified_diff).
type Difflib struct{}

func (Difflib) Name() string { return "difflib" }

func (Difflib) Diff(a, b []string) []Op {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	m := difflib.NewMatcher(a, b)
	return opsFromChunks(fromOpCodes(m.GetOpCodes()), a, b)
}

func (Difflib) Hunks(a, b []string, context int) []model.Hunk {
	if context < 0 {
		context = DefaultContext
	}
	m := difflib.NewMatcher(a, b)
	var hunks []model.Hunk
	for _, g := range m.GetGroupedOpCodes(context) {
		hunks = append(hunks, hunkFromGroup(fromOpCodes(g), a, b))
	}
	return hunks
}

func fromOpCodes(codes []difflib.OpCode) []chunk {
	out := make([]chunk, 0, len(codes))
	for _, c := range codes {
		out = append(out, chunk{Tag: c.Tag, I1: c.I1, I2: c.I2, J1: c.J1, J2: c.J2})
	}
	return out
}
