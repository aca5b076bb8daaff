package linediff

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sokinpui/diffkit/model"
)

// Myers diffs with diffmatchpatch in line mode, which yields a minimal edit
// script.
type Myers struct{}

func (Myers) Name() string { return "myers" }

func (Myers) Diff(a, b []string) []Op {
	return opsFromChunks(myersChunks(a, b), a, b)
}

func (Myers) Hunks(a, b []string, context int) []model.Hunk {
	var hunks []model.Hunk
	for _, g := range groupChunks(myersChunks(a, b), context) {
		hunks = append(hunks, hunkFromGroup(g, a, b))
	}
	return hunks
}

// myersChunks converts a line-mode diff into opcodes. Adjacent deletes and
// inserts collapse into one replace chunk regardless of the order
// diffmatchpatch emitted them in.
func myersChunks(a, b []string) []chunk {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	dmp := diffmatchpatch.New()
	ra, rb, _ := dmp.DiffLinesToRunes(terminated(a), terminated(b))
	diffs := dmp.DiffMainRunes(ra, rb, false)

	var chunks []chunk
	i, j := 0, 0
	dels, ins := 0, 0
	flush := func() {
		if dels == 0 && ins == 0 {
			return
		}
		tag := byte('r')
		switch {
		case ins == 0:
			tag = 'd'
		case dels == 0:
			tag = 'i'
		}
		chunks = append(chunks, chunk{Tag: tag, I1: i, I2: i + dels, J1: j, J2: j + ins})
		i += dels
		j += ins
		dels, ins = 0, 0
	}

	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		if n == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			chunks = append(chunks, chunk{Tag: 'e', I1: i, I2: i + n, J1: j, J2: j + n})
			i += n
			j += n
		case diffmatchpatch.DiffDelete:
			dels += n
		case diffmatchpatch.DiffInsert:
			ins += n
		}
	}
	flush()
	return chunks
}

// terminated joins lines so that every line, including the last, ends in
// "\n". Line mode hashes whole lines, so a missing final newline would make
// an unchanged last line look different.
func terminated(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
