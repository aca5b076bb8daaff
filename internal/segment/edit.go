package segment

import (
	"fmt"
	"strings"

	"github.com/sokinpui/diffkit/model"
)

// EditFunc rewrites one snippet of fileRef. The snippet is the segment's
// lines joined by "\n"; the result is split on "\n" and spliced back.
type EditFunc func(fileRef, snippet string) (string, error)

// editState is the fold accumulator: the buffer so far and the offset that
// maps an original 1-based line number to a buffer index.
type editState struct {
	buf   []string
	delta int
}

func (s editState) bounds(r model.LineRange) (lo, hi int) {
	clamp := func(i int) int {
		return max(0, min(i, len(s.buf)))
	}
	return clamp(r.Start + s.delta), clamp(r.End + s.delta)
}

func (s editState) snippet(r model.LineRange) string {
	lo, hi := s.bounds(r)
	return strings.Join(s.buf[lo:hi], "\n")
}

func (s editState) splice(r model.LineRange, edited string) editState {
	lo, hi := s.bounds(r)
	replacement := strings.Split(edited, "\n")

	buf := make([]string, 0, len(s.buf)-(hi-lo)+len(replacement))
	buf = append(buf, s.buf[:lo]...)
	buf = append(buf, replacement...)
	buf = append(buf, s.buf[hi:]...)

	return editState{buf: buf, delta: s.delta + len(replacement) - r.Len()}
}

// Apply runs edit over every contiguous run of lines in fileLines, in
// ascending order, and returns the reassembled text. Line numbers always
// refer to fileLines; the shift caused by earlier replacements is tracked
// internally. fileLines is not modified, and an error from edit is returned
// as is.
func Apply(fileRef string, fileLines []string, lines []int, edit EditFunc) (string, error) {
	segments, err := Plan(lines)
	if err != nil {
		return "", err
	}

	state := editState{buf: fileLines, delta: -1}
	for _, seg := range segments {
		if seg.Start <= 0 || seg.End <= seg.Start {
			return "", fmt.Errorf("%w: segment [%d, %d)", ErrInvalidLineNumber, seg.Start, seg.End)
		}
		edited, err := edit(fileRef, state.snippet(seg))
		if err != nil {
			return "", err
		}
		state = state.splice(seg, edited)
	}
	return strings.Join(state.buf, "\n"), nil
}

// ApplyText is Apply over text split on "\n".
func ApplyText(fileRef, text string, lines []int, edit EditFunc) (string, error) {
	return Apply(fileRef, strings.Split(text, "\n"), lines, edit)
}
