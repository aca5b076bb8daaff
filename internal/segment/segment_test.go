package segment

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/diffkit/model"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		lines []int
		want  []model.LineRange
	}{
		{name: "empty", lines: nil, want: nil},
		{name: "single", lines: []int{4}, want: []model.LineRange{{Start: 4, End: 5}}},
		{name: "runs", lines: []int{2, 3, 5, 6, 8, 9}, want: []model.LineRange{{2, 4}, {5, 7}, {8, 10}}},
		{name: "unsorted with duplicates", lines: []int{9, 3, 2, 3, 8}, want: []model.LineRange{{2, 4}, {8, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.lines)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_RejectsNonPositive(t *testing.T) {
	for _, lines := range [][]int{{0}, {3, -1}} {
		_, err := Plan(lines)
		assert.True(t, errors.Is(err, ErrInvalidLineNumber), "%v", lines)
	}
}

func wrap(_ string, snippet string) (string, error) {
	return "<edited>" + snippet + "</edited>", nil
}

func TestApplyText_WrapsEachSegment(t *testing.T) {
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, "line "+strconv.Itoa(i))
	}
	got, err := ApplyText("f.txt", strings.Join(lines, "\n"), []int{2, 3, 5, 6, 8, 9}, wrap)
	require.NoError(t, err)
	assert.Equal(t, "line 1\n<edited>line 2\nline 3</edited>\nline 4\n<edited>line 5\nline 6</edited>\nline "+
		"7\n<edited>line 8\nline 9</edited>\nline 10", got)
}

func TestApply_OffsetPropagation(t *testing.T) {
	file := []string{"a", "b", "c", "d", "e"}
	var seen []string
	edit := func(_ string, snippet string) (string, error) {
		seen = append(seen, snippet)
		switch snippet {
		case "b":
			return "b1\nb2", nil
		case "d":
			return "D", nil
		}
		return snippet, nil
	}

	got, err := Apply("f", file, []int{2, 4}, edit)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, seen)
	assert.Equal(t, "a\nb1\nb2\nc\nD\ne", got)

	// Shrinking shifts later segments the other way.
	seen = nil
	got, err = Apply("f", []string{"a", "b", "c", "d"}, []int{1, 2, 4}, func(_ string, s string) (string, error) {
		seen = append(seen, s)
		if s == "a\nb" {
			return "ab", nil
		}
		return "D", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a\nb", "d"}, seen)
	assert.Equal(t, "ab\nc\nD", got)
}

func TestApply_IdentityRoundTrip(t *testing.T) {
	file := []string{"x", "", "y", "z", "", "w"}
	identity := func(_ string, s string) (string, error) { return s, nil }
	for _, lines := range [][]int{nil, {1}, {2, 3}, {1, 2, 3, 4, 5, 6}, {6}, {2, 5}} {
		got, err := Apply("f", file, lines, identity)
		require.NoError(t, err)
		assert.Equal(t, strings.Join(file, "\n"), got, "%v", lines)
	}
}

func TestApply_ClampsPastEnd(t *testing.T) {
	got, err := Apply("f", []string{"a", "b"}, []int{2, 3, 4}, wrap)
	require.NoError(t, err)
	assert.Equal(t, "a\n<edited>b</edited>", got)
}

func TestApply_CallbackErrorIsVerbatimAndInputUntouched(t *testing.T) {
	file := []string{"a", "b", "c"}
	boom := errors.New("boom")
	calls := 0
	edit := func(_ string, s string) (string, error) {
		calls++
		if calls == 2 {
			return "", boom
		}
		return "X\nY", nil
	}

	_, err := Apply("f", file, []int{1, 3}, edit)
	require.Equal(t, boom, err)
	assert.Equal(t, []string{"a", "b", "c"}, file)

	got, err := Apply("f", file, []int{1, 3}, func(_ string, s string) (string, error) { return s, nil })
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc", got)
}

func TestApply_InvalidLine(t *testing.T) {
	called := false
	_, err := Apply("f", []string{"a"}, []int{0, 1}, func(string, string) (string, error) {
		called = true
		return "", nil
	})
	assert.True(t, errors.Is(err, ErrInvalidLineNumber))
	assert.False(t, called)
}
