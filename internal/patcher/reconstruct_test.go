package patcher

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/diffkit/internal/fragment"
	"github.com/sokinpui/diffkit/internal/linediff"
	"github.com/sokinpui/diffkit/internal/parser"
)

func lines(ss ...string) string {
	return strings.Join(ss, "\n")
}

func numbered(prefix string, from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, prefix+strconv.Itoa(i))
	}
	return out
}

func TestReconstruct_SingleFragment(t *testing.T) {
	orig := lines(
		"def gcd(a, b):",
		"    while b:",
		"        a, b = b, a % b",
		"    return a",
	)
	edited := strings.Replace(orig, "a % b", "a - b", 1)

	res, err := Reconstruct(
		map[string]string{"m.py#L1": orig},
		map[string]string{"m.py#L1": edited},
		DefaultOptions(),
	)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, []string{"m.py"}, res.Files)
	assert.Equal(t, lines(
		"diff --git a/m.py b/m.py",
		"--- a/m.py",
		"+++ b/m.py",
		"@@ -1,4 +1,4 @@",
		" def gcd(a, b):",
		"     while b:",
		"-        a, b = b, a % b",
		"+        a, b = b, a - b",
		"     return a",
		"",
	), res.Diff)

	_, err = parser.Validate(res.Diff)
	require.NoError(t, err)
}

func TestReconstruct_WholeFragmentReplaced(t *testing.T) {
	base := lines(
		"def gcd(a, b=0):",
		"    if b == 0:",
		"        return a",
		"    return gcd(b, a % b)",
	)
	edited := lines(
		"def gcd(a, b):",
		"    while b:",
		"        a, b = b, a % b",
		"    return a",
	)

	res, err := Reconstruct(
		map[string]string{"gcd.py#L1": base},
		map[string]string{"gcd.py#L1": edited},
		DefaultOptions(),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"gcd.py"}, res.Files)
	assert.Equal(t, lines(
		"diff --git a/gcd.py b/gcd.py",
		"--- a/gcd.py",
		"+++ b/gcd.py",
		"@@ -1,4 +1,4 @@",
		"-def gcd(a, b=0):",
		"-    if b == 0:",
		"-        return a",
		"-    return gcd(b, a % b)",
		"+def gcd(a, b):",
		"+    while b:",
		"+        a, b = b, a % b",
		"+    return a",
		"",
	), res.Diff)
}

func TestReconstruct_SecondFragmentShiftedByFirst(t *testing.T) {
	file := numbered("l", 1, 12)
	base := map[string]string{
		"f.txt#L1":  lines("l1", "l2", "l3"),
		"f.txt#L10": "l10",
	}
	edited := map[string]string{
		"f.txt#L1":  lines("l1", "l3"),
		"f.txt#L10": "L10",
	}

	res, err := Reconstruct(base, edited, DefaultOptions())
	require.NoError(t, err)

	files := parser.Parse(res.Diff)
	require.Len(t, files, 1)
	hunks := files[0].Hunks
	require.Len(t, hunks, 2)
	assert.Equal(t, "@@ -1,3 +1,2 @@", hunks[0].Header())
	assert.Equal(t, "@@ -10,1 +9,1 @@", hunks[1].Header())

	patched, err := ApplyDiff(res.Diff, map[string]string{"f.txt": lines(file...)})
	require.NoError(t, err)
	want := append([]string{"l1"}, file[2:9]...)
	want = append(want, "L10", "l11", "l12")
	assert.Equal(t, lines(want...), patched["f.txt"])
}

func TestReconstruct_MultiHunkFragmentShiftsOnce(t *testing.T) {
	a := numbered("a", 1, 10)
	file := append(append(append([]string{}, a...), numbered("f", 11, 19)...), "b20")

	edA := append([]string{"a1", "x"}, a[1:9]...)
	edA = append(edA, "A10")

	base := map[string]string{"g.txt#L1": lines(a...), "g.txt#L20": "b20"}
	edited := map[string]string{"g.txt#L1": lines(edA...), "g.txt#L20": "B20"}

	opts := DefaultOptions()
	opts.Context = 1
	res, err := Reconstruct(base, edited, opts)
	require.NoError(t, err)

	hunks := parser.Parse(res.Diff)[0].Hunks
	require.Len(t, hunks, 3)
	assert.Equal(t, "@@ -1,2 +1,3 @@", hunks[0].Header())
	assert.Equal(t, "@@ -9,2 +10,2 @@", hunks[1].Header())
	assert.Equal(t, "@@ -20,1 +21,1 @@", hunks[2].Header())

	patched, err := ApplyDiff(res.Diff, map[string]string{"g.txt": lines(file...)})
	require.NoError(t, err)
	want := append(append([]string{}, edA...), numbered("f", 11, 19)...)
	want = append(want, "B20")
	assert.Equal(t, lines(want...), patched["g.txt"])
}

func TestReconstruct_SkipsUnknownAndInvalid(t *testing.T) {
	base := map[string]string{"f.txt#L1": "a"}
	edited := map[string]string{
		"f.txt#L1":   "b",
		"missing#L3": "x",
		"bogus":      "y",
	}
	res, err := Reconstruct(base, edited, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Skipped, 2)
	assert.True(t, errors.Is(res.Skipped[0], fragment.ErrInvalidID))
	assert.True(t, errors.Is(res.Skipped[1], ErrUnknownFragment))
	assert.Equal(t, []string{"f.txt"}, res.Files)
}

func TestReconstruct_Empty(t *testing.T) {
	res, err := Reconstruct(nil, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "", res.Diff)

	res, err = Reconstruct(map[string]string{"f#L2": "same"}, map[string]string{"f#L2": "same"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "", res.Diff)
	assert.Empty(t, res.Files)
}

func TestReconstruct_Overlap(t *testing.T) {
	base := map[string]string{"f#L1": lines("a", "b", "c"), "f#L3": lines("c", "d")}
	edited := map[string]string{"f#L1": lines("a", "B", "c"), "f#L3": lines("c", "D")}

	_, err := Reconstruct(base, edited, DefaultOptions())
	require.True(t, errors.Is(err, ErrOverlappingFragments))

	opts := DefaultOptions()
	opts.Overlap = OverlapSkip
	res, err := Reconstruct(base, edited, opts)
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	assert.True(t, errors.Is(res.Skipped[0], ErrOverlappingFragments))
	assert.Contains(t, res.Diff, "+B\n")
	assert.NotContains(t, res.Diff, "+D\n")
}

func TestReconstruct_DiffersAgree(t *testing.T) {
	base := map[string]string{"p.go#L5": lines("x := 1", "y := 2", "return x + y")}
	edited := map[string]string{"p.go#L5": lines("x := 1", "y := 3", "return x + y")}

	var diffs []string
	for _, d := range []linediff.Differ{linediff.Difflib{}, linediff.Myers{}} {
		opts := DefaultOptions()
		opts.Differ = d
		res, err := Reconstruct(base, edited, opts)
		require.NoError(t, err)
		diffs = append(diffs, res.Diff)
	}
	assert.Equal(t, diffs[0], diffs[1])
	assert.Contains(t, diffs[0], "@@ -5,3 +5,3 @@\n")
}

func TestParseOverlapPolicy(t *testing.T) {
	p, err := ParseOverlapPolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, OverlapSkip, p)

	p, err = ParseOverlapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OverlapReject, p)

	_, err = ParseOverlapPolicy("merge")
	require.Error(t, err)
}
