package localization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/diffkit/model"
)

func TestToBinary_Order(t *testing.T) {
	yTrue, yPred := ToBinary(NewSet("a", "b"), NewSet("b", "c"))
	assert.Equal(t, []bool{true, true, false}, yTrue)
	assert.Equal(t, []bool{true, false, true}, yPred)

	yTrue, yPred = ToBinary(NewSet(1, 2, 3), NewSet[int]())
	assert.Equal(t, []bool{true, true, true}, yTrue)
	assert.Equal(t, []bool{false, false, false}, yPred)
}

func TestScore(t *testing.T) {
	s := Score(ToBinary(NewSet("a.py", "b.py"), NewSet("b.py", "c.py")))
	assert.InDelta(t, 0.5, s.Precision, 1e-9)
	assert.InDelta(t, 0.5, s.Recall, 1e-9)
	assert.InDelta(t, 0.5, s.F1, 1e-9)

	assert.Equal(t, model.Scores{}, Score(nil, nil))
	assert.Equal(t, model.Scores{Precision: 0, Recall: 0, F1: 0}, Score([]bool{true}, []bool{false}))
	assert.Equal(t, model.Scores{Precision: 1, Recall: 1, F1: 1}, Score([]bool{true, true}, []bool{true, true}))
}

const trueDiff = "diff --git a/a.py b/a.py\n--- a/a.py\n+++ b/a.py\n@@ -3,2 +3,2 @@\n-x\n+X\n y\n" +
	"diff --git a/b.py b/b.py\n--- a/b.py\n+++ b/b.py\n@@ -10 +10 @@\n-p\n+q\n"

func TestClassify_FileAndLine(t *testing.T) {
	pred := "```diff\ndiff --git a/a.py b/a.py\n--- a/a.py\n+++ b/a.py\n@@ -4,2 +4,2 @@\n-y\n+Y\n z\n```"
	s := Sample{DiffTrue: trueDiff, DiffPred: pred}

	c, err := FileEdit().Classify(s)
	require.NoError(t, err)
	got := Score(c.YTrue, c.YPred)
	assert.InDelta(t, 1.0, got.Precision, 1e-9)
	assert.InDelta(t, 0.5, got.Recall, 1e-9)

	// Truth lines {a:3,4; b:10}, predicted {a:4,5}.
	c, err = LineEdit().Classify(s)
	require.NoError(t, err)
	got = Score(c.YTrue, c.YPred)
	assert.InDelta(t, 0.5, got.Precision, 1e-9)
	assert.InDelta(t, 1.0/3, got.Recall, 1e-9)
}

func TestClassify_SkipsPredictionWithoutPatch(t *testing.T) {
	c, err := LineEdit().Classify(Sample{DiffTrue: trueDiff, DiffPred: "I am not sure what to change."})
	require.NoError(t, err)
	assert.True(t, c.Skipped)
	assert.Empty(t, c.YTrue)
}

func TestClassify_RawPredictionAfterBlankLine(t *testing.T) {
	for _, m := range []Metric{FileEdit(), LineEdit()} {
		c, err := m.Classify(Sample{DiffTrue: trueDiff, DiffPred: "\n" + trueDiff})
		require.NoError(t, err)
		assert.False(t, c.Skipped)
		assert.InDelta(t, 1.0, Score(c.YTrue, c.YPred).F1, 1e-9)
	}
}

func TestClassify_View(t *testing.T) {
	s := Sample{DiffTrue: trueDiff, Viewed: map[string][]int{"b.py": {9, 10, 11}, "c.py": {1}}}

	c, err := FileView().Classify(s)
	require.NoError(t, err)
	got := Score(c.YTrue, c.YPred)
	assert.InDelta(t, 0.5, got.F1, 1e-9)

	c, err = LineView().Classify(s)
	require.NoError(t, err)
	// tp: b:10; fn: a:3, a:4; fp: b:9, b:11, c:1.
	assert.Len(t, c.YTrue, 6)
	got = Score(c.YTrue, c.YPred)
	assert.InDelta(t, 0.25, got.Precision, 1e-9)
	assert.InDelta(t, 1.0/3, got.Recall, 1e-9)
}

type fakeScopes map[string]map[int]string

func (f fakeScopes) Supports(path string) bool {
	_, ok := f[path]
	return ok
}

func (f fakeScopes) ScopeOf(file string, line int) (string, error) {
	if s, ok := f[file][line]; ok {
		return s, nil
	}
	return "", errors.New("no scope")
}

func TestClassify_Scope(t *testing.T) {
	scopes := fakeScopes{
		"a.py": {3: "A.f", 4: "A.f", 5: "A.g"},
	}
	s := Sample{DiffTrue: trueDiff, Viewed: map[string][]int{"a.py": {4, 5, 99}, "b.py": {10}}}

	c, err := ScopeView(scopes).Classify(s)
	require.NoError(t, err)
	// b.py is unsupported; in a.py truth {A.f}, pred {A.f, A.g, -1}.
	got := Score(c.YTrue, c.YPred)
	assert.InDelta(t, 1.0/3, got.Precision, 1e-9)
	assert.InDelta(t, 1.0, got.Recall, 1e-9)

	_, err = Metric{Level: ScopeLevel}.Classify(s)
	assert.True(t, errors.Is(err, ErrNoResolver))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("line", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "line_view", m.Name())

	_, err = ParseMetric("scope", false, nil)
	assert.True(t, errors.Is(err, ErrNoResolver))

	_, err = ParseMetric("token", false, nil)
	require.Error(t, err)
}

func TestAccumulate(t *testing.T) {
	results := []Classification{
		{YTrue: []bool{true, true}, YPred: []bool{true, false}},
		{Skipped: true},
	}
	r := Accumulate("line_edit", results, true)
	assert.Equal(t, 2, r.Count)
	assert.Equal(t, 1, r.Skipped)
	assert.InDelta(t, 0.5, r.Precision, 1e-9)
	assert.InDelta(t, 0.25, r.Recall, 1e-9)
	require.Len(t, r.Samples, 2)
	assert.Equal(t, model.Scores{}, r.Samples[1])

	assert.Equal(t, Report{Metric: "x"}, Accumulate("x", nil, false))
}
