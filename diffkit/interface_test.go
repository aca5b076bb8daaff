package diffkit_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/diffkit/diffkit"
)

func TestApply(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "web/src/index.js", "console.log(\"hello\");\n")

	const content = "```diff\n--- a/web/src/index.js\n+++ b/web/src/index.js\n@@ -1 +1 @@\n-console.log(\"hello\");\n+console.log(\"hello world\");\n```"

	result, err := diffkit.Apply(content, diffkit.Config{LookupDirs: []string{dir}})
	require.NoError(t, err)
	require.Len(t, result["Modified"], 1)
	assert.True(t, strings.HasSuffix(result["Modified"][0], filepath.Join("web", "src", "index.js")))
	assert.Equal(t, "console.log(\"hello world\");\n", readFile(t, filepath.Join(dir, "web/src/index.js")))
}

func TestEditedLines(t *testing.T) {
	got, err := diffkit.EditedLines("--- a/a.py\n+++ b/a.py\n@@ -4,3 +4,1 @@\n-x\n-y\n z\n")
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"a.py": {4, 5, 6}}, got)

	parsed := diffkit.Parse("--- a/a.py\n+++ b/a.py\n@@ -4,3 +4,1 @@\n-x\n-y\n z\n")
	require.Len(t, parsed, 1)
	assert.Equal(t, "@@ -4,3 +4,1 @@", parsed[0].Hunks[0].Header())
}

func TestEditSegments(t *testing.T) {
	var seen []string
	got, err := diffkit.EditSegments("f.txt", "1\n2\n3\n4", []int{1, 3, 4}, func(fileRef, snippet string) (string, error) {
		seen = append(seen, snippet)
		return "<" + snippet + ">", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3\n4"}, seen)
	assert.Equal(t, "<1>\n2\n<3\n4>", got)
}

func TestFragmentRoundTrip(t *testing.T) {
	contents := map[string]string{"m.py": "a\nb\nc\nd"}
	diff := "--- a/m.py\n+++ b/m.py\n@@ -2,2 +2,2 @@\n-b\n+B\n c\n"

	prompt, base := diffkit.FragmentPrompt(diff, contents)
	assert.Equal(t, "[start of m.py#L2]\nb\nc\n[end of m.py#L2]", prompt)

	response := strings.Replace(prompt, "\nb\n", "\nB\n", 1)
	rebuilt, err := diffkit.ReconstructResponse(base, response)
	require.NoError(t, err)

	patched, err := diffkit.ApplyDiff(rebuilt, contents)
	require.NoError(t, err)
	assert.Equal(t, "a\nB\nc\nd", patched["m.py"])
}

func TestReconstruct(t *testing.T) {
	got, err := diffkit.Reconstruct(
		map[string]string{"x.txt#L1": "a\nb"},
		map[string]string{"x.txt#L1": "a\nc"},
		0,
	)
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/x.txt b/x.txt\n--- a/x.txt\n+++ b/x.txt\n@@ -2,1 +2,1 @@\n-b\n+c\n", got)
}

func TestScore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "m.py", "class A:\n    def f(self):\n        return 1\n")

	row, err := json.Marshal(map[string]any{
		"diff_true":    "--- a/m.py\n+++ b/m.py\n@@ -3 +3 @@\n-        return 1\n+        return 2\n",
		"diff_pred":    "",
		"viewed_lines": map[string][]int{"m.py": {2, 3}},
	})
	require.NoError(t, err)
	data := string(row) + "\n"

	report, err := diffkit.Score(context.Background(), strings.NewReader(data), "scope", true, dir)
	require.NoError(t, err)
	assert.Equal(t, "scope_view", report.Metric)
	assert.InDelta(t, 1.0, report.F1, 1e-9)
}
