package patcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/diffkit/internal/fs"
	"github.com/sokinpui/diffkit/internal/parser"
)

func TestApplyDiff(t *testing.T) {
	diff := lines(
		"diff --git a/keep.txt b/keep.txt",
		"--- a/keep.txt",
		"+++ b/keep.txt",
		"@@ -2,1 +2,2 @@",
		"-b",
		"+B",
		"+B2",
		"diff --git a/new.txt b/new.txt",
		"new file mode 100644",
		"--- /dev/null",
		"+++ b/new.txt",
		"@@ -0,0 +1 @@",
		"+hi",
		"diff --git a/gone.txt b/gone.txt",
		"deleted file mode 100644",
		"--- a/gone.txt",
		"+++ /dev/null",
		"@@ -1 +0,0 @@",
		"-bye",
		"",
	)
	contents := map[string]string{
		"keep.txt":  "a\nb\nc",
		"gone.txt":  "bye\n",
		"other.txt": "untouched",
	}

	got, err := ApplyDiff(diff, contents)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"keep.txt":  "a\nB\nB2\nc",
		"new.txt":   "hi\n",
		"other.txt": "untouched",
	}, got)
	assert.Equal(t, "a\nb\nc", contents["keep.txt"])
}

func TestApplyDiff_Conflict(t *testing.T) {
	diff := "--- a/f\n+++ b/f\n@@ -1 +1 @@\n-nope\n+yes\n"
	_, err := ApplyDiff(diff, map[string]string{"f": "other\n"})
	require.Error(t, err)

	_, err = ApplyDiff(diff, map[string]string{})
	require.Error(t, err)
}

func TestRecount(t *testing.T) {
	source := []string{"a", "b", "c", "d", "e", "f"}
	raw := lines(
		"--- a/x.txt",
		"+++ b/x.txt",
		"@@ -40,2 +40,9 @@",
		" a",
		"+new",
		" b",
		"@@ -1 +1 @@",
		" e",
		"-f",
	)
	got, err := Recount(source, raw, "x.txt")
	require.NoError(t, err)
	assert.Equal(t, lines(
		"--- a/x.txt",
		"+++ b/x.txt",
		"@@ -1,2 +1,3 @@",
		" a",
		"+new",
		" b",
		"@@ -5,2 +6,1 @@",
		" e",
		"-f",
		"",
	), got)

	patched, err := ApplyDiff(got, map[string]string{"x.txt": lines(source...)})
	require.NoError(t, err)
	assert.Equal(t, lines("a", "new", "b", "c", "d", "e"), patched["x.txt"])
}

func TestRecount_WhitespaceTolerantAndBlankLead(t *testing.T) {
	source := []string{"func f() {", "", "\treturn  1", "}"}
	raw := "@@ -9,9 +9,9 @@\n \n-  return 1\n+\treturn 2\n"
	got, err := Recount(source, raw, "f.go")
	require.NoError(t, err)
	assert.Contains(t, got, "@@ -2,2 +2,2 @@\n")
}

func TestRecount_PureAdditionAndNoMatch(t *testing.T) {
	got, err := Recount(nil, "@@ -0,0 +1,2 @@\n+a\n+b\n", "n.txt")
	require.NoError(t, err)
	assert.Equal(t, "--- a/n.txt\n+++ b/n.txt\n@@ -0,0 +1,2 @@\n+a\n+b\n", got)

	_, err = Recount([]string{"x"}, "@@ -1 +1 @@\n-y\n+z\n", "n.txt")
	assert.True(t, errors.Is(err, ErrNoMatch))

	got, err = Recount([]string{"x"}, "no hunks here", "n.txt")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestGeneratePatchedContents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {\n\tprintln(1)\n}\n"), 0o644))

	doc := "Fix it:\n\n```diff\n--- a/main.go\n+++ b/main.go\n@@ -7,3 +7,3 @@\n func main() {\n-\tprintln(1)\n+\tprintln(2)\n }\n```\n\n" +
		"```diff\n--- a/missing.go\n+++ b/missing.go\n@@ -1 +1 @@\n-x\n+y\n```\n\n" +
		"```diff\n--- a/skip.py\n+++ b/skip.py\n@@ -0,0 +1 @@\n+z\n```\n"
	blocks, err := parser.ExtractDiffBlocks(doc)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	resolver := fs.NewPathResolver([]string{dir})
	changes, failed := GeneratePatchedContents(blocks, resolver, []string{".go"})
	require.Len(t, changes, 1)
	assert.Equal(t, filepath.Join(dir, "main.go"), changes[0].Path)
	assert.Equal(t, "package main\n\nfunc main() {\n\tprintln(2)\n}\n", changes[0].Content)
	assert.False(t, changes[0].Created)
	assert.Equal(t, []string{filepath.Join(dir, "missing.go")}, failed)
}
