package cli

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("diffkit", pflag.ContinueOnError)
	return parse(fs, args)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parseArgs(t)
	require.NoError(t, err)
	assert.Equal(t, ModeApply, cfg.Mode())
	assert.Equal(t, 3, cfg.Context)
	assert.Equal(t, "difflib", cfg.Differ)
	assert.Equal(t, "reject", cfg.Overlap)
	assert.Equal(t, "line", cfg.Metric)
	assert.False(t, cfg.PrintsToStdout())

	cfg, err = parseArgs(t, "--edit", "a.py", "--exec", "cat", "-n")
	require.NoError(t, err)
	assert.True(t, cfg.PrintsToStdout())
}

func TestParse_Modes(t *testing.T) {
	tests := []struct {
		args []string
		want Mode
	}{
		{[]string{"-a"}, ModeApply},
		{[]string{"-p"}, ModeParse},
		{[]string{"-o"}, ModeOutputDiffFix},
		{[]string{"-f", "base.yaml"}, ModeReconstruct},
		{[]string{"--extract", "-"}, ModeExtract},
		{[]string{"--edit", "a.py", "--lines", "1", "--exec", "cat"}, ModeEdit},
		{[]string{"-s", "eval.jsonl"}, ModeScore},
		{[]string{"-u"}, ModeUndo},
		{[]string{"--redo"}, ModeRedo},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			cfg, err := parseArgs(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Mode())
		})
	}
}

func TestParse_Validation(t *testing.T) {
	_, err := parseArgs(t, "-p", "-o")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output-diff-fix, --parse are mutually exclusive")

	_, err = parseArgs(t, "-u", "-r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--redo, --undo are mutually exclusive")

	_, err = parseArgs(t, "-q", "-v")
	require.Error(t, err)

	_, err = parseArgs(t, "--edit", "a.py", "--lines", "1")
	require.Error(t, err)

	_, err = parseArgs(t, "--workers", "0")
	require.Error(t, err)

	_, err = parseArgs(t, "--edit", "a.py", "--exec", "cat", "--lines", "x")
	require.Error(t, err)
}

func TestParse_ExtensionsNormalized(t *testing.T) {
	cfg, err := parseArgs(t, "-e", "py,.go")
	require.NoError(t, err)
	assert.Equal(t, []string{".py", ".go"}, cfg.Extensions)
}

func TestParseLines(t *testing.T) {
	got, err := ParseLines("3, 5-7,10")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 6, 7, 10}, got)

	_, err = ParseLines("9-4")
	require.Error(t, err)
}
