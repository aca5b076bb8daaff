package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Mode selects what the app does with its source.
type Mode int

const (
	ModeApply Mode = iota
	ModeParse
	ModeOutputDiffFix
	ModeReconstruct
	ModeExtract
	ModeEdit
	ModeScore
	ModeUndo
	ModeRedo
)

func (m Mode) String() string {
	switch m {
	case ModeApply:
		return "apply"
	case ModeParse:
		return "parse"
	case ModeOutputDiffFix:
		return "output-diff-fix"
	case ModeReconstruct:
		return "reconstruct"
	case ModeExtract:
		return "extract"
	case ModeEdit:
		return "edit"
	case ModeScore:
		return "score"
	case ModeUndo:
		return "undo"
	case ModeRedo:
		return "redo"
	default:
		return "unknown"
	}
}

// Config holds all the command-line flag values.
type Config struct {
	Apply         bool
	Parse         bool
	OutputDiffFix bool
	Reconstruct   string
	Extract       string
	Edit          string
	Lines         []int
	Exec          string
	Score         string
	Undo          bool
	Redo          bool

	Metric    string
	View      bool
	Workers   int
	PerSample bool

	Context int
	Differ  string
	Overlap string
	Fence   bool

	Input       string
	LookupDirs  []string
	Extensions  []string
	DryRun      bool
	NoAnimation bool
	Quiet       bool
	Verbose     bool
}

// Mode reports the selected mode. Apply is the default.
func (c *Config) Mode() Mode {
	switch {
	case c.Parse:
		return ModeParse
	case c.OutputDiffFix:
		return ModeOutputDiffFix
	case c.Reconstruct != "":
		return ModeReconstruct
	case c.Extract != "":
		return ModeExtract
	case c.Edit != "":
		return ModeEdit
	case c.Score != "":
		return ModeScore
	case c.Undo:
		return ModeUndo
	case c.Redo:
		return ModeRedo
	default:
		return ModeApply
	}
}

// PrintsToStdout reports whether the mode writes its result to stdout, in
// which case the TUI is not started.
func (c *Config) PrintsToStdout() bool {
	switch c.Mode() {
	case ModeApply, ModeUndo, ModeRedo:
		return false
	case ModeEdit:
		return c.DryRun
	default:
		return true
	}
}

// Default returns the configuration used when no flags are given.
func Default() *Config {
	return &Config{Metric: "line", Workers: 4, Context: 3, Differ: "difflib", Overlap: "reject"}
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	return parse(pflag.CommandLine, os.Args[1:])
}

func parse(fs *pflag.FlagSet, args []string) (*Config, error) {
	cfg := Default()
	var lines string

	fs.BoolVarP(&cfg.Apply, "apply", "a", false, "Apply the diff blocks in the source to files (default).")
	fs.BoolVarP(&cfg.Parse, "parse", "p", false, "Print the edited lines per file of the source diff as JSON.")
	fs.BoolVarP(&cfg.OutputDiffFix, "output-diff-fix", "o", false, "Print the diff that corrected start and count.")
	fs.StringVarP(&cfg.Reconstruct, "reconstruct", "f", "", "Rebuild a diff from a fragment response, using `FILE` as the base fragments.")
	fs.StringVarP(&cfg.Extract, "extract", "x", "", "Print the fragments the diff in the source touches, writing them to `FILE` if set to a .yaml/.json path, or '-' for a prompt.")
	fs.StringVar(&cfg.Edit, "edit", "", "Edit line segments of `FILE` through --exec.")
	fs.StringVar(&lines, "lines", "", "Line numbers to edit, e.g. '3,5-9'.")
	fs.StringVar(&cfg.Exec, "exec", "", "Shell `CMD` that reads a snippet on stdin and prints its replacement.")
	fs.StringVarP(&cfg.Score, "score", "s", "", "Score localization over the JSONL dataset `FILE`.")

	// Mutually exclusive history group
	fs.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last operation that wrote files.")
	fs.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone operation.")

	fs.StringVar(&cfg.Metric, "metric", cfg.Metric, "Localization level: file, line or scope.")
	fs.BoolVar(&cfg.View, "view", false, "Score viewed lines instead of predicted edits.")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of samples scored concurrently.")
	fs.BoolVar(&cfg.PerSample, "per-sample", false, "Include per-sample scores in the report.")

	fs.IntVarP(&cfg.Context, "context", "c", cfg.Context, "Context lines around reconstructed hunks.")
	fs.StringVar(&cfg.Differ, "differ", cfg.Differ, "Line differ: difflib or myers.")
	fs.StringVar(&cfg.Overlap, "overlap", cfg.Overlap, "Overlapping fragments: reject or skip.")
	fs.BoolVar(&cfg.Fence, "fence", false, "Wrap emitted diffs in a markdown diff fence.")

	fs.StringVar(&cfg.Input, "input", "", "Read the source from `FILE` instead of stdin or the clipboard ('-' forces stdin).")
	fs.StringSliceVarP(&cfg.LookupDirs, "lookup-dir", "l", []string{}, "Directories to resolve relative paths against.")
	fs.StringSliceVarP(&cfg.Extensions, "extension", "e", []string{}, "Filter diff targets by extension (e.g., 'py', 'go').")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Report what would change without writing files.")
	fs.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable loading spinner and print the summary directly.")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", false, "Only print errors.")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Print debug output.")

	fs.Usage = func() {
		fmt.Println("Usage: diffkit [flags]")
		fmt.Println("\nRead model output from a file, stdin (pipe) or the clipboard and turn it into diffs and file edits.")
		fmt.Println("\nExamples:")
		fmt.Println("  pbpaste | diffkit -e py")
		fmt.Println("  diffkit -f fragments.yaml --input response.md --fence")
		fmt.Println("  diffkit -s eval.jsonl --metric scope --view")
		fmt.Println("\nFlags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if lines != "" {
		parsed, err := ParseLines(lines)
		if err != nil {
			return nil, err
		}
		cfg.Lines = parsed
	}

	// Normalize extensions
	for i, ext := range cfg.Extensions {
		if len(ext) > 0 && ext[0] != '.' {
			cfg.Extensions[i] = "." + ext
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var modes []string
	for name, on := range map[string]bool{
		"--apply":           c.Apply,
		"--parse":           c.Parse,
		"--output-diff-fix": c.OutputDiffFix,
		"--reconstruct":     c.Reconstruct != "",
		"--extract":         c.Extract != "",
		"--edit":            c.Edit != "",
		"--score":           c.Score != "",
		"--undo":            c.Undo,
		"--redo":            c.Redo,
	} {
		if on {
			modes = append(modes, name)
		}
	}
	if len(modes) > 1 {
		sort.Strings(modes)
		return fmt.Errorf("error: %s are mutually exclusive", strings.Join(modes, ", "))
	}
	if c.Quiet && c.Verbose {
		return errors.New("error: --quiet and --verbose are mutually exclusive")
	}
	if c.Edit != "" && c.Exec == "" {
		return errors.New("error: --edit requires --exec")
	}
	if c.Workers < 1 {
		return fmt.Errorf("error: --workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// ParseLines expands a comma-separated list of line numbers and inclusive
// ranges ("3,5-9") into line numbers.
func ParseLines(spec string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid line spec %q: %w", part, err)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid line spec %q: %w", part, err)
			}
		}
		if end < start {
			return nil, fmt.Errorf("invalid line spec %q: range is reversed", part)
		}
		for n := start; n <= end; n++ {
			out = append(out, n)
		}
	}
	return out, nil
}
