package localization

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sokinpui/diffkit/internal/parser"
	"github.com/sokinpui/diffkit/model"
)

// UnresolvedScope stands in for every line whose scope could not be
// resolved, so all such lines of a file count as one scope.
const UnresolvedScope = "-1"

// Level is the granularity a metric compares at.
type Level int

const (
	FileLevel Level = iota
	LineLevel
	ScopeLevel
)

func (l Level) String() string {
	switch l {
	case FileLevel:
		return "file"
	case LineLevel:
		return "line"
	case ScopeLevel:
		return "scope"
	default:
		return "unknown"
	}
}

// ScopeResolver names the enclosing scope of a line.
type ScopeResolver interface {
	// Supports reports whether the resolver understands path.
	Supports(path string) bool
	// ScopeOf returns an identifier of the innermost scope holding the
	// 1-based line of file.
	ScopeOf(file string, line int) (string, error)
}

// Sample is one scored example.
type Sample struct {
	DiffTrue string
	DiffPred string
	// Viewed maps files to the 1-based lines that were looked at.
	Viewed map[string][]int
}

// Classification is a sample reduced to label vectors.
type Classification struct {
	YTrue []bool
	YPred []bool
	// Skipped is set when the prediction held no patch; the vectors are then
	// empty and the sample scores zero.
	Skipped bool
}

// Metric compares the lines a true diff edits against a prediction.
type Metric struct {
	Level Level
	// View compares against Sample.Viewed instead of the predicted diff.
	View bool
	// Scopes is required at ScopeLevel.
	Scopes ScopeResolver
}

func FileEdit() Metric { return Metric{Level: FileLevel} }
func LineEdit() Metric { return Metric{Level: LineLevel} }
func FileView() Metric { return Metric{Level: FileLevel, View: true} }
func LineView() Metric { return Metric{Level: LineLevel, View: true} }

func ScopeEdit(r ScopeResolver) Metric { return Metric{Level: ScopeLevel, Scopes: r} }
func ScopeView(r ScopeResolver) Metric { return Metric{Level: ScopeLevel, View: true, Scopes: r} }

// ErrNoResolver is returned by scope metrics built without a resolver.
var ErrNoResolver = errors.New("scope metric needs a scope resolver")

// ParseMetric selects a metric by level name ("file", "line" or "scope").
func ParseMetric(name string, view bool, r ScopeResolver) (Metric, error) {
	m := Metric{View: view, Scopes: r}
	switch name {
	case "file":
		m.Level = FileLevel
	case "line":
		m.Level = LineLevel
	case "scope":
		if r == nil {
			return Metric{}, ErrNoResolver
		}
		m.Level = ScopeLevel
	default:
		return Metric{}, fmt.Errorf("unknown metric %q (want file, line or scope)", name)
	}
	return m, nil
}

// Name is e.g. "line_edit" or "scope_view".
func (m Metric) Name() string {
	if m.View {
		return m.Level.String() + "_view"
	}
	return m.Level.String() + "_edit"
}

// Classify reduces s to label vectors.
func (m Metric) Classify(s Sample) (Classification, error) {
	truth := parser.EditedLinesPerFile(s.DiffTrue)

	var pred map[string][]int
	if m.View {
		pred = s.Viewed
	} else {
		patch, ok := parser.ExtractPatch(s.DiffPred)
		if !ok {
			return Classification{Skipped: true}, nil
		}
		pred = parser.EditedLinesPerFile(patch)
	}

	var c Classification
	switch m.Level {
	case FileLevel:
		c.YTrue, c.YPred = ToBinary(keys(truth), keys(pred))
	case LineLevel:
		c.YTrue, c.YPred = lineLabels(truth, pred)
	case ScopeLevel:
		if m.Scopes == nil {
			return Classification{}, ErrNoResolver
		}
		c.YTrue, c.YPred = scopeLabels(truth, pred, m.Scopes)
	default:
		return Classification{}, fmt.Errorf("unknown level %d", m.Level)
	}
	return c, nil
}

func keys(m map[string][]int) map[string]struct{} {
	s := make(map[string]struct{}, len(m))
	for k := range m {
		s[k] = struct{}{}
	}
	return s
}

func unionFiles(a, b map[string][]int, keep func(string) bool) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var files []string
	for _, m := range []map[string][]int{a, b} {
		for f := range m {
			if _, ok := seen[f]; ok || (keep != nil && !keep(f)) {
				continue
			}
			seen[f] = struct{}{}
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files
}

func lineLabels(truth, pred map[string][]int) (yTrue, yPred []bool) {
	for _, f := range unionFiles(truth, pred, nil) {
		t, p := ToBinary(NewSet(truth[f]...), NewSet(pred[f]...))
		yTrue = append(yTrue, t...)
		yPred = append(yPred, p...)
	}
	return yTrue, yPred
}

func scopeLabels(truth, pred map[string][]int, r ScopeResolver) (yTrue, yPred []bool) {
	scopes := func(file string, lines []int) map[string]struct{} {
		out := make(map[string]struct{}, len(lines))
		for _, line := range lines {
			scope, err := r.ScopeOf(file, line)
			if err != nil {
				scope = UnresolvedScope
			}
			out[scope] = struct{}{}
		}
		return out
	}
	for _, f := range unionFiles(truth, pred, r.Supports) {
		t, p := ToBinary(scopes(f, truth[f]), scopes(f, pred[f]))
		yTrue = append(yTrue, t...)
		yPred = append(yPred, p...)
	}
	return yTrue, yPred
}

// Report is the aggregate of a metric over a dataset.
type Report struct {
	Metric string `json:"metric"`
	model.Scores
	Count   int `json:"count"`
	Skipped int `json:"skipped"`
	// Samples holds per-sample scores when requested, in input order.
	Samples []model.Scores `json:"samples,omitempty"`
}

// Accumulate averages the per-sample scores of results. Skipped samples count
// as zero, as an empty classification does.
func Accumulate(metric string, results []Classification, perSample bool) Report {
	r := Report{Metric: metric, Count: len(results)}
	if len(results) == 0 {
		return r
	}

	var sum model.Scores
	for _, c := range results {
		s := Score(c.YTrue, c.YPred)
		sum.Precision += s.Precision
		sum.Recall += s.Recall
		sum.F1 += s.F1
		if c.Skipped {
			r.Skipped++
		}
		if perSample {
			r.Samples = append(r.Samples, s)
		}
	}
	n := float64(len(results))
	r.Scores = model.Scores{Precision: sum.Precision / n, Recall: sum.Recall / n, F1: sum.F1 / n}
	return r
}
