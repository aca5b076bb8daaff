// Package localization scores how well a predicted edit, or the set of lines
// an agent viewed, locates the lines a reference edit changed.
//
// Every metric reduces a sample to two sets (truth and prediction), turns
// them into binary label vectors with ToBinary and scores those as a binary
// classification.
package localization

import "github.com/sokinpui/diffkit/model"

// NewSet builds a set from items.
func NewSet[T comparable](items ...T) map[T]struct{} {
	s := make(map[T]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// ToBinary turns a truth and a prediction set into aligned label vectors:
// one (true, true) pair per element in both, then one (true, false) pair per
// element only in truth, then one (false, true) pair per element only in
// pred.
func ToBinary[T comparable](truth, pred map[T]struct{}) (yTrue, yPred []bool) {
	var tp, fn, fp int
	for k := range truth {
		if _, ok := pred[k]; ok {
			tp++
		} else {
			fn++
		}
	}
	for k := range pred {
		if _, ok := truth[k]; !ok {
			fp++
		}
	}

	n := tp + fn + fp
	yTrue = make([]bool, 0, n)
	yPred = make([]bool, 0, n)
	for range tp {
		yTrue = append(yTrue, true)
		yPred = append(yPred, true)
	}
	for range fn {
		yTrue = append(yTrue, true)
		yPred = append(yPred, false)
	}
	for range fp {
		yTrue = append(yTrue, false)
		yPred = append(yPred, true)
	}
	return yTrue, yPred
}

// Score computes binary precision, recall and F1 over aligned label vectors.
// A ratio whose denominator is zero scores 0. Extra labels in the longer
// vector are ignored.
func Score(yTrue, yPred []bool) model.Scores {
	var tp, fp, fn int
	for i := range min(len(yTrue), len(yPred)) {
		switch {
		case yTrue[i] && yPred[i]:
			tp++
		case yPred[i]:
			fp++
		case yTrue[i]:
			fn++
		}
	}

	var s model.Scores
	if tp+fp > 0 {
		s.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		s.Recall = float64(tp) / float64(tp+fn)
	}
	if 2*tp+fp+fn > 0 {
		s.F1 = float64(2*tp) / float64(2*tp+fp+fn)
	}
	return s
}
