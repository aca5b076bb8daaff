// Package segment groups line numbers into contiguous ranges and rewrites
// those ranges of a file through an edit callback.
package segment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sokinpui/diffkit/model"
)

// ErrInvalidLineNumber is returned for line numbers below 1 and for empty or
// inverted ranges.
var ErrInvalidLineNumber = errors.New("invalid line number")

// Plan groups lines into maximal runs of consecutive numbers, returned as
// sorted half-open ranges. Duplicates are collapsed.
func Plan(lines []int) ([]model.LineRange, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	sorted := append([]int(nil), lines...)
	sort.Ints(sorted)
	if sorted[0] <= 0 {
		return nil, fmt.Errorf("%w: %d (lines are 1-based)", ErrInvalidLineNumber, sorted[0])
	}

	var ranges []model.LineRange
	start, prev := sorted[0], sorted[0]
	for _, n := range sorted[1:] {
		if n == prev {
			continue
		}
		if n != prev+1 {
			ranges = append(ranges, model.LineRange{Start: start, End: prev + 1})
			start = n
		}
		prev = n
	}
	ranges = append(ranges, model.LineRange{Start: start, End: prev + 1})
	return ranges, nil
}
