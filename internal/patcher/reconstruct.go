package patcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sokinpui/diffkit/internal/fragment"
	"github.com/sokinpui/diffkit/internal/linediff"
	"github.com/sokinpui/diffkit/model"
)

var (
	// ErrUnknownFragment marks an edited fragment whose id is not in the base.
	ErrUnknownFragment = errors.New("unknown fragment")

	// ErrOverlappingFragments is returned when two fragments of one file
	// cover a common base line.
	ErrOverlappingFragments = errors.New("overlapping fragments")
)

// OverlapPolicy decides what Reconstruct does with overlapping fragments.
type OverlapPolicy int

const (
	// OverlapReject fails the whole reconstruction.
	OverlapReject OverlapPolicy = iota
	// OverlapSkip drops the later fragment and records it in Result.Skipped.
	OverlapSkip
)

// ParseOverlapPolicy maps "reject" and "skip" to a policy.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch s {
	case "", "reject":
		return OverlapReject, nil
	case "skip":
		return OverlapSkip, nil
	default:
		return 0, fmt.Errorf("unknown overlap policy %q (want reject or skip)", s)
	}
}

// Options configures Reconstruct.
type Options struct {
	// Differ defaults to linediff.Difflib.
	Differ linediff.Differ
	// Context is the number of context lines per hunk; negative selects
	// linediff.DefaultContext.
	Context int
	Overlap OverlapPolicy
}

// DefaultOptions returns difflib hunks with three lines of context, rejecting
// overlaps.
func DefaultOptions() Options {
	return Options{Differ: linediff.Difflib{}, Context: linediff.DefaultContext, Overlap: OverlapReject}
}

// Result of a reconstruction.
type Result struct {
	// Diff is one multi-file unified diff, "" when nothing changed.
	Diff string
	// Skipped holds one error per fragment left out, in id order.
	Skipped []error
	// Files lists the files Diff touches, sorted.
	Files []string
}

// Reconstruct diffs every edited fragment against its base text and merges
// the hunks into one diff over the whole files. Both maps are keyed by
// fragment id ("<file>#L<start>"). Fragments of one file are folded in
// ascending start order; each one's new-side numbering is shifted by the net
// line change of the fragments before it.
func Reconstruct(base, edited map[string]string, opts Options) (Result, error) {
	var res Result
	differ := opts.Differ
	if differ == nil {
		differ = linediff.Difflib{}
	}
	context := opts.Context
	if context < 0 {
		context = linediff.DefaultContext
	}

	byFile := make(map[string][]model.Fragment)
	for _, id := range fragment.IDs(edited) {
		fid, err := fragment.ParseID(id)
		if err != nil {
			res.Skipped = append(res.Skipped, err)
			continue
		}
		orig, ok := base[id]
		if !ok {
			res.Skipped = append(res.Skipped, fmt.Errorf("%w: %s", ErrUnknownFragment, id))
			continue
		}
		byFile[fid.FileName] = append(byFile[fid.FileName], model.Fragment{
			FileName:     fid.FileName,
			StartLine:    fid.StartLine,
			OriginalText: orig,
			EditedText:   edited[id],
		})
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var doc strings.Builder
	for _, file := range files {
		frags := byFile[file]
		sort.SliceStable(frags, func(i, j int) bool { return frags[i].StartLine < frags[j].StartLine })

		hunks, skipped, err := foldFile(frags, differ, context, opts.Overlap)
		if err != nil {
			return Result{}, err
		}
		res.Skipped = append(res.Skipped, skipped...)
		if len(hunks) == 0 {
			continue
		}

		fmt.Fprintf(&doc, "diff --git a/%s b/%s\n--- a/%s\n+++ b/%s\n", file, file, file, file)
		for _, h := range hunks {
			doc.WriteString(h.String())
		}
		res.Files = append(res.Files, file)
	}
	res.Diff = doc.String()
	return res, nil
}

// foldFile threads fileDelta through the sorted fragments of one file.
func foldFile(frags []model.Fragment, differ linediff.Differ, context int, policy OverlapPolicy) ([]model.Hunk, []error, error) {
	var (
		hunks     []model.Hunk
		skipped   []error
		fileDelta int
		prevEnd   int
		prevID    model.FragmentID
	)
	for _, frag := range frags {
		oldLines := strings.Split(frag.OriginalText, "\n")
		if frag.StartLine < prevEnd {
			err := fmt.Errorf("%w: %s and %s", ErrOverlappingFragments, prevID, frag.ID())
			if policy == OverlapReject {
				return nil, nil, err
			}
			skipped = append(skipped, err)
			continue
		}
		prevEnd = frag.StartLine + len(oldLines)
		prevID = frag.ID()

		var fragHunks []model.Hunk
		fragHunks, fileDelta = fragmentHunks(frag, oldLines, differ, context, fileDelta)
		hunks = append(hunks, fragHunks...)
	}
	return hunks, skipped, nil
}

// fragmentHunks diffs one fragment and moves its hunks into file coordinates.
// Every hunk of the fragment is shifted by the same fileDelta: differ already
// numbers a fragment's later hunks past its earlier ones.
func fragmentHunks(frag model.Fragment, oldLines []string, differ linediff.Differ, context, fileDelta int) ([]model.Hunk, int) {
	newLines := strings.Split(frag.EditedText, "\n")
	hunks := differ.Hunks(oldLines, newLines, context)

	offset := frag.StartLine - 1
	next := fileDelta
	for i := range hunks {
		hunks[i].OldStart += offset
		hunks[i].NewStart += offset + fileDelta
		next += hunks[i].NewLen - hunks[i].OldLen
	}
	return hunks, next
}
