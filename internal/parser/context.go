package parser

import (
	"sort"
	"strings"
)

// NoChanges stands in for a file one side of a comparison did not touch.
const NoChanges = "<NO CHANGES>"

// CreateDiffContext maps each file of diffText to its new-side hunk text,
// hunks separated by an elision marker line.
func CreateDiffContext(diffText string) map[string]string {
	ctx := make(map[string]string)
	for _, d := range Parse(diffText) {
		ctx[d.FileName] = strings.Join(d.NewBlocks(), "# ...\n")
	}
	return ctx
}

// CompareDiffs aligns the contexts of two diffs over the sorted union of the
// files they touch.
func CompareDiffs(a, b string) (changesA, changesB []string) {
	ctxA, ctxB := CreateDiffContext(a), CreateDiffContext(b)

	keys := make(map[string]struct{}, len(ctxA)+len(ctxB))
	for k := range ctxA {
		keys[k] = struct{}{}
	}
	for k := range ctxB {
		keys[k] = struct{}{}
	}
	files := make([]string, 0, len(keys))
	for k := range keys {
		files = append(files, k)
	}
	sort.Strings(files)

	lookup := func(ctx map[string]string, file string) string {
		if v, ok := ctx[file]; ok {
			return v
		}
		return NoChanges
	}
	for _, f := range files {
		changesA = append(changesA, lookup(ctxA, f))
		changesB = append(changesB, lookup(ctxB, f))
	}
	return changesA, changesB
}
