package patcher

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sokinpui/diffkit/model"
)

// ErrNoMatch is returned when a hunk's old lines cannot be found in the source.
var ErrNoMatch = errors.New("could not find matching block for hunk")

var oldStartRegex = regexp.MustCompile(`^@@ -(\d+)`)

// rawHunk is a hunk body as written, with the old start its header claimed.
type rawHunk struct {
	statedStart int
	lines       []string
}

// getTargetBlock creates a "search pattern" from a diff hunk.
// It uses only lines that are guaranteed to be in the original source file
// (context ` ` and removed `-` lines). Empty lines are left out so that
// matching survives whitespace-only changes. leading counts the target lines
// dropped before the first kept one.
func getTargetBlock(hunk []string) (block []string, leading int) {
	for _, line := range hunk {
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, " ") {
			continue
		}
		content := line[1:]
		if strings.TrimSpace(content) == "" {
			if len(block) == 0 {
				leading++
			}
			continue
		}
		block = append(block, content)
	}
	return block, leading
}

// normalizeLineForMatching trims a line and collapses internal whitespace
// runs to a single space.
func normalizeLineForMatching(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// matchBlock returns the 1-based line of source where block starts, comparing
// whitespace-normalized lines and skipping empty source lines. It returns -1
// when there is no match.
func matchBlock(source, block []string) int {
	if len(block) == 0 {
		return -1
	}

	normalizedBlock := make([]string, len(block))
	for i, line := range block {
		normalizedBlock[i] = normalizeLineForMatching(line)
	}

	var filteredSource []string
	var originalLineNumbers []int
	for i, line := range source {
		normalizedLine := normalizeLineForMatching(line)
		if normalizedLine != "" {
			filteredSource = append(filteredSource, normalizedLine)
			originalLineNumbers = append(originalLineNumbers, i+1)
		}
	}

	for i := 0; i <= len(filteredSource)-len(normalizedBlock); i++ {
		match := true
		for j := range normalizedBlock {
			if filteredSource[i+j] != normalizedBlock[j] {
				match = false
				break
			}
		}
		if match {
			return originalLineNumbers[i]
		}
	}
	return -1
}

func parseDiffToHunks(diffLines []string) []rawHunk {
	var hunks []rawHunk
	var current *rawHunk

	for _, line := range diffLines {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "@@"):
			if current != nil && len(current.lines) > 0 {
				hunks = append(hunks, *current)
			}
			current = &rawHunk{}
			if m := oldStartRegex.FindStringSubmatch(line); m != nil {
				current.statedStart, _ = strconv.Atoi(m[1])
			}
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, "-"), strings.HasPrefix(line, " "):
			if current == nil {
				current = &rawHunk{}
			}
			current.lines = append(current.lines, line)
		}
	}
	if current != nil && len(current.lines) > 0 {
		hunks = append(hunks, *current)
	}
	return hunks
}

// Recount rewrites the hunk headers of rawDiff against source. Each hunk is
// relocated to where its context and removed lines actually occur, its
// counts are recomputed from its body, and new-side starts carry the running
// line offset of the hunks before it. Hunks that only add lines keep the old
// start their header claimed. The result has "--- a/path" and "+++ b/path"
// headers; a diff without hunks yields "".
func Recount(source []string, rawDiff, path string) (string, error) {
	hunks := parseDiffToHunks(strings.Split(rawDiff, "\n"))
	if len(hunks) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", path)
	fmt.Fprintf(&b, "+++ b/%s\n", path)

	lineDiffOffset := 0
	for i, raw := range hunks {
		h := model.Hunk{}
		for _, line := range raw.lines {
			h.Lines = append(h.Lines, model.HunkLine{Op: model.LineOp(line[0]), Text: line[1:]})
		}
		added, removed := h.Counts()
		context := len(h.Lines) - added - removed
		h.OldLen = context + removed
		h.NewLen = context + added

		if h.OldLen == 0 {
			h.OldStart = max(0, min(raw.statedStart, len(source)))
			h.NewStart = h.OldStart + lineDiffOffset + 1
		} else {
			block, leading := getTargetBlock(raw.lines)
			start := matchBlock(source, block)
			if start == -1 {
				return "", fmt.Errorf("%w: hunk %d of %s", ErrNoMatch, i+1, path)
			}
			h.OldStart = max(1, start-leading)
			h.NewStart = h.OldStart + lineDiffOffset
			if h.NewLen == 0 {
				h.NewStart--
			}
		}

		b.WriteString(h.String())
		lineDiffOffset += h.NewLen - h.OldLen
	}

	return b.String(), nil
}
