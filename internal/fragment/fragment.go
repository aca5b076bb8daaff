// Package fragment names, extracts and serializes line-addressed code
// fragments, the unit a model is asked to edit.
//
// A fragment id is "<file>#L<start>", start being the 1-based line of the
// fragment's first line in the base file. In a prompt each fragment is framed
// as
//
//	[start of <id>]
//	<text>
//	[end of <id>]
package fragment

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sokinpui/diffkit/internal/parser"
	"github.com/sokinpui/diffkit/model"
)

// ErrInvalidID is returned for ids without a "#L<n>" suffix with n >= 1.
var ErrInvalidID = errors.New("invalid fragment id")

var idRegex = regexp.MustCompile(`^(.*)#L(\d+)$`)

const (
	startMarker = "[start of "
	endMarker   = "[end of "
)

// ParseID splits an id at its last "#L" suffix.
func ParseID(id string) (model.FragmentID, error) {
	m := idRegex.FindStringSubmatch(id)
	if m == nil || m[1] == "" {
		return model.FragmentID{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	start, err := strconv.Atoi(m[2])
	if err != nil || start < 1 {
		return model.FragmentID{}, fmt.Errorf("%w: %q (start must be >= 1)", ErrInvalidID, id)
	}
	return model.FragmentID{FileName: m[1], StartLine: start}, nil
}

// Extract cuts, for every hunk of diffText, the base lines the hunk replaces
// out of contents. Files missing from contents and hunks that only insert
// before the first line are skipped.
func Extract(diffText string, contents map[string]string) map[string]string {
	fragments := make(map[string]string)
	for _, d := range parser.Parse(diffText) {
		content, ok := contents[d.FileName]
		if !ok {
			continue
		}
		lines := strings.Split(content, "\n")
		for _, h := range d.Hunks {
			if h.OldStart < 1 {
				continue
			}
			lo := min(h.OldStart-1, len(lines))
			hi := min(lo+h.OldLen, len(lines))
			id := model.FragmentID{FileName: d.FileName, StartLine: h.OldStart}
			fragments[id.String()] = strings.Join(lines[lo:hi], "\n")
		}
	}
	return fragments
}

// IDs returns the keys of fragments in sorted order.
func IDs(fragments map[string]string) []string {
	ids := make([]string, 0, len(fragments))
	for id := range fragments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FormatPrompt frames every fragment, in id order.
func FormatPrompt(fragments map[string]string) string {
	blocks := make([]string, 0, len(fragments))
	for _, id := range IDs(fragments) {
		blocks = append(blocks, startMarker+id+"]\n"+fragments[id]+"\n"+endMarker+id+"]")
	}
	return strings.Join(blocks, "\n")
}

// ParseResponse collects every framed fragment in text. A block is closed
// only by the end marker carrying the same id; a later block with an id
// already seen wins.
func ParseResponse(text string) map[string]string {
	out := make(map[string]string)
	pos := 0
	for {
		i := strings.Index(text[pos:], startMarker)
		if i < 0 {
			return out
		}
		open := pos + i
		nameStart := open + len(startMarker)

		j := strings.Index(text[nameStart:], "]\n")
		if j < 0 {
			return out
		}
		id := text[nameStart : nameStart+j]
		bodyStart := nameStart + j + 2

		closing := "\n" + endMarker + id + "]"
		k := strings.Index(text[bodyStart:], closing)
		if strings.Contains(id, "\n") || k < 0 {
			pos = open + 1
			continue
		}
		bodyEnd := bodyStart + k
		out[id] = text[bodyStart:bodyEnd]
		pos = bodyEnd + len(closing)
	}
}
