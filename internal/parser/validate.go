package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ErrHunkCount marks a hunk whose body disagrees with its header counts.
var ErrHunkCount = errors.New("hunk body does not match header")

// Stats summarizes a diff that a standard parser accepted.
type Stats struct {
	Files   int
	Hunks   int
	Added   int
	Removed int
}

// Validate reads diffText with an independent unified diff parser and checks
// every hunk body against its header.
func Validate(diffText string) (Stats, error) {
	var stats Stats
	if strings.TrimSpace(diffText) == "" {
		return stats, nil
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(diffText)).ReadAllFiles()
	if err != nil {
		return stats, fmt.Errorf("parse diff: %w", err)
	}

	stats.Files = len(fileDiffs)
	for _, fd := range fileDiffs {
		for _, h := range fd.Hunks {
			stats.Hunks++
			var context, added, removed int
			body := strings.TrimSuffix(string(h.Body), "\n")
			if body != "" {
				for _, line := range strings.Split(body, "\n") {
					switch {
					case strings.HasPrefix(line, "+"):
						added++
					case strings.HasPrefix(line, "-"):
						removed++
					case strings.HasPrefix(line, "\\"):
					default:
						context++
					}
				}
			}
			if int(h.OrigLines) != context+removed || int(h.NewLines) != context+added {
				return stats, fmt.Errorf("%w: %s @@ -%d,%d +%d,%d @@ has %d context, %d removed, %d added",
					ErrHunkCount, fd.OrigName, h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines,
					context, removed, added)
			}
			stats.Added += added
			stats.Removed += removed
		}
	}
	return stats, nil
}
