// Package dataset reads scoring datasets and scores them concurrently.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/sokinpui/diffkit/internal/localization"
)

const maxLineSize = 64 << 20

// Row is one JSONL record.
type Row struct {
	DiffTrue    string      `json:"diff_true"`
	DiffPred    string      `json:"diff_pred"`
	ViewedLines ViewedLines `json:"viewed_lines"`
}

// ViewedLines maps files to viewed 1-based lines. In JSON it is either an
// object or a string holding one; null and "" are empty.
type ViewedLines map[string][]int

func (v *ViewedLines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*v = nil
			return nil
		}
		data = []byte(s)
	}
	m := map[string][]int{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("viewed_lines: %w", err)
	}
	*v = m
	return nil
}

// Sample converts the row for scoring.
func (r Row) Sample() localization.Sample {
	return localization.Sample{DiffTrue: r.DiffTrue, DiffPred: r.DiffPred, Viewed: r.ViewedLines}
}

// Read decodes JSONL rows, skipping blank lines.
func Read(r io.Reader) ([]Row, error) {
	var rows []Row
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return rows, nil
}

// ReadFile is Read over the file at path.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Score classifies every row with metric using up to workers goroutines
// and averages the results. Results are collected by index, so the report
// does not depend on scheduling.
func Score(ctx context.Context, rows []Row, metric localization.Metric, workers int, perSample bool) (localization.Report, error) {
	results := make([]localization.Classification, len(rows))

	g, gCtx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, row := range rows {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			c, err := metric.Classify(row.Sample())
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			results[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return localization.Report{}, err
	}
	return localization.Accumulate(metric.Name(), results, perSample), nil
}
