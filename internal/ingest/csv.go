package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hurttlocker/canvass/internal/contact"
)

// CSVImporter handles .csv and .tsv files.
type CSVImporter struct{}

// CanHandle returns true for CSV/TSV file extensions.
func (c *CSVImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

// Import parses a CSV file into contact records.
// The first row is the header; columns are matched by alias and unknown
// columns are ignored.
func (c *CSVImporter) Import(ctx context.Context, path string) ([]*contact.Record, []ImportError, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)

	// Auto-detect TSV
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		reader.Comma = '\t'
	}

	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}

	if len(rows) < 2 {
		// Need at least headers + one row
		return nil, nil, nil
	}

	columns := make([]field, len(rows[0]))
	mapped := 0
	for i, h := range rows[0] {
		columns[i] = lookupField(h)
		if columns[i] != fieldNone {
			mapped++
		}
	}
	if mapped == 0 {
		return nil, nil, fmt.Errorf("parsing CSV %s: no recognised columns in header", path)
	}

	var records []*contact.Record
	var problems []ImportError

	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		line := i + 2 // 1-indexed, skip header row

		values := make(map[field]string)
		for j, val := range row {
			if j < len(columns) && columns[j] != fieldNone {
				values[columns[j]] = val
			}
		}

		r, outcome := buildRecord(values)
		switch outcome {
		case rowSkip:
			continue
		case rowBadDate:
			problems = append(problems, ImportError{File: absPath, Line: line, Message: fmt.Sprintf("invalid date %q", r.Date)})
		}
		records = append(records, r)
	}

	return records, problems, nil
}
