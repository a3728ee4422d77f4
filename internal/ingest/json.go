package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hurttlocker/canvass/internal/contact"
)

// JSONImporter handles .json files.
type JSONImporter struct{}

// CanHandle returns true for JSON file extensions.
func (j *JSONImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".json"
}

// Import parses a JSON array of contact objects. Keys go through the same
// aliases as CSV headers and values may be numbers or strings.
func (j *JSONImporter) Import(ctx context.Context, path string) ([]*contact.Record, []ImportError, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, nil, nil
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	var records []*contact.Record
	var problems []ImportError

	for i, obj := range raw {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		values := make(map[field]string)
		for k, v := range obj {
			f := lookupField(k)
			if f == fieldNone {
				continue
			}
			values[f] = scalarString(v)
		}

		r, outcome := buildRecord(values)
		switch outcome {
		case rowSkip:
			continue
		case rowBadDate:
			problems = append(problems, ImportError{File: absPath, Line: i + 1, Message: fmt.Sprintf("element %d: invalid date %q", i, r.Date)})
		}
		records = append(records, r)
	}

	return records, problems, nil
}

// scalarString renders a JSON string or number as text. Anything else
// becomes "".
func scalarString(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n', 't', 'f':
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return ""
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return ""
	}
	return n.String()
}
