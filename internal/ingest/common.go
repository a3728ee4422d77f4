package ingest

import (
	"context"
	"fmt"

	"github.com/hurttlocker/canvass/internal/contact"
)

// Importer handles a specific file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool

	// Import parses the file into records. Row-level problems come back as
	// ImportErrors; only an unreadable or unparsable file returns an error.
	Import(ctx context.Context, path string) ([]*contact.Record, []ImportError, error)
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	FilesScanned    int
	FilesImported   int
	FilesSkipped    int
	RecordsImported int
	RowsSkipped     int
	Batches         []string
	Errors          []ImportError
}

// Add merges another ImportResult into this one.
func (r *ImportResult) Add(other *ImportResult) {
	r.FilesScanned += other.FilesScanned
	r.FilesImported += other.FilesImported
	r.FilesSkipped += other.FilesSkipped
	r.RecordsImported += other.RecordsImported
	r.RowsSkipped += other.RowsSkipped
	r.Batches = append(r.Batches, other.Batches...)
	r.Errors = append(r.Errors, other.Errors...)
}

// ImportError records a non-fatal error during import.
type ImportError struct {
	File    string
	Line    int
	Message string
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// ImportOptions configures an import operation.
type ImportOptions struct {
	Recursive   bool
	DryRun      bool
	MaxFileSize int64 // bytes, default 10MB
	ProgressFn  func(current, total int, file string)
}

// DefaultMaxFileSize is 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024
