package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurttlocker/canvass/internal/store"
)

// Engine routes files to importers and writes the parsed records to a store.
type Engine struct {
	store     store.Store
	importers []Importer
	logger    *zap.Logger
	newID     func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an import engine. s may be nil for dry runs and format
// detection.
func NewEngine(s store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     s,
		importers: []Importer{&CSVImporter{}, &JSONImporter{}},
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ImporterFor returns the importer for path, or nil.
func (e *Engine) ImporterFor(path string) Importer {
	for _, imp := range e.importers {
		if imp.CanHandle(path) {
			return imp
		}
	}
	return nil
}

// ImportFile imports a single file, or every supported file in a directory
// (descending into subdirectories with Recursive). Each imported file becomes
// its own batch.
func (e *Engine) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("resolving symlink %s: %w", path, err)
		}
		if target.IsDir() {
			return nil, fmt.Errorf("refusing to import symlinked directory %s", path)
		}
		info = target
	}

	if !info.IsDir() {
		imp := e.ImporterFor(path)
		if imp == nil {
			return nil, fmt.Errorf("unsupported file type: %s", path)
		}
		result := &ImportResult{}
		if err := e.importOne(ctx, imp, path, info.Size(), opts, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	files, err := e.collect(path, opts.Recursive)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.ProgressFn != nil {
			opts.ProgressFn(i+1, len(files), f.path)
		}
		imp := e.ImporterFor(f.path)
		if imp == nil {
			result.FilesScanned++
			result.FilesSkipped++
			continue
		}
		if err := e.importOne(ctx, imp, f.path, f.size, opts, result); err != nil {
			result.FilesSkipped++
			result.Errors = append(result.Errors, ImportError{File: f.path, Message: err.Error()})
			e.logger.Warn("import failed", zap.String("file", f.path), zap.Error(err))
		}
	}
	return result, nil
}

type candidate struct {
	path string
	size int64
}

func (e *Engine) collect(root string, recursive bool) ([]candidate, error) {
	var files []candidate
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, candidate{path: p, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// importOne parses and stores one file, accumulating into result. A returned
// error means the file was not imported at all.
func (e *Engine) importOne(ctx context.Context, imp Importer, path string, size int64, opts ImportOptions, result *ImportResult) error {
	result.FilesScanned++
	if size > opts.MaxFileSize {
		return fmt.Errorf("%s is %s, over the %s limit", path, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(opts.MaxFileSize)))
	}

	records, problems, err := imp.Import(ctx, path)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}
	result.Errors = append(result.Errors, problems...)

	if len(records) == 0 {
		result.FilesSkipped++
		e.logger.Info("no records found", zap.String("file", path))
		return nil
	}

	if !opts.DryRun {
		if e.store == nil {
			return fmt.Errorf("importing %s: no store configured", path)
		}
		source, err := filepath.Abs(path)
		if err != nil {
			source = path
		}
		batch := store.Batch{ID: e.newID(), Source: source}
		if _, err := e.store.AddContacts(ctx, records, batch); err != nil {
			return fmt.Errorf("storing %s: %w", path, err)
		}
		result.Batches = append(result.Batches, batch.ID)
	}

	result.FilesImported++
	result.RecordsImported += len(records)
	e.logger.Info("imported contacts",
		zap.String("file", path),
		zap.Int("records", len(records)),
		zap.Int("warnings", len(problems)),
		zap.Bool("dry_run", opts.DryRun),
	)
	return nil
}

// FormatImportResult formats an ImportResult for display.
func FormatImportResult(r *ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Import complete:\n")
	fmt.Fprintf(&b, "  Files:   %s scanned, %s imported, %s skipped\n",
		humanize.Comma(int64(r.FilesScanned)), humanize.Comma(int64(r.FilesImported)), humanize.Comma(int64(r.FilesSkipped)))
	fmt.Fprintf(&b, "  Records: %s %s\n", humanize.Comma(int64(r.RecordsImported)), english.PluralWord(r.RecordsImported, "contact record", ""))
	if len(r.Batches) > 0 {
		fmt.Fprintf(&b, "  Batches: %s\n", strings.Join(r.Batches, ", "))
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\n  %s:\n", english.Plural(len(r.Errors), "warning", ""))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "    %s\n", e.Error())
		}
	}
	return b.String()
}
