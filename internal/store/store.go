// Package store provides the SQLite storage layer for canvass.
//
// All contact data lives in a single SQLite database file:
// - contacts: one row per imported contact-log line
// - batches: provenance for each import run
// - meta: schema version and bootstrap flags
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/canvass/internal/contact"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.canvass/canvass.db"

// DefaultBatchSize is the default batch size for bulk inserts.
const DefaultBatchSize = 500

// Batch is the provenance of one import run.
type Batch struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	RecordCount int       `json:"recordCount"`
	ImportedAt  time.Time `json:"importedAt"`
}

// ListOpts controls filtering and pagination for ListContacts. Empty fields
// are ignored. Since and Until are inclusive ISO dates.
type ListOpts struct {
	Tactic  string
	Team    string
	Since   string
	Until   string
	BatchID string
	Limit   int
	Offset  int
}

// StoreStats holds summary statistics about the store.
type StoreStats struct {
	ContactCount int64  `json:"contactCount"`
	BatchCount   int64  `json:"batchCount"`
	PersonCount  int64  `json:"personCount"`
	TeamCount    int64  `json:"teamCount"`
	FirstDate    string `json:"firstDate,omitempty"`
	LastDate     string `json:"lastDate,omitempty"`
	DBSizeBytes  int64  `json:"dbSizeBytes"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath    string
	BatchSize int
}

// Store defines the storage interface.
type Store interface {
	// Contacts
	AddContacts(ctx context.Context, records []*contact.Record, batch Batch) ([]int64, error)
	ListContacts(ctx context.Context, opts ListOpts) ([]contact.Record, error)
	Records(ctx context.Context) ([]contact.Record, error)

	// Vocabulary
	Teams(ctx context.Context) ([]string, error)

	// Batches
	ListBatches(ctx context.Context) ([]Batch, error)
	DeleteBatch(ctx context.Context, id string) (int64, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	batchSize int
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if cfg.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:        db,
		dbPath:    cfg.DBPath,
		batchSize: cfg.BatchSize,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns row counts, the stored date span and the database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM contacts", &stats.ContactCount},
		{"SELECT COUNT(*) FROM batches", &stats.BatchCount},
		{"SELECT COUNT(DISTINCT LOWER(first_name) || ' ' || LOWER(last_name)) FROM contacts WHERE first_name != '' OR last_name != ''", &stats.PersonCount},
		{"SELECT COUNT(DISTINCT team) FROM contacts WHERE team != ''", &stats.TeamCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(date), MAX(date) FROM contacts WHERE date GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]'`,
	).Scan(&first, &last)
	if err != nil {
		return nil, fmt.Errorf("querying date span: %w", err)
	}
	stats.FirstDate, stats.LastDate = first.String, last.String

	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}
	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
