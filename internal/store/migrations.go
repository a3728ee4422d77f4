package store

import (
	"database/sql"
	"fmt"
	"time"
)

// schemaVersion is bumped whenever migrate gains a step.
const schemaVersion = "1"

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	// meta exists from here on.
	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS batches (
			id           TEXT PRIMARY KEY,
			source       TEXT NOT NULL DEFAULT '',
			record_count INTEGER NOT NULL DEFAULT 0,
			imported_at  DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS contacts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id   TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name  TEXT NOT NULL DEFAULT '',
			team       TEXT NOT NULL DEFAULT '',
			tactic     TEXT NOT NULL DEFAULT '',
			date       TEXT NOT NULL DEFAULT '',
			attempts   INTEGER NOT NULL DEFAULT 0,
			contacts   INTEGER NOT NULL DEFAULT 0,
			not_home   INTEGER NOT NULL DEFAULT 0,
			refusal    INTEGER NOT NULL DEFAULT 0,
			bad_data   INTEGER NOT NULL DEFAULT 0,
			support    INTEGER NOT NULL DEFAULT 0,
			oppose     INTEGER NOT NULL DEFAULT 0,
			undecided  INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_contacts_date ON contacts(date)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_tactic ON contacts(tactic)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_team ON contacts(team)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_batch ON contacts(batch_id)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing bootstrap DDL: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bootstrap: %w", err)
	}
	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

func (s *SQLiteStore) seedMeta() error {
	defaults := map[string]string{
		"schema_version": schemaVersion,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range defaults {
		if _, err := s.db.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

// SchemaVersion returns the stored schema version.
func (s *SQLiteStore) SchemaVersion() (string, error) {
	var v string
	if err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&v); err != nil {
		return "", fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}
