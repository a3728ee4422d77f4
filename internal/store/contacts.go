package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/canvass/internal/contact"
)

const contactColumns = `id, first_name, last_name, team, tactic, date,
	attempts, contacts, not_home, refusal, bad_data, support, oppose, undecided`

// AddContacts inserts records under batch in chunks of the configured batch
// size, one transaction per chunk. The batch row is created on first use and
// its record count grows with every chunk. Record IDs are set in place.
func (s *SQLiteStore) AddContacts(ctx context.Context, records []*contact.Record, batch Batch) ([]int64, error) {
	if strings.TrimSpace(batch.ID) == "" {
		return nil, fmt.Errorf("batch id is required")
	}
	if batch.ImportedAt.IsZero() {
		batch.ImportedAt = time.Now().UTC()
	}

	ids := make([]int64, 0, len(records))
	for i := 0; i < len(records); i += s.batchSize {
		end := i + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		chunkIDs, err := s.insertChunk(ctx, records[i:end], batch)
		if err != nil {
			return ids, fmt.Errorf("batch insert chunk %d-%d: %w", i, end, err)
		}
		ids = append(ids, chunkIDs...)
	}
	return ids, nil
}

func (s *SQLiteStore) insertChunk(ctx context.Context, records []*contact.Record, batch Batch) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, source, record_count, imported_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET record_count = record_count + excluded.record_count`,
		batch.ID, batch.Source, len(records), batch.ImportedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("recording batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contacts (batch_id, first_name, last_name, team, tactic, date,
			attempts, contacts, not_home, refusal, bad_data, support, oppose, undecided)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		result, err := stmt.ExecContext(ctx,
			batch.ID, r.FirstName, r.LastName, r.Team, r.Tactic, r.Date,
			r.Attempts, r.Contacts, r.NotHome, r.Refusal, r.BadData, r.Support, r.Oppose, r.Undecided,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting contact: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting last insert id: %w", err)
		}
		r.ID = id
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}
	return ids, nil
}

// ListContacts returns contacts in import order.
func (s *SQLiteStore) ListContacts(ctx context.Context, opts ListOpts) ([]contact.Record, error) {
	var where []string
	var args []any

	if v := strings.TrimSpace(opts.Tactic); v != "" {
		where = append(where, "tactic = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(opts.Team); v != "" {
		where = append(where, "team = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(opts.Since); v != "" {
		where = append(where, "date >= ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(opts.Until); v != "" {
		where = append(where, "date <= ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(opts.BatchID); v != "" {
		where = append(where, "batch_id = ?")
		args = append(args, v)
	}

	query := "SELECT " + contactColumns + " FROM contacts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	switch {
	case opts.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, max(opts.Offset, 0))
	case opts.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	defer rows.Close()

	out := make([]contact.Record, 0)
	for rows.Next() {
		var r contact.Record
		if err := rows.Scan(&r.ID, &r.FirstName, &r.LastName, &r.Team, &r.Tactic, &r.Date,
			&r.Attempts, &r.Contacts, &r.NotHome, &r.Refusal, &r.BadData, &r.Support, &r.Oppose, &r.Undecided); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contacts: %w", err)
	}
	return out, nil
}

// Records returns the whole working set. Filtering happens in memory.
func (s *SQLiteStore) Records(ctx context.Context) ([]contact.Record, error) {
	return s.ListContacts(ctx, ListOpts{})
}

// Teams returns the distinct non-empty team names, sorted.
func (s *SQLiteStore) Teams(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT team FROM contacts WHERE team != '' ORDER BY team`)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// ListBatches returns import batches, oldest first.
func (s *SQLiteStore) ListBatches(ctx context.Context) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, record_count, imported_at FROM batches ORDER BY imported_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.Source, &b.RecordCount, &b.ImportedAt); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBatch removes a batch and its contacts, returning how many contacts
// were removed.
func (s *SQLiteStore) DeleteBatch(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE batch_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("deleting contacts: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("deleting batch: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	} else if n == 0 {
		return 0, fmt.Errorf("batch %q not found", id)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return removed, nil
}
