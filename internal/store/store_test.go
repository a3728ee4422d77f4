package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hurttlocker/canvass/internal/contact"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleContacts() []*contact.Record {
	return []*contact.Record{
		{FirstName: "Jane", LastName: "Doe", Team: "North", Tactic: contact.TacticPhone, Date: "2025-01-03", Attempts: 10, Contacts: 4, Support: 2, NotHome: 3},
		{FirstName: "Jane", LastName: "Doe", Team: "North", Tactic: contact.TacticSMS, Date: "2025-01-04", Attempts: 20, Refusal: 2},
		{FirstName: "Sam", LastName: "Lee", Team: "South", Tactic: contact.TacticCanvas, Date: "2025-01-05", Attempts: 12, Undecided: 3},
		{FirstName: "Ana", LastName: "Ruiz", Team: "", Tactic: contact.TacticSMS, Date: "not a date", Attempts: 1},
	}
}

// --- Database Initialization ---

func TestNewStore(t *testing.T) {
	s := newTestStore(t)
	ss := s.(*SQLiteStore)

	for _, table := range []string{"contacts", "batches", "meta"} {
		var name string
		err := ss.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	v, err := ss.SchemaVersion()
	if err != nil || v != schemaVersion {
		t.Fatalf("schema version = %q, %v", v, err)
	}
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "canvass.db")
	ctx := context.Background()

	s, err := NewStore(StoreConfig{DBPath: path})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := s.AddContacts(ctx, sampleContacts(), Batch{ID: "b1", Source: "a.csv"}); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	s.Close()

	s, err = NewStore(StoreConfig{DBPath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ContactCount != 4 {
		t.Fatalf("contacts after reopen = %d, want 4", stats.ContactCount)
	}
	if stats.DBSizeBytes <= 0 {
		t.Fatalf("file-backed store should report a size, got %d", stats.DBSizeBytes)
	}
}

// --- Contacts ---

func TestAddContacts_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := sampleContacts()
	ids, err := s.AddContacts(ctx, in, Batch{ID: "batch-1", Source: "contacts.csv"})
	if err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	if len(ids) != len(in) {
		t.Fatalf("got %d ids, want %d", len(ids), len(in))
	}
	for i, r := range in {
		if r.ID != ids[i] || r.ID == 0 {
			t.Fatalf("record %d id = %d, returned %d", i, r.ID, ids[i])
		}
	}

	got, err := s.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	want := make([]contact.Record, len(in))
	for i, r := range in {
		want[i] = *r
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestAddContacts_RequiresBatchID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddContacts(context.Background(), sampleContacts(), Batch{}); err == nil {
		t.Fatal("expected error for missing batch id")
	}
}

func TestAddContacts_Chunked(t *testing.T) {
	s, err := NewStore(StoreConfig{DBPath: ":memory:", BatchSize: 3})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	var records []*contact.Record
	for i := 0; i < 10; i++ {
		records = append(records, &contact.Record{FirstName: fmt.Sprintf("P%d", i), LastName: "X", Attempts: 1})
	}
	ids, err := s.AddContacts(ctx, records, Batch{ID: "big"})
	if err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	if len(ids) != 10 {
		t.Fatalf("got %d ids, want 10", len(ids))
	}

	batches, err := s.ListBatches(ctx)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 1 || batches[0].RecordCount != 10 {
		t.Fatalf("batches = %+v, want one batch of 10", batches)
	}
}

func TestListContacts_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.AddContacts(ctx, sampleContacts()[:2], Batch{ID: "b1"}); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	if _, err := s.AddContacts(ctx, sampleContacts()[2:], Batch{ID: "b2"}); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}

	tests := []struct {
		name  string
		opts  ListOpts
		names []string
	}{
		{"all", ListOpts{}, []string{"Jane", "Jane", "Sam", "Ana"}},
		{"tactic", ListOpts{Tactic: contact.TacticSMS}, []string{"Jane", "Ana"}},
		{"team", ListOpts{Team: "South"}, []string{"Sam"}},
		{"since", ListOpts{Since: "2025-01-04", Until: "2025-12-31"}, []string{"Jane", "Sam"}},
		{"until", ListOpts{Until: "2025-01-03"}, []string{"Jane"}},
		{"batch", ListOpts{BatchID: "b2"}, []string{"Sam", "Ana"}},
		{"limit", ListOpts{Limit: 2}, []string{"Jane", "Jane"}},
		{"limit offset", ListOpts{Limit: 2, Offset: 2}, []string{"Sam", "Ana"}},
		{"offset only", ListOpts{Offset: 3}, []string{"Ana"}},
		{"no match", ListOpts{Team: "West"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListContacts(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListContacts: %v", err)
			}
			names := make([]string, 0, len(got))
			for _, r := range got {
				names = append(names, r.FirstName)
			}
			if diff := cmp.Diff(tt.names, names); diff != "" {
				t.Fatalf("names mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTeams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.AddContacts(ctx, sampleContacts(), Batch{ID: "b1"}); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	teams, err := s.Teams(ctx)
	if err != nil {
		t.Fatalf("Teams: %v", err)
	}
	if diff := cmp.Diff([]string{"North", "South"}, teams); diff != "" {
		t.Fatalf("teams mismatch (-want +got):\n%s", diff)
	}
}

// --- Batches ---

func TestDeleteBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	imported := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	if _, err := s.AddContacts(ctx, sampleContacts()[:2], Batch{ID: "keep", Source: "a.csv", ImportedAt: imported}); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	if _, err := s.AddContacts(ctx, sampleContacts()[2:], Batch{ID: "drop", Source: "b.csv", ImportedAt: imported.Add(time.Hour)}); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}

	removed, err := s.DeleteBatch(ctx, "drop")
	if err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	left, _ := s.Records(ctx)
	if len(left) != 2 {
		t.Fatalf("records left = %d, want 2", len(left))
	}
	batches, _ := s.ListBatches(ctx)
	if len(batches) != 1 || batches[0].ID != "keep" || batches[0].Source != "a.csv" {
		t.Fatalf("batches = %+v", batches)
	}
	if !batches[0].ImportedAt.Equal(imported) {
		t.Fatalf("imported at = %v, want %v", batches[0].ImportedAt, imported)
	}

	if _, err := s.DeleteBatch(ctx, "drop"); err == nil {
		t.Fatal("deleting a missing batch should fail")
	}
}

// --- Observability ---

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if diff := cmp.Diff(&StoreStats{}, empty); diff != "" {
		t.Fatalf("empty stats mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.AddContacts(ctx, sampleContacts(), Batch{ID: "b1"}); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := &StoreStats{
		ContactCount: 4,
		BatchCount:   1,
		PersonCount:  3,
		TeamCount:    2,
		FirstDate:    "2025-01-03",
		LastDate:     "2025-01-05",
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}
