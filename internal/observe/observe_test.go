package observe

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hurttlocker/canvass/internal/contact"
	"github.com/hurttlocker/canvass/internal/store"
)

var fixedNow = time.Date(2025, 1, 20, 15, 0, 0, 0, time.UTC)

// newTestEngine creates an audit engine over an in-memory store.
func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewEngine(s, func() time.Time { return fixedNow }), s
}

func addBatch(t *testing.T, s store.Store, id string, at time.Time, records ...contact.Record) {
	t.Helper()
	ptrs := make([]*contact.Record, len(records))
	for i := range records {
		r := records[i]
		ptrs[i] = &r
	}
	if _, err := s.AddContacts(context.Background(), ptrs, store.Batch{ID: id, ImportedAt: at}); err != nil {
		t.Fatalf("AddContacts: %v", err)
	}
}

// --- Record checks ---

func TestCheckRecords(t *testing.T) {
	tests := []struct {
		name   string
		record contact.Record
		want   []IssueKind
	}{
		{
			name:   "clean",
			record: contact.Record{FirstName: "Jane", LastName: "Doe", Tactic: contact.TacticPhone, Date: "2025-01-03", Attempts: 10, Contacts: 4, NotHome: 3, Support: 2, Oppose: 1, Undecided: 1},
		},
		{
			name:   "invalid date",
			record: contact.Record{FirstName: "Jane", Tactic: contact.TacticSMS, Date: "2025-02-30", Attempts: 1},
			want:   []IssueKind{IssueInvalidDate},
		},
		{
			name:   "missing date and name",
			record: contact.Record{Tactic: contact.TacticSMS, Attempts: 1},
			want:   []IssueKind{IssueMissingName, IssueMissingDate},
		},
		{
			name:   "unknown tactic",
			record: contact.Record{FirstName: "Sam", Tactic: "Mailer", Date: "2025-01-03", Attempts: 1},
			want:   []IssueKind{IssueUnknownTactic},
		},
		{
			name:   "contacts exceed attempts",
			record: contact.Record{FirstName: "Sam", Tactic: contact.TacticCanvas, Date: "2025-01-03", Attempts: 2, Contacts: 5},
			want:   []IssueKind{IssueContactsExceed, IssueNotReachedExceed},
		},
		{
			name:   "results exceed contacts",
			record: contact.Record{FirstName: "Sam", Tactic: contact.TacticCanvas, Date: "2025-01-03", Attempts: 9, Contacts: 2, Support: 3},
			want:   []IssueKind{IssueResultsExceed},
		},
		{
			name:   "not reached exceeds attempts",
			record: contact.Record{FirstName: "Sam", Tactic: contact.TacticPhone, Date: "2025-01-03", Attempts: 4, Contacts: 2, NotHome: 2, Refusal: 1},
			want:   []IssueKind{IssueNotReachedExceed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []IssueKind
			for _, is := range CheckRecords([]contact.Record{tt.record}) {
				got = append(got, is.Kind)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("issues mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// --- Conflicts ---

func TestFindConflicts(t *testing.T) {
	records := []contact.Record{
		{ID: 1, FirstName: "Jane", LastName: "Doe", Team: "North", Tactic: contact.TacticPhone, Date: "2025-01-03", Attempts: 10},
		{ID: 2, FirstName: "jane", LastName: "doe", Team: "north", Tactic: contact.TacticPhone, Date: "2025-01-03", Attempts: 12},
		{ID: 3, FirstName: "Sam", LastName: "Lee", Tactic: contact.TacticSMS, Date: "2025-01-02", Attempts: 5},
		{ID: 4, FirstName: "Sam", LastName: "Lee", Tactic: contact.TacticSMS, Date: "2025-01-02", Attempts: 5},
		{ID: 5, FirstName: "Sam", LastName: "Lee", Tactic: contact.TacticPhone, Date: "2025-01-02", Attempts: 5},
		{ID: 6, Tactic: contact.TacticSMS, Date: "2025-01-02", Attempts: 5},
		{ID: 7, Tactic: contact.TacticSMS, Date: "2025-01-02", Attempts: 5},
	}

	want := []Conflict{
		{Person: "Sam Lee", Tactic: contact.TacticSMS, Date: "2025-01-02", RecordIDs: []int64{3, 4}, Duplicate: true},
		{Person: "Jane Doe", Team: "North", Tactic: contact.TacticPhone, Date: "2025-01-03", RecordIDs: []int64{1, 2}},
	}
	if diff := cmp.Diff(want, FindConflicts(records)); diff != "" {
		t.Fatalf("conflicts mismatch (-want +got):\n%s", diff)
	}
}

// --- Stale people ---

func TestFindStale(t *testing.T) {
	records := []contact.Record{
		{FirstName: "Jane", LastName: "Doe", Team: "North", Date: "2025-01-20"},
		{FirstName: "Sam", LastName: "Lee", Team: "South", Date: "2025-01-01"},
		{FirstName: "Sam", LastName: "Lee", Team: "South", Date: "2025-01-02"},
		{FirstName: "Ana", LastName: "Ruiz", Date: "2024-12-01"},
		{FirstName: "Bo", LastName: "Vance", Date: "2025-01-10"},
		{FirstName: "Cy", LastName: "Undated", Date: "not a date"},
	}

	want := []StalePerson{
		{Name: "Ana Ruiz", LastDate: "2024-12-01", DaysBehind: 50, TotalRecords: 1},
		{Name: "Sam Lee", Team: "South", LastDate: "2025-01-02", DaysBehind: 18, TotalRecords: 2},
	}
	if diff := cmp.Diff(want, FindStale(records, 14)); diff != "" {
		t.Fatalf("stale mismatch (-want +got):\n%s", diff)
	}

	if got := FindStale(nil, 14); len(got) != 0 {
		t.Fatalf("expected no stale people for empty input, got %v", got)
	}
}

// --- Audit ---

func TestAudit_Empty(t *testing.T) {
	engine, _ := newTestEngine(t)
	report, err := engine.Audit(context.Background(), AuditOpts{})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.Records != 0 || len(report.Issues) != 0 || len(report.Conflicts) != 0 || len(report.Stale) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Alerts) != 1 || report.Alerts[0].Code != "empty_store" {
		t.Fatalf("alerts = %+v, want empty_store", report.Alerts)
	}
}

func TestAudit_FindsProblems(t *testing.T) {
	engine, s := newTestEngine(t)

	jane := contact.Record{FirstName: "Jane", LastName: "Doe", Team: "North", Tactic: contact.TacticPhone, Date: "2025-01-19", Attempts: 10, Contacts: 4}
	addBatch(t, s, "first", fixedNow.Add(-2*time.Hour),
		jane,
		contact.Record{FirstName: "Sam", LastName: "Lee", Tactic: contact.TacticSMS, Date: "2025-01-01", Attempts: 3},
		contact.Record{FirstName: "Ana", LastName: "Ruiz", Tactic: contact.TacticCanvas, Date: "2025-02-30", Attempts: 1},
	)
	addBatch(t, s, "again", fixedNow.Add(-10*24*time.Hour), jane)

	report, err := engine.Audit(context.Background(), AuditOpts{})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}

	if report.Records != 4 || report.Batches != 2 || report.NewestDate != "2025-01-19" {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if diff := cmp.Diff(Freshness{Today: 3, ThisMonth: 1}, report.Freshness); diff != "" {
		t.Fatalf("freshness mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[IssueKind]int{IssueInvalidDate: 1}, report.IssueCounts); diff != "" {
		t.Fatalf("issue counts mismatch (-want +got):\n%s", diff)
	}
	if len(report.Conflicts) != 1 || !report.Conflicts[0].Duplicate {
		t.Fatalf("conflicts = %+v, want one duplicate", report.Conflicts)
	}
	if len(report.Stale) != 1 || report.Stale[0].Name != "Sam Lee" {
		t.Fatalf("stale = %+v, want Sam Lee", report.Stale)
	}

	var codes []string
	for _, a := range report.Alerts {
		codes = append(codes, a.Code)
	}
	if diff := cmp.Diff([]string{"undated_records", "duplicate_rows", "stale_people"}, codes); diff != "" {
		t.Fatalf("alert codes mismatch (-want +got):\n%s", diff)
	}
	if report.Alerts[0].Severity != SeverityCritical {
		t.Fatalf("1 of 4 undated records should be critical, got %s", report.Alerts[0].Severity)
	}
}

func TestAudit_Limit(t *testing.T) {
	engine, s := newTestEngine(t)
	var records []contact.Record
	for i := 0; i < 5; i++ {
		records = append(records, contact.Record{FirstName: "P", LastName: "Q", Tactic: "Mailer", Date: "2025-01-01", Attempts: 1})
	}
	addBatch(t, s, "b", fixedNow, records...)

	report, err := engine.Audit(context.Background(), AuditOpts{Limit: 2})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(report.Issues) != 2 || report.IssueCounts[IssueUnknownTactic] != 5 {
		t.Fatalf("issues = %d (counts %v), want 2 shown of 5", len(report.Issues), report.IssueCounts)
	}
}
