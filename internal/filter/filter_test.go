package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hurttlocker/canvass/internal/contact"
)

func sampleRecords() []contact.Record {
	return []contact.Record{
		{ID: 1, FirstName: "Jane", LastName: "Doe", Team: "North", Tactic: "Phone", Date: "2025-01-03", Attempts: 10},
		{ID: 2, FirstName: "Daniel", LastName: "Kelly", Team: "South", Tactic: "SMS", Date: "2025-01-04", Attempts: 25},
		{ID: 3, FirstName: "Daniel", LastName: "Kelly", Team: "South", Tactic: "Canvas", Date: "2025-01-06", Attempts: 8},
		{ID: 4, FirstName: "Maria", LastName: "Lopez", Team: "North", Tactic: "Canvas", Date: "2025-01-06", Attempts: 14},
		{ID: 5, FirstName: "Jane", LastName: "Doering", Team: "East", Tactic: "SMS", Date: "2025-01-10", Attempts: 3},
	}
}

func ids(records []contact.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilter_StrictFields(t *testing.T) {
	records := sampleRecords()
	tests := []struct {
		name  string
		query contact.Query
		want  []int64
	}{
		{"empty query keeps everything", contact.Query{}, []int64{1, 2, 3, 4, 5}},
		{"all wildcards", contact.Query{Tactic: contact.All, Team: contact.All, Date: contact.All}, []int64{1, 2, 3, 4, 5}},
		{"tactic exact", contact.Query{Tactic: "Canvas"}, []int64{3, 4}},
		{"tactic is case sensitive", contact.Query{Tactic: "canvas"}, []int64{}},
		{"single date", contact.Query{Date: "2025-01-06"}, []int64{3, 4}},
		{"inclusive range", contact.Query{Date: "2025-01-04", EndDate: "2025-01-06"}, []int64{2, 3, 4}},
		{"inverted range is empty", contact.Query{Date: "2025-01-06", EndDate: "2025-01-04"}, []int64{}},
		{"invalid range bound is empty", contact.Query{Date: "2025-02-30", EndDate: "2025-03-01"}, []int64{}},
		{"team exact", contact.Query{Team: "North"}, []int64{1, 4}},
		{"person substring", contact.Query{Person: "jane doe"}, []int64{1, 5}},
		{"first and last exact", contact.Query{Person: "Jane Doe", FirstName: "jane", LastName: "DOE"}, []int64{1}},
		{"combined", contact.Query{Person: "Daniel Kelly", Tactic: "SMS"}, []int64{2}},
		{"search term on team", contact.Query{SearchQuery: "east"}, []int64{5}},
		{"search term on name", contact.Query{SearchQuery: "lopez"}, []int64{4}},
		{"search ignored when tactic set", contact.Query{SearchQuery: "nobody", Tactic: "SMS"}, []int64{2, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(records, tt.query))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_RelaxedRecovery(t *testing.T) {
	records := sampleRecords()

	if strict := selectRecords(records, contact.Query{Person: "Dan Kelly"}, MatchesPerson); len(strict) != 0 {
		t.Fatalf("strict pass should be empty, got %v", ids(strict))
	}

	out := Apply(records, contact.Query{Person: "Dan Kelly"})
	if !out.Relaxed {
		t.Fatal("expected the relaxed pass to be used")
	}
	if diff := cmp.Diff([]int64{2, 3}, ids(out.Records)); diff != "" {
		t.Fatalf("relaxed mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_RelaxedKeepsOtherFilters(t *testing.T) {
	records := sampleRecords()
	got := Filter(records, contact.Query{Person: "Dan Kelly", Tactic: "Canvas"})
	if diff := cmp.Diff([]int64{3}, ids(got)); diff != "" {
		t.Fatalf("relaxed pass ignored tactic (-want +got):\n%s", diff)
	}

	got = Filter(records, contact.Query{Person: "Dan Kelly", Team: "North"})
	if len(got) != 0 {
		t.Fatalf("relaxed pass must not cross the team filter, got %v", ids(got))
	}
}

func TestFilter_NoRelaxedWithoutPerson(t *testing.T) {
	out := Apply(sampleRecords(), contact.Query{Tactic: "Mail"})
	if out.Relaxed || len(out.Records) != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestRelaxedPersonMatch(t *testing.T) {
	r := contact.Record{FirstName: "Daniel", LastName: "Kelly"}
	tests := []struct {
		person string
		want   bool
	}{
		{"Dan Kelly", true},
		{"Daniel Kell", true},
		{"Danielle Kelly", true},
		{"Dan Smith", false},
		{"Kelly", true},
		{"Dan", true},
		{"Bob", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := RelaxedPersonMatch(r, contact.Query{Person: tt.person}); got != tt.want {
			t.Errorf("RelaxedPersonMatch(%q) = %v, want %v", tt.person, got, tt.want)
		}
	}

	empty := contact.Record{FirstName: "", LastName: "Kelly"}
	if RelaxedPersonMatch(empty, contact.Query{Person: "Dan Kelly"}) {
		t.Error("empty first name must not match")
	}
}

func TestFilter_Monotonic(t *testing.T) {
	records := sampleRecords()
	queries := []contact.Query{
		{Tactic: "SMS"},
		{Team: "North", Date: "2025-01-06"},
		{Person: "Jane"},
		{Person: "Dan Kelly", Date: "2025-01-01", EndDate: "2025-01-31"},
	}
	for _, q := range queries {
		got := Filter(records, q)
		if len(got) > len(records) {
			t.Fatalf("filter grew the set for %+v", q)
		}
		for _, r := range got {
			if contact.Active(q.Tactic) && r.Tactic != q.Tactic {
				t.Fatalf("record %d violates tactic %q", r.ID, q.Tactic)
			}
			if contact.Active(q.Team) && r.Team != q.Team {
				t.Fatalf("record %d violates team %q", r.ID, q.Team)
			}
		}
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	records := sampleRecords()
	before := append([]contact.Record(nil), records...)
	_ = Filter(records, contact.Query{Person: "Dan Kelly"})
	if diff := cmp.Diff(before, records); diff != "" {
		t.Fatalf("input mutated:\n%s", diff)
	}
}

func TestFilter_JaneDoeScenario(t *testing.T) {
	records := []contact.Record{{Tactic: "Phone", Attempts: 10, Date: "2025-01-03", FirstName: "Jane", LastName: "Doe"}}
	if got := Filter(records, contact.Query{Tactic: "Phone", Person: "Jane Doe", ResultType: "attempts"}); len(got) != 1 {
		t.Fatalf("expected one record, got %d", len(got))
	}
	if got := Filter(records, contact.Query{Tactic: "SMS", Person: "Jane Doe", ResultType: "attempts"}); len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}
