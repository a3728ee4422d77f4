package observe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hurttlocker/canvass/internal/contact"
)

// IssueKind classifies a single-record problem.
type IssueKind string

const (
	IssueInvalidDate      IssueKind = "invalid_date"
	IssueMissingDate      IssueKind = "missing_date"
	IssueMissingName      IssueKind = "missing_name"
	IssueUnknownTactic    IssueKind = "unknown_tactic"
	IssueContactsExceed   IssueKind = "contacts_exceed_attempts"
	IssueResultsExceed    IssueKind = "results_exceed_contacts"
	IssueNotReachedExceed IssueKind = "not_reached_exceeds_attempts"
)

// Issue is one problem found on one record.
type Issue struct {
	RecordID int64     `json:"recordId"`
	Kind     IssueKind `json:"kind"`
	Message  string    `json:"message"`
}

// CheckRecords returns every single-record issue in records, in record order.
func CheckRecords(records []contact.Record) []Issue {
	out := make([]Issue, 0)
	add := func(r contact.Record, kind IssueKind, format string, args ...any) {
		out = append(out, Issue{RecordID: r.ID, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	for _, r := range records {
		who := r.DisplayName()
		if who == "" {
			who = fmt.Sprintf("record %d", r.ID)
			add(r, IssueMissingName, "record %d has no first or last name", r.ID)
		}

		switch {
		case strings.TrimSpace(r.Date) == "":
			add(r, IssueMissingDate, "%s has no date", who)
		case !contact.ValidDate(r.Date):
			add(r, IssueInvalidDate, "%s has unusable date %q", who, r.Date)
		}

		switch r.Tactic {
		case contact.TacticSMS, contact.TacticPhone, contact.TacticCanvas:
		default:
			add(r, IssueUnknownTactic, "%s has unrecognised tactic %q", who, r.Tactic)
		}

		if r.Contacts > r.Attempts {
			add(r, IssueContactsExceed, "%s logged %d contacts from %d attempts", who, r.Contacts, r.Attempts)
		}
		if results := r.Support + r.Oppose + r.Undecided; results > r.Contacts {
			add(r, IssueResultsExceed, "%s logged %d contact results from %d contacts", who, results, r.Contacts)
		}
		if r.Issues()+r.Contacts > r.Attempts {
			add(r, IssueNotReachedExceed, "%s logged %d contacts and %d not reached from %d attempts",
				who, r.Contacts, r.Issues(), r.Attempts)
		}
	}
	return out
}

// Conflict is a group of records logged for the same person, team, tactic and
// date. Duplicate means the counts are identical too, which usually means the
// same file was imported twice.
type Conflict struct {
	Person    string  `json:"person"`
	Team      string  `json:"team,omitempty"`
	Tactic    string  `json:"tactic"`
	Date      string  `json:"date"`
	RecordIDs []int64 `json:"recordIds"`
	Duplicate bool    `json:"duplicate"`
}

type conflictKey struct {
	person, team, tactic, date string
}

// FindConflicts groups records by person, team, tactic and date and returns
// every group with more than one record, ordered by date then person.
func FindConflicts(records []contact.Record) []Conflict {
	groups := make(map[conflictKey][]contact.Record)
	var order []conflictKey
	for _, r := range records {
		name := r.DisplayName()
		if name == "" || strings.TrimSpace(r.Date) == "" {
			continue
		}
		k := conflictKey{
			person: strings.ToLower(name),
			team:   strings.ToLower(r.Team),
			tactic: r.Tactic,
			date:   r.Date,
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]Conflict, 0)
	for _, k := range order {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		c := Conflict{
			Person:    group[0].DisplayName(),
			Team:      group[0].Team,
			Tactic:    group[0].Tactic,
			Date:      group[0].Date,
			Duplicate: true,
		}
		for _, r := range group {
			c.RecordIDs = append(c.RecordIDs, r.ID)
			if !sameCounts(r, group[0]) {
				c.Duplicate = false
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Person < out[j].Person
	})
	return out
}

func sameCounts(a, b contact.Record) bool {
	a.ID, b.ID = 0, 0
	return a == b
}
