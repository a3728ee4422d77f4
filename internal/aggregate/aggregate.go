// Package aggregate computes the metrics reported for a filtered set of
// contact records: a single scalar total for a named metric, and the full
// VoterMetrics breakdown by tactic, contact result, not-reached reason and
// date.
//
// Every function is pure. Inputs are never mutated and each call builds its
// own counters, so repeated calls on the same slice return identical values.
package aggregate

import (
	"sort"
	"strings"

	"github.com/hurttlocker/canvass/internal/contact"
)

// Normalised tactic keys used in VoterMetrics.Tactics.
const (
	TacticSMS    = "sms"
	TacticPhone  = "phone"
	TacticCanvas = "canvas"
)

// ContactTotals sums the contact outcomes.
type ContactTotals struct {
	Support   int `json:"support"`
	Oppose    int `json:"oppose"`
	Undecided int `json:"undecided"`
}

// Total is support + oppose + undecided.
func (c ContactTotals) Total() int { return c.Support + c.Oppose + c.Undecided }

// NotReachedTotals sums the reasons a voter was not reached.
type NotReachedTotals struct {
	NotHome int `json:"notHome"`
	Refusal int `json:"refusal"`
	BadData int `json:"badData"`
}

// Total is not_home + refusal + bad_data.
func (n NotReachedTotals) Total() int { return n.NotHome + n.Refusal + n.BadData }

// DateRollup is one chronological bucket of VoterMetrics.ByDate.
type DateRollup struct {
	Date     string `json:"date"`
	Attempts int    `json:"attempts"`
	Contacts int    `json:"contacts"`
	Issues   int    `json:"issues"`
}

// VoterMetrics is the aggregate result object.
type VoterMetrics struct {
	Tactics    map[string]int   `json:"tactics"`
	Contacts   ContactTotals    `json:"contacts"`
	NotReached NotReachedTotals `json:"notReached"`
	ByDate     []DateRollup     `json:"byDate"`
}

// TotalAttempts sums attempts across all tactics.
func (m VoterMetrics) TotalAttempts() int {
	total := 0
	for _, v := range m.Tactics {
		total += v
	}
	return total
}

// RecentDates returns up to n of the most recent date rollups, newest first.
func (m VoterMetrics) RecentDates(n int) []DateRollup {
	if n <= 0 || len(m.ByDate) == 0 {
		return nil
	}
	out := make([]DateRollup, 0, n)
	for i := len(m.ByDate) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.ByDate[i])
	}
	return out
}

// TacticKeys returns the tactic keys in a stable order: sms, phone, canvas,
// then any other keys alphabetically.
func (m VoterMetrics) TacticKeys() []string {
	keys := []string{TacticSMS, TacticPhone, TacticCanvas}
	extra := make([]string, 0)
	for k := range m.Tactics {
		if k != TacticSMS && k != TacticPhone && k != TacticCanvas {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// NormalizeTactic maps a stored tactic to sms, phone, canvas, or its
// lower-cased form.
func NormalizeTactic(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(t, "sms"):
		return TacticSMS
	case strings.Contains(t, "phone") || strings.Contains(t, "call"):
		return TacticPhone
	case strings.Contains(t, "canvas") || strings.Contains(t, "knock") || strings.Contains(t, "door"):
		return TacticCanvas
	}
	return t
}

// Empty returns a structurally complete VoterMetrics with every sum at zero.
func Empty() VoterMetrics {
	return VoterMetrics{
		Tactics: map[string]int{TacticSMS: 0, TacticPhone: 0, TacticCanvas: 0},
		ByDate:  []DateRollup{},
	}
}

// Aggregate computes VoterMetrics for records. A nil or empty slice yields
// Empty().
func Aggregate(records []contact.Record) VoterMetrics {
	m := Empty()
	byDate := make(map[string]*DateRollup)

	for _, r := range records {
		m.Tactics[NormalizeTactic(r.Tactic)] += r.Attempts

		m.Contacts.Support += r.Support
		m.Contacts.Oppose += r.Oppose
		m.Contacts.Undecided += r.Undecided

		m.NotReached.NotHome += r.NotHome
		m.NotReached.Refusal += r.Refusal
		m.NotReached.BadData += r.BadData

		date := strings.TrimSpace(r.Date)
		if !contact.ValidDate(date) {
			continue
		}
		bucket, ok := byDate[date]
		if !ok {
			bucket = &DateRollup{Date: date}
			byDate[date] = bucket
		}
		bucket.Attempts += r.Attempts
		bucket.Contacts += r.Contacts
		bucket.Issues += r.Issues()
	}

	for _, b := range byDate {
		m.ByDate = append(m.ByDate, *b)
	}
	sort.Slice(m.ByDate, func(i, j int) bool {
		a, _ := contact.ParseDate(m.ByDate[i].Date)
		b, _ := contact.ParseDate(m.ByDate[j].Date)
		return a.Before(b)
	})
	return m
}
