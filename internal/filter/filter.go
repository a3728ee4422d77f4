// Package filter selects contact records matching a structured query.
//
// Matching runs in two passes. The strict pass applies every active criterion
// exactly. When it yields nothing and a person criterion is active, a relaxed
// pass retries with bidirectional name containment ("Dan" ~ "Daniel") while
// keeping the tactic, date, team and search criteria in force.
package filter

import (
	"strings"

	"github.com/hurttlocker/canvass/internal/contact"
)

// Outcome is the result of Apply.
type Outcome struct {
	Records []contact.Record
	Relaxed bool // true when the relaxed person pass produced Records
}

// Filter returns the records matching q, preserving input order.
func Filter(records []contact.Record, q contact.Query) []contact.Record {
	return Apply(records, q).Records
}

// Apply is Filter but also reports whether the relaxed pass was used.
func Apply(records []contact.Record, q contact.Query) Outcome {
	strict := selectRecords(records, q, MatchesPerson)
	if len(strict) > 0 || !q.HasPerson() {
		return Outcome{Records: strict}
	}
	relaxed := selectRecords(records, q, RelaxedPersonMatch)
	return Outcome{Records: relaxed, Relaxed: len(relaxed) > 0}
}

// FilterRelaxed applies q using only the relaxed person match.
func FilterRelaxed(records []contact.Record, q contact.Query) []contact.Record {
	return selectRecords(records, q, RelaxedPersonMatch)
}

type personMatcher func(contact.Record, contact.Query) bool

func selectRecords(records []contact.Record, q contact.Query, person personMatcher) []contact.Record {
	out := make([]contact.Record, 0)
	rng, hasRange := parseRange(q)
	for _, r := range records {
		if matches(r, q, person, rng, hasRange) {
			out = append(out, r)
		}
	}
	return out
}

type dateRange struct {
	start, end string
	valid      bool
}

func parseRange(q contact.Query) (dateRange, bool) {
	start := strings.TrimSpace(q.Date)
	end := strings.TrimSpace(q.EndDate)
	if start == "" || end == "" || start == contact.All {
		return dateRange{}, false
	}
	_, okStart := contact.ParseDate(start)
	_, okEnd := contact.ParseDate(end)
	return dateRange{start: start, end: end, valid: okStart && okEnd}, true
}

func matches(r contact.Record, q contact.Query, person personMatcher, rng dateRange, hasRange bool) bool {
	if contact.Active(q.Tactic) && r.Tactic != strings.TrimSpace(q.Tactic) {
		return false
	}

	if hasRange {
		if !inRange(r.Date, rng) {
			return false
		}
	} else if contact.Active(q.Date) && r.Date != strings.TrimSpace(q.Date) {
		return false
	}

	if contact.Active(q.Team) && r.Team != strings.TrimSpace(q.Team) {
		return false
	}

	if q.HasPerson() && !person(r, q) {
		return false
	}

	if term := strings.TrimSpace(q.SearchQuery); term != "" && !q.HasPerson() && !contact.Active(q.Tactic) && !contact.Active(q.Date) {
		if !matchesSearch(r, term) {
			return false
		}
	}
	return true
}

func inRange(date string, rng dateRange) bool {
	if !rng.valid {
		return false
	}
	d, ok := contact.ParseDate(date)
	if !ok {
		return false
	}
	start, _ := contact.ParseDate(rng.start)
	end, _ := contact.ParseDate(rng.end)
	return !d.Before(start) && !d.After(end)
}

func matchesSearch(r contact.Record, term string) bool {
	term = strings.ToLower(term)
	for _, field := range []string{r.DisplayName(), r.Team, r.Tactic} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// MatchesPerson is the strict person predicate: case-insensitive equality on
// both names when FirstName and LastName are given, otherwise a
// case-insensitive substring match of Person against the display name.
func MatchesPerson(r contact.Record, q contact.Query) bool {
	first := strings.TrimSpace(q.FirstName)
	last := strings.TrimSpace(q.LastName)
	if first != "" && last != "" {
		return strings.EqualFold(strings.TrimSpace(r.FirstName), first) &&
			strings.EqualFold(strings.TrimSpace(r.LastName), last)
	}
	person := strings.ToLower(strings.TrimSpace(q.Person))
	if person == "" {
		return false
	}
	return strings.Contains(strings.ToLower(r.DisplayName()), person)
}

// RelaxedPersonMatch accepts a record when each name token and the matching
// record name contain one another in either direction. A single-token person
// matches either the first or the last name.
func RelaxedPersonMatch(r contact.Record, q contact.Query) bool {
	first, last := personTokens(q)
	recFirst := strings.ToLower(strings.TrimSpace(r.FirstName))
	recLast := strings.ToLower(strings.TrimSpace(r.LastName))

	switch {
	case first != "" && last != "":
		return looselyContains(recFirst, first) && looselyContains(recLast, last)
	case first != "":
		return looselyContains(recFirst, first) || looselyContains(recLast, first)
	}
	return false
}

func personTokens(q contact.Query) (string, string) {
	first := strings.ToLower(strings.TrimSpace(q.FirstName))
	last := strings.ToLower(strings.TrimSpace(q.LastName))
	if first != "" && last != "" {
		return first, last
	}
	tokens := strings.Fields(strings.ToLower(q.Person))
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	}
	return tokens[0], tokens[len(tokens)-1]
}

// looselyContains is bidirectional containment. An empty record name never
// matches, otherwise every token would "contain" it.
func looselyContains(recordName, token string) bool {
	if recordName == "" || token == "" {
		return false
	}
	return strings.Contains(recordName, token) || strings.Contains(token, recordName)
}
