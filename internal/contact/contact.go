// Package contact defines the voter-contact record model shared by the
// extraction, filtering, aggregation and answer-validation layers.
//
// Records are produced by the importer and read-only everywhere else. All
// numeric coercion happens once, at the ingestion boundary (ParseCount), so
// downstream code can treat every count as a well-typed non-negative int.
package contact

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical tactic values.
const (
	TacticSMS    = "SMS"
	TacticPhone  = "Phone"
	TacticCanvas = "Canvas"
)

// All disables a Tactic, Team or Date filter.
const All = "All"

// DateLayout is the ISO calendar layout used for every stored date.
const DateLayout = "2006-01-02"

// Record is one logged contact attempt.
type Record struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Team      string `json:"team"`
	Tactic    string `json:"tactic"`
	Date      string `json:"date"`

	Attempts  int `json:"attempts"`
	Contacts  int `json:"contacts"`
	NotHome   int `json:"notHome"`
	Refusal   int `json:"refusal"`
	BadData   int `json:"badData"`
	Support   int `json:"support"`
	Oppose    int `json:"oppose"`
	Undecided int `json:"undecided"`
}

// DisplayName returns "First Last" with surrounding space trimmed.
func (r Record) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// Issues is the not-reached total for the record.
func (r Record) Issues() int {
	return r.NotHome + r.Refusal + r.BadData
}

// Query is a partial structured filter/request. Empty fields are inactive.
type Query struct {
	Tactic      string `json:"tactic,omitempty"`
	Person      string `json:"person,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Team        string `json:"team,omitempty"`
	Date        string `json:"date,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	ResultType  string `json:"resultType,omitempty"`
	SearchQuery string `json:"searchQuery,omitempty"`
}

// HasPerson reports whether a person criterion is active.
func (q Query) HasPerson() bool {
	if strings.TrimSpace(q.Person) != "" {
		return true
	}
	return strings.TrimSpace(q.FirstName) != "" && strings.TrimSpace(q.LastName) != ""
}

// PersonLabel is the human-readable person criterion.
func (q Query) PersonLabel() string {
	if p := strings.TrimSpace(q.Person); p != "" {
		return p
	}
	return strings.TrimSpace(strings.TrimSpace(q.FirstName) + " " + strings.TrimSpace(q.LastName))
}

// WithoutPerson returns a copy of q with every person criterion cleared.
func (q Query) WithoutPerson() Query {
	q.Person = ""
	q.FirstName = ""
	q.LastName = ""
	return q
}

// Merge overlays the non-empty fields of override onto q.
func (q Query) Merge(override Query) Query {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&q.Tactic, override.Tactic)
	set(&q.Person, override.Person)
	set(&q.FirstName, override.FirstName)
	set(&q.LastName, override.LastName)
	set(&q.Team, override.Team)
	set(&q.Date, override.Date)
	set(&q.EndDate, override.EndDate)
	set(&q.ResultType, override.ResultType)
	set(&q.SearchQuery, override.SearchQuery)
	return q
}

// Active reports whether v is set and not the All wildcard.
func Active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != All
}

// ParseCount converts a raw imported value to a non-negative count.
// Empty, unparsable, non-finite and negative inputs become 0. Thousands
// separators are stripped and fractional values are truncated.
func ParseCount(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// CanonicalTactic maps a raw tactic label to SMS, Phone or Canvas when it
// recognises one, and otherwise returns the trimmed input.
func CanonicalTactic(raw string) string {
	t := strings.TrimSpace(raw)
	lower := strings.ToLower(t)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "sms") || strings.Contains(lower, "text"):
		return TacticSMS
	case strings.Contains(lower, "phone") || strings.Contains(lower, "call"):
		return TacticPhone
	case strings.Contains(lower, "canvas") || strings.Contains(lower, "door") || strings.Contains(lower, "knock"):
		return TacticCanvas
	}
	return t
}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in month (1-12) of year, or 0 for an
// invalid month.
func DaysIn(month, year int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	}
	return 0
}

// BuildDate returns the ISO date for the given components, or false when they
// do not form a calendar date.
func BuildDate(year, month, day int) (string, bool) {
	if year < 1 || year > 9999 {
		return "", false
	}
	if day < 1 || day > DaysIn(month, year) {
		return "", false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(DateLayout), true
}

// ParseDate parses a strict ISO date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ValidDate reports whether s is a calendar-valid ISO date.
func ValidDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}
