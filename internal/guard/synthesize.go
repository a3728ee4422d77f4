package guard

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/hurttlocker/canvass/internal/aggregate"
	"github.com/hurttlocker/canvass/internal/contact"
	"github.com/hurttlocker/canvass/internal/filter"
)

// recentDateCount is how many dates the breakdown lists.
const recentDateCount = 3

// stage is one progressively applied filter in the narration.
type stage struct {
	active bool
	desc   string
	apply  func(dst *contact.Query)
}

func stages(q contact.Query) []stage {
	return []stage{
		{
			active: q.HasPerson(),
			desc:   "person " + q.PersonLabel(),
			apply: func(dst *contact.Query) {
				dst.Person, dst.FirstName, dst.LastName = q.Person, q.FirstName, q.LastName
			},
		},
		{
			active: contact.Active(q.Tactic),
			desc:   "tactic " + strings.TrimSpace(q.Tactic),
			apply:  func(dst *contact.Query) { dst.Tactic = q.Tactic },
		},
		{
			active: contact.Active(q.Team),
			desc:   "team " + strings.TrimSpace(q.Team),
			apply:  func(dst *contact.Query) { dst.Team = q.Team },
		},
		{
			active: contact.Active(q.Date),
			desc:   dateDesc(q),
			apply:  func(dst *contact.Query) { dst.Date, dst.EndDate = q.Date, q.EndDate },
		},
	}
}

func dateDesc(q contact.Query) string {
	start, end := strings.TrimSpace(q.Date), strings.TrimSpace(q.EndDate)
	if end != "" && end != start {
		return fmt.Sprintf("dates %s to %s", start, end)
	}
	return "date " + start
}

// filterDescriptions lists the active criteria of q in narration order.
func filterDescriptions(q contact.Query) []string {
	var out []string
	for _, s := range stages(q) {
		if s.active {
			out = append(out, s.desc)
		}
	}
	if term := strings.TrimSpace(q.SearchQuery); term != "" {
		out = append(out, fmt.Sprintf("search %q", term))
	}
	return out
}

// synthesize builds the grounded answer for a non-empty record set.
func synthesize(in Input) string {
	q := in.Query
	universe := in.Universe
	if universe == nil {
		universe = in.Records
	}
	m := aggregate.Aggregate(in.Records)

	var b strings.Builder
	b.WriteString("Based on the contact records, ")
	b.WriteString(narrateFilters(universe, in.Records, q))
	b.WriteString(".")

	fmt.Fprintf(&b, " Total attempts: %s.", comma(m.TotalAttempts()))

	if c := m.Contacts; c.Total() > 0 {
		fmt.Fprintf(&b, " Contacts: %s (support %s, oppose %s, undecided %s).",
			comma(c.Total()), comma(c.Support), comma(c.Oppose), comma(c.Undecided))
	}
	if nr := m.NotReached; nr.Total() > 0 {
		fmt.Fprintf(&b, " Not reached: %s (not home %s, refusal %s, bad data %s).",
			comma(nr.Total()), comma(nr.NotHome), comma(nr.Refusal), comma(nr.BadData))
	}
	if metric, ok := aggregate.LookupMetric(q.ResultType); ok && strings.TrimSpace(q.ResultType) != "" {
		fmt.Fprintf(&b, " %s total: %s.", capitalize(metric.Label()), comma(aggregate.Sum(in.Records, metric)))
	}

	singleDate := contact.Active(q.Date) && strings.TrimSpace(q.EndDate) == ""
	if !q.HasPerson() && !singleDate {
		parts := make([]string, 0, len(m.Tactics))
		for _, key := range m.TacticKeys() {
			name := key
			if name == "" {
				name = "unspecified"
			}
			parts = append(parts, fmt.Sprintf("%s %s", name, comma(m.Tactics[key])))
		}
		fmt.Fprintf(&b, " By tactic: %s.", strings.Join(parts, ", "))

		if len(m.ByDate) > 1 {
			recent := m.RecentDates(recentDateCount)
			parts = parts[:0]
			for _, d := range recent {
				parts = append(parts, fmt.Sprintf("%s (%s %s)", d.Date, comma(d.Attempts), english.PluralWord(d.Attempts, "attempt", "")))
			}
			fmt.Fprintf(&b, " Most recent dates: %s.", strings.Join(parts, ", "))
		}
	}
	return b.String()
}

// narrateFilters states how many records remain after each active filter,
// applied cumulatively over universe in the order person, tactic, team, date.
func narrateFilters(universe, records []contact.Record, q contact.Query) string {
	var clauses []string
	var cumulative contact.Query
	for _, s := range stages(q) {
		if !s.active {
			continue
		}
		s.apply(&cumulative)
		n := len(filter.Filter(universe, cumulative))
		if len(clauses) == 0 {
			clauses = append(clauses, fmt.Sprintf("%s %s %s %s", comma(n), english.PluralWord(n, "record", ""), verb(n, "matches", "match"), s.desc))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s after %s", comma(n), s.desc))
	}
	if len(clauses) == 0 {
		n := len(records)
		return fmt.Sprintf("there %s %s matching %s", verb(n, "is", "are"), comma(n), english.PluralWord(n, "record", ""))
	}
	return strings.Join(clauses, ", ")
}

// noMatches is the answer when nothing matched.
func noMatches(q contact.Query) string {
	descs := filterDescriptions(q)
	if len(descs) == 0 {
		return "No matching records were found."
	}
	return fmt.Sprintf("No matching records were found for %s.", english.OxfordWordSeries(descs, "and"))
}

// countSummary is the degraded answer when synthesis fails.
func countSummary(records []contact.Record, q contact.Query) string {
	n := len(records)
	s := fmt.Sprintf("Based on the contact records, there %s %s matching %s", verb(n, "is", "are"), comma(n), english.PluralWord(n, "record", ""))
	if descs := filterDescriptions(q); len(descs) > 0 {
		s += " for " + english.OxfordWordSeries(descs, "and")
	}
	return s + "."
}

func comma(n int) string { return humanize.Comma(int64(n)) }

func verb(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
