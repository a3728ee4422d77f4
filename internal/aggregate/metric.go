package aggregate

import (
	"strings"

	"github.com/hurttlocker/canvass/internal/contact"
)

// Metric names a summable record field.
type Metric string

const (
	MetricAttempts  Metric = "attempts"
	MetricContacts  Metric = "contacts"
	MetricSupport   Metric = "support"
	MetricOppose    Metric = "oppose"
	MetricUndecided Metric = "undecided"
	MetricNotHome   Metric = "notHome"
	MetricRefusal   Metric = "refusal"
	MetricBadData   Metric = "badData"
)

// Metrics lists every metric in reporting order.
var Metrics = []Metric{
	MetricAttempts, MetricContacts, MetricSupport, MetricOppose,
	MetricUndecided, MetricNotHome, MetricRefusal, MetricBadData,
}

// MetricNames returns the canonical metric names in reporting order.
func MetricNames() []string {
	out := make([]string, len(Metrics))
	for i, m := range Metrics {
		out[i] = string(m)
	}
	return out
}

var selectors = map[Metric]func(contact.Record) int{
	MetricAttempts:  func(r contact.Record) int { return r.Attempts },
	MetricContacts:  func(r contact.Record) int { return r.Contacts },
	MetricSupport:   func(r contact.Record) int { return r.Support },
	MetricOppose:    func(r contact.Record) int { return r.Oppose },
	MetricUndecided: func(r contact.Record) int { return r.Undecided },
	MetricNotHome:   func(r contact.Record) int { return r.NotHome },
	MetricRefusal:   func(r contact.Record) int { return r.Refusal },
	MetricBadData:   func(r contact.Record) int { return r.BadData },
}

// metricAliases is keyed by normalised names (see metricKey).
var metricAliases = map[string]Metric{
	"attempts": MetricAttempts, "attempt": MetricAttempts, "tries": MetricAttempts,
	"contacts": MetricContacts, "contact": MetricContacts, "reached": MetricContacts,
	"support": MetricSupport, "supports": MetricSupport, "supporter": MetricSupport, "supporters": MetricSupport,
	"oppose": MetricOppose, "opposed": MetricOppose, "opposition": MetricOppose, "opponents": MetricOppose,
	"undecided": MetricUndecided, "unsure": MetricUndecided,
	"nothome": MetricNotHome, "notathome": MetricNotHome,
	"refusal": MetricRefusal, "refusals": MetricRefusal, "refused": MetricRefusal, "refuse": MetricRefusal,
	"baddata": MetricBadData, "badnumber": MetricBadData, "wrongnumber": MetricBadData,
}

// metricKey lower-cases name and drops spaces, underscores and hyphens, so
// "Not Home", "not_home" and "notHome" share one key.
func metricKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LookupMetric resolves a metric name or synonym. An empty name resolves to
// attempts; an unknown name reports false.
func LookupMetric(name string) (Metric, bool) {
	key := metricKey(name)
	if key == "" {
		return MetricAttempts, true
	}
	m, ok := metricAliases[key]
	return m, ok
}

// Value returns the metric's value for one record.
func (m Metric) Value(r contact.Record) int {
	if sel, ok := selectors[m]; ok {
		return sel(r)
	}
	return 0
}

// Label is the metric's human-readable name.
func (m Metric) Label() string {
	switch m {
	case MetricNotHome:
		return "not home"
	case MetricBadData:
		return "bad data"
	}
	return string(m)
}

// ScalarTotal sums the named metric across records. An empty metric means
// attempts; an unknown metric sums to 0.
func ScalarTotal(records []contact.Record, metric string) int {
	m, ok := LookupMetric(metric)
	if !ok {
		return 0
	}
	return Sum(records, m)
}

// Sum adds m across records.
func Sum(records []contact.Record, m Metric) int {
	total := 0
	for _, r := range records {
		total += m.Value(r)
	}
	return total
}
