package extract

import (
	"regexp"
	"strings"

	"github.com/hurttlocker/canvass/internal/aggregate"
	"github.com/hurttlocker/canvass/internal/contact"
)

// keywordGroup maps any of its substrings to value. Groups are tested in
// order and the first hit wins.
type keywordGroup struct {
	value    string
	keywords []string
}

var tacticGroups = []keywordGroup{
	{contact.TacticSMS, []string{"sms", "text"}},
	{contact.TacticPhone, []string{"phone", "call"}},
	{contact.TacticCanvas, []string{"canvas", "door", "knock"}},
}

// metricGroups is ordered most specific first: "contact attempts" is an
// attempts question, "supporters contacted" a support question.
var metricGroups = []keywordGroup{
	{string(aggregate.MetricNotHome), []string{"not home", "not_home", "nothome", "not at home", "nobody home"}},
	{string(aggregate.MetricRefusal), []string{"refus", "declined"}},
	{string(aggregate.MetricBadData), []string{"bad data", "bad_data", "baddata", "wrong number", "bad number", "disconnected"}},
	{string(aggregate.MetricSupport), []string{"support"}},
	{string(aggregate.MetricOppose), []string{"oppos"}},
	{string(aggregate.MetricUndecided), []string{"undecided", "unsure", "on the fence"}},
	{string(aggregate.MetricAttempts), []string{"attempt", "tries", "outreach"}},
	{string(aggregate.MetricContacts), []string{"contact", "reached", "conversation"}},
}

var defaultMetric = string(aggregate.MetricAttempts)

var measureIntent = []string{
	"how many", "how much", "total", "count", "number of", "sum of",
	"what was", "what were", "tally", "how did", "how well",
}

var trendWords = []string{"trend", "over time", "progress", "change", "growth"}

var (
	compareRE = regexp.MustCompile(`compare\s+(.+?)\s+(?:vs\.?|versus|and|to|with)\s+(.+?)\s*(?:[?.!,;]|$)`)
	versusRE  = regexp.MustCompile(`([a-z0-9][a-z0-9'\-]*(?:\s+[a-z0-9][a-z0-9'\-]*)?)\s+(?:vs\.?|versus)\s+([a-z0-9][a-z0-9'\-]*(?:\s+[a-z0-9][a-z0-9'\-]*)?)`)
)

func matchGroup(lower string, groups []keywordGroup) string {
	for _, g := range groups {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				return g.value
			}
		}
	}
	return ""
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func hasMeasureIntent(lower string) bool { return containsAny(lower, measureIntent) }

func hasTrend(lower string) bool { return containsAny(lower, trendWords) }

// extractComparisons finds "compare A and B" constructs first and falls back
// to bare "A vs B" pairs.
func extractComparisons(lower string) []Comparison {
	var out []Comparison
	for _, m := range compareRE.FindAllStringSubmatch(lower, -1) {
		if c, ok := newComparison(m[1], m[2]); ok {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, m := range versusRE.FindAllStringSubmatch(lower, -1) {
		if c, ok := newComparison(m[1], m[2]); ok {
			out = append(out, c)
		}
	}
	return out
}

func newComparison(a, b string) (Comparison, bool) {
	a = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(a), "the "))
	b = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(b), "the "))
	if a == "" || b == "" || a == b {
		return Comparison{}, false
	}
	return Comparison{A: a, B: b}, true
}
