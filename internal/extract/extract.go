// Package extract turns a free-text question about voter contacts into a
// structured contact.Query.
//
// Extraction is rule based and deterministic for a fixed clock:
// - Tactic keywords ("texts", "phone calls", "door knocks")
// - Dates (relative, ISO, US, month name), each calendar-validated
// - Person names ("by Jane Doe", "did jane doe", "Jane Doe")
// - Team names ("team north", or a seeded vocabulary)
// - Result metric ("supporters", "refusals", ...)
// - Comparison pairs and trend wording, which classify the query shape
//
// Fragments that cannot be parsed are dropped. Extract never fails.
package extract

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/hurttlocker/canvass/internal/contact"
)

// Shape classifies the form of a question.
type Shape string

const (
	ShapeSimple     Shape = "simple"
	ShapeComparison Shape = "comparison"
	ShapeTrend      Shape = "trend"
	ShapeComplex    Shape = "complex"
)

// extractableFields is the number of signals that feed the confidence score:
// date, tactic, person, team, result type, comparison-or-trend.
const extractableFields = 6

// complexFieldThreshold is the field count at which a query is complex.
const complexFieldThreshold = 4

// Comparison is one "A vs B" pair.
type Comparison struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Result is the output of Extract.
type Result struct {
	Query       contact.Query `json:"query"`
	Confidence  float64       `json:"confidence"`
	Shape       Shape         `json:"shape"`
	Comparisons []Comparison  `json:"comparisons,omitempty"`
	Trend       bool          `json:"trend,omitempty"`
	Fields      int           `json:"fields"`
}

// Extractor holds the keyword tables and clock used for extraction.
type Extractor struct {
	now     func() time.Time
	teams   []teamTerm
	tactics []keywordGroup
	metrics []keywordGroup
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTeams seeds the team vocabulary. Vocabulary matches return the name as
// given here, so seeding with stored team names keeps filters exact.
func WithTeams(names ...string) Option {
	return func(e *Extractor) {
		e.teams = append(e.teams, compileTeams(names)...)
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		now:     time.Now,
		tactics: tacticGroups,
		metrics: metricGroups,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs a default Extractor against text.
func Extract(text string) Result {
	return New().Extract(text)
}

// Extract parses text into a Result.
func (e *Extractor) Extract(text string) Result {
	lower := strings.ToLower(text)
	var q contact.Query

	q.Tactic = matchGroup(lower, e.tactics)
	q.Date, q.EndDate = extractDate(lower, e.now())
	q.Person = e.extractPerson(text)
	q.Team = e.extractTeam(lower)

	comparisons := extractComparisons(lower)
	trend := hasTrend(lower)

	fields := countNonEmpty(q.Date, q.Tactic, q.Person, q.Team)
	if len(comparisons) > 0 || trend {
		fields++
	}

	q.ResultType = matchGroup(lower, e.metrics)
	if q.ResultType == "" && fields > 0 && hasMeasureIntent(lower) {
		q.ResultType = defaultMetric
	}
	if q.ResultType != "" {
		fields++
	}

	res := Result{
		Query:       q,
		Comparisons: comparisons,
		Trend:       trend,
		Fields:      fields,
	}
	res.Shape = classify(len(comparisons) > 0, trend, fields)
	res.Confidence = confidence(fields, countNonEmpty(q.Tactic, q.Person, q.Team, q.Date, q.ResultType))
	return res
}

func classify(comparison, trend bool, fields int) Shape {
	switch {
	case comparison:
		return ShapeComparison
	case trend:
		return ShapeTrend
	case fields >= complexFieldThreshold:
		return ShapeComplex
	}
	return ShapeSimple
}

// confidence scores how much of the question was understood: the fraction of
// extractable signals found, plus 0.2 per populated query field, capped at 1
// and damped when fewer than two signals were found.
func confidence(fields, populated int) float64 {
	c := float64(fields)/extractableFields + 0.2*float64(populated)
	c = math.Min(c, 1.0)
	if fields < 2 {
		c *= 0.8
	}
	return c
}

func countNonEmpty(values ...string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// titleWords upper-cases the first letter of each word and lower-cases the rest.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
