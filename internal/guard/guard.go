// Package guard validates model-generated answers against the filtered contact
// records they are supposed to describe.
//
// A generated answer that refuses, hedges, apologizes, talks about itself or
// skips the grounding preamble is replaced by a deterministic sentence built
// from aggregate.Aggregate over the same records. Every number in a
// substituted answer comes from the records, never from the model. The guard
// never returns an error.
package guard

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hurttlocker/canvass/internal/contact"
	"github.com/hurttlocker/canvass/internal/filter"
)

// FinishGrounded is the finish reason of a substituted answer.
const FinishGrounded = "grounded"

// genericMaxLen is the length under which a generic acknowledgement is
// treated as a non-answer.
const genericMaxLen = 100

// Reason names a tripped check.
type Reason string

const (
	ReasonEmpty           Reason = "empty"
	ReasonBlacklist       Reason = "blacklist"
	ReasonGeneric         Reason = "generic"
	ReasonSelfReference   Reason = "self_reference"
	ReasonMissingPreamble Reason = "missing_preamble"
	ReasonEcho            Reason = "echo"
	ReasonPersonNotFound  Reason = "person_not_found"
)

// Generated is a model answer and its finish reason.
type Generated struct {
	Text         string `json:"text"`
	FinishReason string `json:"finishReason"`
}

// Input is everything Validate looks at.
type Input struct {
	Generated Generated
	// Records is the filtered set the answer must describe.
	Records []contact.Record
	Prompt  string
	Query   contact.Query
	// Candidates is the working set filtered by every criterion except the
	// person. Nil means Records.
	Candidates []contact.Record
	// Universe is the unfiltered working set used to narrate progressive
	// filter counts. Nil means Records.
	Universe []contact.Record
}

// Verdict is the validated answer.
type Verdict struct {
	Generated
	Substituted bool     `json:"substituted"`
	Reasons     []Reason `json:"reasons,omitempty"`
}

// Guard holds the phrase data for the checks.
type Guard struct {
	phrases    Phrases
	generic    []*regexp.Regexp
	synthesize func(Input) string
}

// New creates a Guard from phrase data.
func New(p Phrases) *Guard {
	p = p.normalized()
	return &Guard{phrases: p, generic: wordPatterns(p.Generic), synthesize: synthesize}
}

// Default returns a Guard using DefaultPhrases.
func Default() *Guard { return New(DefaultPhrases()) }

// Phrases returns the guard's normalized phrase data.
func (g *Guard) Phrases() Phrases { return g.phrases }

// Validate runs the default guard and returns only the final answer.
func Validate(generated Generated, records []contact.Record, prompt string, q contact.Query) Generated {
	return Default().Validate(Input{
		Generated: generated,
		Records:   records,
		Prompt:    prompt,
		Query:     q,
	}).Generated
}

// Validate checks in.Generated and substitutes a grounded answer when it
// cannot be trusted.
func (g *Guard) Validate(in Input) Verdict {
	reasons := g.Inspect(in.Generated.Text, in.Prompt, len(in.Records) > 0)

	if !hasReason(reasons, ReasonBlacklist) && in.Query.HasPerson() && g.ClaimsNotFound(in.Generated.Text) {
		candidates := in.Candidates
		if candidates == nil {
			candidates = in.Records
		}
		if recovered := filter.Apply(candidates, in.Query).Records; len(recovered) > 0 {
			in.Records = recovered
			return g.substitute(in, append(reasons, ReasonPersonNotFound))
		}
	}

	if len(reasons) == 0 {
		return Verdict{Generated: in.Generated}
	}
	return g.substitute(in, reasons)
}

// Inspect returns the checks text trips, in evaluation order. hasRecords
// enables the preamble check.
func (g *Guard) Inspect(text, prompt string, hasRecords bool) []Reason {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Reason{ReasonEmpty}
	}
	lower := strings.ToLower(text)

	var reasons []Reason
	if containsAny(lower, g.phrases.Blacklist) {
		reasons = append(reasons, ReasonBlacklist)
	}
	if matchesAny(lower, g.generic) && utf8.RuneCountInString(text) < genericMaxLen &&
		!strings.Contains(lower, "records") && !strings.Contains(lower, "attempts") {
		reasons = append(reasons, ReasonGeneric)
	}
	if containsAny(lower, g.phrases.SelfReference) {
		reasons = append(reasons, ReasonSelfReference)
	}
	if hasRecords && len(g.phrases.Preamble) > 0 && !hasPrefixAny(lower, g.phrases.Preamble) {
		reasons = append(reasons, ReasonMissingPreamble)
	}
	if p := strings.ToLower(strings.TrimSpace(prompt)); p != "" && lower == p {
		reasons = append(reasons, ReasonEcho)
	}
	return reasons
}

// ClaimsNotFound reports whether text says the requested data could not be
// found.
func (g *Guard) ClaimsNotFound(text string) bool {
	return containsAny(strings.ToLower(text), g.phrases.NotFound)
}

func (g *Guard) substitute(in Input, reasons []Reason) Verdict {
	return Verdict{
		Generated:   Generated{Text: g.compose(in), FinishReason: FinishGrounded},
		Substituted: true,
		Reasons:     reasons,
	}
}

func (g *Guard) compose(in Input) (text string) {
	if len(in.Records) == 0 {
		return noMatches(in.Query)
	}
	defer func() {
		if r := recover(); r != nil {
			text = countSummary(in.Records, in.Query)
		}
	}()
	return g.synthesize(in)
}

func hasReason(reasons []Reason, want Reason) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// wordPatterns compiles each phrase to match only on word boundaries, so
// "sure" does not fire inside "measured".
func wordPatterns(phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		expr := regexp.QuoteMeta(p)
		if isWordByte(p[0]) {
			expr = `\b` + expr
		}
		if isWordByte(p[len(p)-1]) {
			expr += `\b`
		}
		out = append(out, regexp.MustCompile(expr))
	}
	return out
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func matchesAny(lower string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func hasPrefixAny(lower string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
