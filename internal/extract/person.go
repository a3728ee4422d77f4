package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	wordRE     = regexp.MustCompile(`[\p{L}][\p{L}'\-]*`)
	teamWordRE = regexp.MustCompile(`\bteam\s+([\p{L}0-9][\p{L}0-9'\-]*)`)
)

// stopWords are never part of a person or team name. The list covers
// question words, the tactic and metric vocabulary, and calendar words that
// are capitalised in ordinary sentences.
var stopWords = toSet(
	"a", "about", "all", "an", "and", "any", "are", "as", "at", "between", "by",
	"can", "compare", "complete", "completed", "count", "data", "day", "did", "do",
	"does", "done", "during", "each", "every", "everyone", "for", "from", "get",
	"give", "got", "had", "has", "have", "how", "i", "in", "is", "it", "last",
	"list", "make", "made", "many", "me", "members", "member", "month", "much",
	"my", "no", "not", "number", "of", "on", "or", "our", "over", "per", "please",
	"show", "so", "tell", "than", "that", "the", "their", "them", "there", "this",
	"through", "time", "to", "today", "total", "totals", "trend", "us", "versus",
	"vs", "was", "we", "week", "were", "what", "when", "where", "which", "who",
	"why", "with", "year", "yesterday", "you",
	// tactics
	"sms", "text", "texts", "texting", "phone", "phones", "call", "calls",
	"called", "calling", "canvas", "canvass", "canvassing", "door", "doors",
	"knock", "knocks", "knocked", "knocking",
	// metrics
	"attempt", "attempts", "contact", "contacts", "contacted", "support",
	"supporter", "supporters", "oppose", "opposed", "undecided", "refusal",
	"refusals", "refused", "home", "bad", "reached", "team", "teams", "voters",
	"voter", "records", "record", "result", "results", "progress", "change",
	"growth",
	// calendar
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december", "jan", "feb", "mar", "apr",
	"jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isStopWord(w string) bool {
	_, ok := stopWords[strings.ToLower(w)]
	return ok
}

type token struct {
	text       string
	start, end int
}

func tokenize(text string) []token {
	locs := wordRE.FindAllStringIndex(text, -1)
	out := make([]token, 0, len(locs))
	for _, loc := range locs {
		w := text[loc[0]:loc[1]]
		w = strings.TrimSuffix(strings.TrimSuffix(w, "'s"), "'")
		out = append(out, token{text: w, start: loc[0], end: loc[1]})
	}
	return out
}

// adjacent reports whether only whitespace separates a and b.
func adjacent(text string, a, b token) bool {
	return strings.TrimSpace(text[a.end:b.start]) == ""
}

// extractPerson finds "by NAME" / "did NAME" first, then two consecutive
// capitalised words. Pairs containing a stop word, or naming a known team, are
// rejected.
func (e *Extractor) extractPerson(text string) string {
	tokens := tokenize(text)

	for i := 0; i+2 < len(tokens); i++ {
		lead := strings.ToLower(tokens[i].text)
		if lead != "by" && lead != "did" {
			continue
		}
		first, last := tokens[i+1], tokens[i+2]
		if !adjacent(text, tokens[i], first) || !adjacent(text, first, last) {
			continue
		}
		if e.acceptableName(first.text, last.text) {
			return titleWords(first.text + " " + last.text)
		}
	}

	for i := 0; i+1 < len(tokens); i++ {
		first, last := tokens[i], tokens[i+1]
		if !capitalised(first.text) || !capitalised(last.text) || !adjacent(text, first, last) {
			continue
		}
		if e.acceptableName(first.text, last.text) {
			return titleWords(first.text + " " + last.text)
		}
	}
	return ""
}

func (e *Extractor) acceptableName(first, last string) bool {
	if len([]rune(first)) < 2 || len([]rune(last)) < 2 {
		return false
	}
	if isStopWord(first) || isStopWord(last) {
		return false
	}
	for _, t := range e.teams {
		if strings.EqualFold(t.name, first+" "+last) {
			return false
		}
	}
	return true
}

func capitalised(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

type teamTerm struct {
	name string
	re   *regexp.Regexp
}

// compileTeams builds word-bounded matchers, longest name first so that
// "North East" wins over "North".
func compileTeams(names []string) []teamTerm {
	out := make([]teamTerm, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(n)) + `\b`)
		if err != nil {
			continue
		}
		out = append(out, teamTerm{name: n, re: re})
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].name) > len(out[j].name) })
	return out
}

func (e *Extractor) extractTeam(lower string) string {
	for _, t := range e.teams {
		if t.re.MatchString(lower) {
			return t.name
		}
	}
	for _, m := range teamWordRE.FindAllStringSubmatch(lower, -1) {
		if isStopWord(m[1]) {
			continue
		}
		return titleWords(m[1])
	}
	return ""
}
