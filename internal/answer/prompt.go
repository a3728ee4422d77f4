package answer

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/canvass/internal/contact"
)

// maxPromptRecords caps the rows sent to the model.
const maxPromptRecords = 200

const systemPrompt = `You answer questions from campaign staff about voter-contact records.
Use only the records you are given. Begin every answer with "Based on the contact records".
Report counts as exact numbers taken from the records. If no record matches, say so plainly.`

// buildPrompt renders the question, the active filters and the matching rows.
func buildPrompt(question string, q contact.Query, records []contact.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", strings.TrimSpace(question))

	if filters := describeQuery(q); len(filters) > 0 {
		fmt.Fprintf(&sb, "Filters: %s\n", strings.Join(filters, "; "))
	}
	if q.ResultType != "" {
		fmt.Fprintf(&sb, "Requested measure: %s\n", q.ResultType)
	}

	fmt.Fprintf(&sb, "\nMatching records (%d):\n", len(records))
	if len(records) == 0 {
		return sb.String()
	}
	sb.WriteString("date | name | team | tactic | attempts | contacts | not home | refusal | bad data | support | oppose | undecided\n")
	for i, r := range records {
		if i == maxPromptRecords {
			fmt.Fprintf(&sb, "(%d more not shown)\n", len(records)-maxPromptRecords)
			break
		}
		fmt.Fprintf(&sb, "%s | %s | %s | %s | %d | %d | %d | %d | %d | %d | %d | %d\n",
			r.Date, r.DisplayName(), r.Team, r.Tactic,
			r.Attempts, r.Contacts, r.NotHome, r.Refusal, r.BadData, r.Support, r.Oppose, r.Undecided)
	}
	return sb.String()
}

func describeQuery(q contact.Query) []string {
	var out []string
	if contact.Active(q.Tactic) {
		out = append(out, "tactic "+q.Tactic)
	}
	if q.HasPerson() {
		out = append(out, "person "+q.PersonLabel())
	}
	if contact.Active(q.Team) {
		out = append(out, "team "+q.Team)
	}
	switch {
	case contact.Active(q.Date) && q.EndDate != "":
		out = append(out, fmt.Sprintf("dates %s to %s", q.Date, q.EndDate))
	case contact.Active(q.Date):
		out = append(out, "date "+q.Date)
	}
	if s := strings.TrimSpace(q.SearchQuery); s != "" {
		out = append(out, fmt.Sprintf("search %q", s))
	}
	return out
}
