package ingest

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/hurttlocker/canvass/internal/contact"
)

// field is a contact.Record column an input header can map to.
type field int

const (
	fieldNone field = iota
	fieldFirstName
	fieldLastName
	fieldFullName
	fieldTeam
	fieldTactic
	fieldDate
	fieldAttempts
	fieldContacts
	fieldNotHome
	fieldRefusal
	fieldBadData
	fieldSupport
	fieldOppose
	fieldUndecided
)

// headerAliases is keyed by headerKey output, so "First Name", "first_name"
// and "FirstName" all land on "firstname".
var headerAliases = map[string]field{
	"firstname": fieldFirstName,
	"first":     fieldFirstName,
	"fname":     fieldFirstName,
	"givenname": fieldFirstName,

	"lastname":   fieldLastName,
	"last":       fieldLastName,
	"lname":      fieldLastName,
	"surname":    fieldLastName,
	"familyname": fieldLastName,

	"name":          fieldFullName,
	"fullname":      fieldFullName,
	"volunteer":     fieldFullName,
	"volunteername": fieldFullName,
	"person":        fieldFullName,

	"team":     fieldTeam,
	"teamname": fieldTeam,
	"group":    fieldTeam,
	"region":   fieldTeam,

	"tactic":      fieldTactic,
	"contacttype": fieldTactic,
	"channel":     fieldTactic,
	"method":      fieldTactic,
	"type":        fieldTactic,

	"date":        fieldDate,
	"contactdate": fieldDate,
	"day":         fieldDate,

	"attempts":      fieldAttempts,
	"attempt":       fieldAttempts,
	"totalattempts": fieldAttempts,

	"contacts":     fieldContacts,
	"contact":      fieldContacts,
	"contactsmade": fieldContacts,
	"reached":      fieldContacts,

	"nothome": fieldNotHome,
	"nh":      fieldNotHome,

	"refusal":  fieldRefusal,
	"refusals": fieldRefusal,
	"refused":  fieldRefusal,

	"baddata":     fieldBadData,
	"bad":         fieldBadData,
	"wrongnumber": fieldBadData,

	"support":    fieldSupport,
	"supporters": fieldSupport,
	"supportive": fieldSupport,

	"oppose":   fieldOppose,
	"opposed":  fieldOppose,
	"opposers": fieldOppose,

	"undecided": fieldUndecided,
	"unsure":    fieldUndecided,
}

// headerKey lowercases h and drops everything but letters and digits.
func headerKey(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lookupField(header string) field {
	return headerAliases[headerKey(header)]
}

// rowOutcome says what to do with one parsed input row.
type rowOutcome int

const (
	rowKeep rowOutcome = iota
	rowSkip
	rowBadDate
)

// buildRecord turns the mapped values of one row into a record. A row with no
// name and no counts is skipped. A row whose date cannot be read is kept with
// the raw date and flagged so the caller can report it.
func buildRecord(values map[field]string) (*contact.Record, rowOutcome) {
	r := &contact.Record{
		FirstName: strings.TrimSpace(values[fieldFirstName]),
		LastName:  strings.TrimSpace(values[fieldLastName]),
		Team:      strings.TrimSpace(values[fieldTeam]),
		Tactic:    contact.CanonicalTactic(values[fieldTactic]),
		Attempts:  contact.ParseCount(values[fieldAttempts]),
		Contacts:  contact.ParseCount(values[fieldContacts]),
		NotHome:   contact.ParseCount(values[fieldNotHome]),
		Refusal:   contact.ParseCount(values[fieldRefusal]),
		BadData:   contact.ParseCount(values[fieldBadData]),
		Support:   contact.ParseCount(values[fieldSupport]),
		Oppose:    contact.ParseCount(values[fieldOppose]),
		Undecided: contact.ParseCount(values[fieldUndecided]),
	}
	if r.FirstName == "" && r.LastName == "" {
		r.FirstName, r.LastName = splitFullName(values[fieldFullName])
	}

	if r.DisplayName() == "" && !hasCounts(r) {
		return nil, rowSkip
	}

	date, ok := normalizeDate(values[fieldDate])
	r.Date = date
	if !ok {
		return r, rowBadDate
	}
	return r, rowKeep
}

func hasCounts(r *contact.Record) bool {
	return r.Attempts+r.Contacts+r.Issues()+r.Support+r.Oppose+r.Undecided > 0
}

// splitFullName accepts "First Last", "First Middle Last" and "Last, First".
func splitFullName(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if last, first, ok := strings.Cut(raw, ","); ok {
		return strings.TrimSpace(first), strings.TrimSpace(last)
	}
	parts := strings.Fields(raw)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

// normalizeDate returns an ISO date for ISO, ISO timestamp, Y/M/D and US M/D/Y
// inputs. An empty input is fine. Anything else comes back trimmed with false.
func normalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", true
	}
	if contact.ValidDate(s) {
		return s, true
	}
	if len(s) > len(contact.DateLayout) && (s[10] == 'T' || s[10] == ' ') && contact.ValidDate(s[:10]) {
		return s[:10], true
	}

	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' || r == '.' })
	if len(parts) != 3 {
		return s, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return s, false
		}
		nums[i] = n
	}

	var year, month, day int
	switch {
	case len(parts[0]) == 4:
		year, month, day = nums[0], nums[1], nums[2]
	case len(parts[2]) == 4:
		month, day, year = nums[0], nums[1], nums[2]
	case len(parts[2]) == 2:
		month, day, year = nums[0], nums[1], 2000+nums[2]
	default:
		return s, false
	}
	if iso, ok := contact.BuildDate(year, month, day); ok {
		return iso, true
	}
	return s, false
}
