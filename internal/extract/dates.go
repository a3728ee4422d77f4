package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hurttlocker/canvass/internal/contact"
)

// dateParser resolves one family of date expressions. Families are tried in
// priority order; a family whose first match does not form a calendar date is
// skipped in favour of the next one.
type dateParser struct {
	name  string
	parse func(lower string, now time.Time) (start, end string, ok bool)
}

var (
	isoRangeRE = regexp.MustCompile(`\b(?:between|from)\s+(\d{4})-(\d{1,2})-(\d{1,2})\s+(?:and|to|through|until|-)\s+(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	isoDateRE  = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	usDateRE   = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`)
	monthRE    = regexp.MustCompile(`\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var dateParsers = []dateParser{
	{name: "relative", parse: parseRelative},
	{name: "iso_range", parse: parseISORange},
	{name: "iso_date", parse: parseISO},
	{name: "us_date", parse: parseUS},
	{name: "month_name", parse: parseMonthName},
}

func extractDate(lower string, now time.Time) (string, string) {
	for _, p := range dateParsers {
		if start, end, ok := p.parse(lower, now); ok {
			return start, end
		}
	}
	return "", ""
}

// parseRelative resolves yesterday, today, last week and this week. Weeks run
// Monday to Sunday; "this week" ends today.
func parseRelative(lower string, now time.Time) (string, string, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case strings.Contains(lower, "yesterday"):
		return today.AddDate(0, 0, -1).Format(contact.DateLayout), "", true
	case strings.Contains(lower, "today"):
		return today.Format(contact.DateLayout), "", true
	case strings.Contains(lower, "last week"):
		monday := startOfWeek(today).AddDate(0, 0, -7)
		return monday.Format(contact.DateLayout), monday.AddDate(0, 0, 6).Format(contact.DateLayout), true
	case strings.Contains(lower, "this week"):
		return startOfWeek(today).Format(contact.DateLayout), today.Format(contact.DateLayout), true
	}
	return "", "", false
}

func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func parseISORange(lower string, _ time.Time) (string, string, bool) {
	m := isoRangeRE.FindStringSubmatch(lower)
	if m == nil {
		return "", "", false
	}
	start, ok := buildDate(m[1], m[2], m[3])
	if !ok {
		return "", "", false
	}
	end, ok := buildDate(m[4], m[5], m[6])
	if !ok {
		return "", "", false
	}
	return start, end, true
}

func parseISO(lower string, _ time.Time) (string, string, bool) {
	m := isoDateRE.FindStringSubmatch(lower)
	if m == nil {
		return "", "", false
	}
	d, ok := buildDate(m[1], m[2], m[3])
	return d, "", ok
}

func parseUS(lower string, _ time.Time) (string, string, bool) {
	m := usDateRE.FindStringSubmatch(lower)
	if m == nil {
		return "", "", false
	}
	d, ok := buildDate(m[3], m[1], m[2])
	return d, "", ok
}

func parseMonthName(lower string, _ time.Time) (string, string, bool) {
	m := monthRE.FindStringSubmatch(lower)
	if m == nil {
		return "", "", false
	}
	month, ok := monthNumbers[m[1][:3]]
	if !ok {
		return "", "", false
	}
	d, ok := buildDate(m[3], strconv.Itoa(month), m[2])
	return d, "", ok
}

func buildDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	return contact.BuildDate(y, mo, d)
}
