package observe

import (
	"fmt"

	"github.com/dustin/go-humanize/english"
)

// AlertSeverity ranks an alert.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is one audit finding worth surfacing before trusting answers.
type Alert struct {
	Code     string        `json:"code"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Share of records above which a record-level issue becomes critical.
const criticalShare = 0.10

func buildAlerts(total int, counts map[IssueKind]int, conflicts []Conflict, stale []StalePerson) []Alert {
	alerts := make([]Alert, 0)
	if total == 0 {
		return append(alerts, Alert{Code: "empty_store", Severity: SeverityInfo, Message: "No contact records have been imported."})
	}

	share := func(n int) AlertSeverity {
		if float64(n)/float64(total) > criticalShare {
			return SeverityCritical
		}
		return SeverityWarning
	}

	if n := counts[IssueInvalidDate] + counts[IssueMissingDate]; n > 0 {
		alerts = append(alerts, Alert{
			Code:     "undated_records",
			Severity: share(n),
			Message: fmt.Sprintf("%s of %d have no usable date; date filters and per-date rollups skip them.",
				english.Plural(n, "record", ""), total),
		})
	}

	impossible := counts[IssueContactsExceed] + counts[IssueResultsExceed] + counts[IssueNotReachedExceed]
	if impossible > 0 {
		alerts = append(alerts, Alert{
			Code:     "impossible_counts",
			Severity: share(impossible),
			Message:  fmt.Sprintf("%s where the counts do not add up.", english.Plural(impossible, "problem", "")),
		})
	}

	if n := counts[IssueUnknownTactic]; n > 0 {
		alerts = append(alerts, Alert{
			Code:     "unknown_tactics",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%s with a tactic other than SMS, Phone or Canvas.", english.Plural(n, "record", "")),
		})
	}

	duplicates := 0
	for _, c := range conflicts {
		if c.Duplicate {
			duplicates++
		}
	}
	if duplicates > 0 {
		alerts = append(alerts, Alert{
			Code:     "duplicate_rows",
			Severity: SeverityCritical,
			Message: fmt.Sprintf("%s repeated exactly; the same file may have been imported twice. Totals are inflated until the extra batch is deleted.",
				english.Plural(duplicates, "row group", "")),
		})
	}
	if n := len(conflicts) - duplicates; n > 0 {
		alerts = append(alerts, Alert{
			Code:     "conflicting_rows",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%s logged more than once with different counts.", english.Plural(n, "person-day", "")),
		})
	}

	if n := len(stale); n > 0 {
		alerts = append(alerts, Alert{
			Code:     "stale_people",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%s with no recent activity.", english.Plural(n, "person", "people")),
		})
	}
	return alerts
}
