// Package observe audits the stored contact logs for data quality.
//
// Three core capabilities:
// - Freshness: how recently the stored batches were imported
// - Issues: single records whose counts or fields cannot be right
// - Conflicts and stale people: cross-record checks over the whole set
//
// This package answers the question: "Can the numbers in an answer be trusted?"
package observe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/canvass/internal/contact"
	"github.com/hurttlocker/canvass/internal/store"
)

// Defaults for AuditOpts.
const (
	DefaultStaleDays = 14
	DefaultLimit     = 50
)

// Freshness holds the distribution of stored records by batch import time.
type Freshness struct {
	Today     int `json:"today"`
	ThisWeek  int `json:"thisWeek"`
	ThisMonth int `json:"thisMonth"`
	Older     int `json:"older"`
}

// StalePerson is someone whose latest logged activity is well behind the
// newest date in the store.
type StalePerson struct {
	Name         string `json:"name"`
	Team         string `json:"team,omitempty"`
	LastDate     string `json:"lastDate"`
	DaysBehind   int    `json:"daysBehind"`
	TotalRecords int    `json:"totalRecords"`
}

// AuditOpts configures Audit.
type AuditOpts struct {
	StaleDays int // days behind the newest date before a person is stale (default: 14)
	Limit     int // max issues, conflicts and stale people each (default: 50)
}

// Report is the result of one audit.
type Report struct {
	GeneratedAt string            `json:"generatedAt"`
	Records     int               `json:"records"`
	Batches     int               `json:"batches"`
	NewestDate  string            `json:"newestDate,omitempty"`
	Freshness   Freshness         `json:"freshness"`
	IssueCounts map[IssueKind]int `json:"issueCounts"`
	Issues      []Issue           `json:"issues"`
	Conflicts   []Conflict        `json:"conflicts"`
	Stale       []StalePerson     `json:"stale"`
	Alerts      []Alert           `json:"alerts"`
}

// Engine runs audits over a store.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// NewEngine creates a new audit engine. now may be nil.
func NewEngine(s store.Store, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, now: now}
}

// Audit loads every record and batch and checks them.
func (e *Engine) Audit(ctx context.Context, opts AuditOpts) (*Report, error) {
	if opts.StaleDays <= 0 {
		opts.StaleDays = DefaultStaleDays
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	records, err := e.store.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	batches, err := e.store.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}

	now := e.now()
	report := &Report{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Records:     len(records),
		Batches:     len(batches),
		NewestDate:  newestDate(records),
		Freshness:   freshness(batches, now),
		IssueCounts: make(map[IssueKind]int),
	}

	issues := CheckRecords(records)
	for _, is := range issues {
		report.IssueCounts[is.Kind]++
	}
	conflicts := FindConflicts(records)
	stale := FindStale(records, opts.StaleDays)

	report.Alerts = buildAlerts(report.Records, report.IssueCounts, conflicts, stale)
	report.Issues = limit(issues, opts.Limit)
	report.Conflicts = limit(conflicts, opts.Limit)
	report.Stale = limit(stale, opts.Limit)
	return report, nil
}

func limit[T any](items []T, n int) []T {
	if items == nil {
		return []T{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

func freshness(batches []store.Batch, now time.Time) Freshness {
	var f Freshness
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, b := range batches {
		at := b.ImportedAt.In(now.Location())
		switch {
		case !at.Before(today):
			f.Today += b.RecordCount
		case now.Sub(at) < 7*24*time.Hour:
			f.ThisWeek += b.RecordCount
		case now.Sub(at) < 30*24*time.Hour:
			f.ThisMonth += b.RecordCount
		default:
			f.Older += b.RecordCount
		}
	}
	return f
}

func newestDate(records []contact.Record) string {
	newest := ""
	for _, r := range records {
		if contact.ValidDate(r.Date) && r.Date > newest {
			newest = r.Date
		}
	}
	return newest
}

// FindStale returns people whose latest valid date is more than staleDays
// behind the newest valid date in records, furthest behind first. The
// comparison is against the data, not the wall clock, so an old import is not
// reported as entirely stale.
func FindStale(records []contact.Record, staleDays int) []StalePerson {
	newest, ok := contact.ParseDate(newestDate(records))
	if !ok {
		return []StalePerson{}
	}

	type person struct {
		StalePerson
		last time.Time
	}
	people := make(map[string]*person)
	var order []string
	for _, r := range records {
		name := r.DisplayName()
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		p, seen := people[key]
		if !seen {
			p = &person{StalePerson: StalePerson{Name: name}}
			people[key] = p
			order = append(order, key)
		}
		p.TotalRecords++
		if r.Team != "" {
			p.Team = r.Team
		}
		if d, ok := contact.ParseDate(r.Date); ok && d.After(p.last) {
			p.last = d
			p.LastDate = r.Date
		}
	}

	out := make([]StalePerson, 0)
	for _, key := range order {
		p := people[key]
		if p.LastDate == "" {
			continue
		}
		behind := int(newest.Sub(p.last).Hours() / 24)
		if behind > staleDays {
			p.DaysBehind = behind
			out = append(out, p.StalePerson)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysBehind > out[j].DaysBehind })
	return out
}
