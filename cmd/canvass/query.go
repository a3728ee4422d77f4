package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/canvass/internal/contact"
)

// queryFlags are the structured filter flags shared by ask and metrics.
type queryFlags struct {
	tactic  string
	person  string
	team    string
	date    string
	endDate string
	metric  string
}

func (f *queryFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.tactic, "tactic", "", "tactic filter: SMS, Phone, Canvas or All")
	fl.StringVar(&f.person, "person", "", "person filter, e.g. \"Jane Doe\"")
	fl.StringVar(&f.team, "team", "", "team filter")
	fl.StringVar(&f.date, "date", "", "ISO date, or range start with --end-date")
	fl.StringVar(&f.endDate, "end-date", "", "inclusive ISO range end")
	fl.StringVar(&f.metric, "metric", "", "measure for the scalar total (default attempts)")
}

// query returns the flags as a Query, or nil when none was set.
func (f *queryFlags) query() *contact.Query {
	q := contact.Query{
		Tactic:     contact.CanonicalTactic(f.tactic),
		Person:     f.person,
		Team:       f.team,
		Date:       f.date,
		EndDate:    f.endDate,
		ResultType: f.metric,
	}
	if q == (contact.Query{}) {
		return nil
	}
	return &q
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
