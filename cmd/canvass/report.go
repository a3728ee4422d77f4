package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/canvass/internal/aggregate"
	"github.com/hurttlocker/canvass/internal/contact"
	"github.com/hurttlocker/canvass/internal/filter"
	"github.com/hurttlocker/canvass/internal/store"
)

// Styles degrade to plain text when stdout is not a terminal.
var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

func (c *cli) metricsCmd() *cobra.Command {
	var (
		flags  queryFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Aggregate the records matching structured filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := contact.Query{}
			if fq := flags.query(); fq != nil {
				q = *fq
			}
			metric, ok := aggregate.LookupMetric(q.ResultType)
			if !ok {
				return fmt.Errorf("unknown metric %q (want one of %s)", q.ResultType,
					english.OxfordWordSeries(aggregate.MetricNames(), "or"))
			}

			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.Records(cmd.Context())
			if err != nil {
				return err
			}
			outcome := filter.Apply(records, q)
			metrics := aggregate.Aggregate(outcome.Records)
			scalar := aggregate.Sum(outcome.Records, metric)

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"query":       q,
					"matched":     len(outcome.Records),
					"relaxed":     outcome.Relaxed,
					"metrics":     metrics,
					"scalar":      scalar,
					"scalarLabel": metric.Label(),
				})
			}
			printMetrics(cmd.OutOrStdout(), outcome, metrics, metric, scalar)
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printMetrics(w io.Writer, outcome filter.Outcome, m aggregate.VoterMetrics, metric aggregate.Metric, scalar int) {
	matched := len(outcome.Records)
	line := fmt.Sprintf("Matched %s %s", humanize.Comma(int64(matched)), english.PluralWord(matched, "record", ""))
	if outcome.Relaxed {
		line += mutedStyle.Render(" (loose name match)")
	}
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%s %s\n\n", headingStyle.Render("Total "+metric.Label()+":"), humanize.Comma(int64(scalar)))

	fmt.Fprintln(w, headingStyle.Render("Attempts by tactic"))
	for _, k := range m.TacticKeys() {
		fmt.Fprintf(w, "  %-10s %8s\n", k, humanize.Comma(int64(m.Tactics[k])))
	}
	fmt.Fprintf(w, "  %-10s %8s\n\n", "total", humanize.Comma(int64(m.TotalAttempts())))

	fmt.Fprintln(w, headingStyle.Render("Contact results"))
	fmt.Fprintf(w, "  %-10s %8s\n", "support", humanize.Comma(int64(m.Contacts.Support)))
	fmt.Fprintf(w, "  %-10s %8s\n", "oppose", humanize.Comma(int64(m.Contacts.Oppose)))
	fmt.Fprintf(w, "  %-10s %8s\n\n", "undecided", humanize.Comma(int64(m.Contacts.Undecided)))

	fmt.Fprintln(w, headingStyle.Render("Not reached"))
	fmt.Fprintf(w, "  %-10s %8s\n", "not home", humanize.Comma(int64(m.NotReached.NotHome)))
	fmt.Fprintf(w, "  %-10s %8s\n", "refusal", humanize.Comma(int64(m.NotReached.Refusal)))
	fmt.Fprintf(w, "  %-10s %8s\n", "bad data", humanize.Comma(int64(m.NotReached.BadData)))

	if recent := m.RecentDates(7); len(recent) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("Recent dates"))
		for _, d := range recent {
			fmt.Fprintf(w, "  %-10s %8s attempts %6s contacts %6s issues\n", d.Date,
				humanize.Comma(int64(d.Attempts)), humanize.Comma(int64(d.Contacts)), humanize.Comma(int64(d.Issues)))
		}
	}
}

func (c *cli) statsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show what the store holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			printStats(cmd.OutOrStdout(), c.cfg.DBPath.Value, stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printStats(w io.Writer, dbPath string, st *store.StoreStats) {
	fmt.Fprintln(w, headingStyle.Render("canvass store"))
	fmt.Fprintf(w, "  Database: %s", dbPath)
	if st.DBSizeBytes > 0 {
		fmt.Fprintf(w, " (%s)", humanize.IBytes(uint64(st.DBSizeBytes)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Records:  %s\n", humanize.Comma(st.ContactCount))
	fmt.Fprintf(w, "  Batches:  %s\n", humanize.Comma(st.BatchCount))
	fmt.Fprintf(w, "  People:   %s\n", humanize.Comma(st.PersonCount))
	fmt.Fprintf(w, "  Teams:    %s\n", humanize.Comma(st.TeamCount))
	if st.FirstDate != "" {
		fmt.Fprintf(w, "  Dates:    %s to %s\n", st.FirstDate, st.LastDate)
	}
}

func (c *cli) batchesCmd() *cobra.Command {
	var (
		deleteID string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List import batches, or delete one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			out := cmd.OutOrStdout()

			if id := strings.TrimSpace(deleteID); id != "" {
				removed, err := s.DeleteBatch(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted batch %s (%s)\n", id, english.Plural(int(removed), "record", ""))
				return nil
			}

			batches, err := s.ListBatches(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if batches == nil {
					batches = []store.Batch{}
				}
				return writeJSON(out, batches)
			}
			if len(batches) == 0 {
				fmt.Fprintln(out, "No batches imported yet.")
				return nil
			}
			for _, b := range batches {
				fmt.Fprintf(out, "%s  %s  %8s  %s\n", b.ID, b.ImportedAt.Local().Format("2006-01-02 15:04"),
					humanize.Comma(int64(b.RecordCount)), b.Source)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&deleteID, "delete", "", "remove the batch with this id and its records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
