package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/canvass/internal/observe"
)

func (c *cli) auditCmd() *cobra.Command {
	var (
		opts   observe.AuditOpts
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check the stored records for problems that would skew answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := observe.NewEngine(s, c.now).Audit(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printAudit(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.StaleDays, "stale-days", observe.DefaultStaleDays, "days behind the newest date before a person counts as inactive")
	cmd.Flags().IntVar(&opts.Limit, "limit", observe.DefaultLimit, "max findings listed per section")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printAudit(w io.Writer, r *observe.Report) {
	fmt.Fprintln(w, headingStyle.Render("canvass audit"))
	fmt.Fprintf(w, "  Records: %s in %s batches", humanize.Comma(int64(r.Records)), humanize.Comma(int64(r.Batches)))
	if r.NewestDate != "" {
		fmt.Fprintf(w, ", newest date %s", r.NewestDate)
	}
	fmt.Fprintln(w)
	f := r.Freshness
	fmt.Fprintf(w, "  Imported: %d today, %d this week, %d this month, %d older\n", f.Today, f.ThisWeek, f.ThisMonth, f.Older)

	if len(r.Alerts) == 0 {
		fmt.Fprintln(w, "\nNo problems found.")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Alerts"))
	for _, a := range r.Alerts {
		fmt.Fprintf(w, "  [%s] %s\n", strings.ToUpper(string(a.Severity)), a.Message)
	}

	if len(r.Issues) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("Record issues"))
		for _, is := range r.Issues {
			fmt.Fprintf(w, "  #%d %s\n", is.RecordID, is.Message)
		}
	}
	if len(r.Conflicts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("Repeated rows"))
		for _, cf := range r.Conflicts {
			kind := "conflict"
			if cf.Duplicate {
				kind = "duplicate"
			}
			fmt.Fprintf(w, "  %s %s %s %s: records %v\n", kind, cf.Date, cf.Person, cf.Tactic, cf.RecordIDs)
		}
	}
	if len(r.Stale) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("Inactive people"))
		for _, p := range r.Stale {
			fmt.Fprintf(w, "  %s last logged %s (%d days behind)\n", p.Name, p.LastDate, p.DaysBehind)
		}
	}
}
