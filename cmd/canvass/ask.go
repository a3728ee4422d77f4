package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/canvass/internal/answer"
	"github.com/hurttlocker/canvass/internal/extract"
)

func (c *cli) askCmd() *cobra.Command {
	var (
		flags   queryFlags
		asJSON  bool
		noModel bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question about the stored contact records",
		Long: `Interprets the question, filters the stored records, aggregates them and
returns a grounded answer. Filter flags override what is read from the
question.

Examples:
  canvass ask "How many phone calls did Jane Doe make yesterday?"
  canvass ask "support this week" --team North --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := c.engine(s, !noModel)
			if err != nil {
				return err
			}
			result, err := engine.Ask(cmd.Context(), answer.Request{
				Question: joinArgs(args),
				Query:    flags.query(),
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&noModel, "no-llm", false, "skip the language model and print the grounded answer")
	return cmd
}

func (c *cli) chatCmd() *cobra.Command {
	var noModel bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask follow-up questions, one per line, from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := c.engine(s, !noModel)
			if err != nil {
				return err
			}
			limit, _ := c.cfg.History()
			conv := answer.NewConversation(limit)

			out := cmd.OutOrStdout()
			in := cmd.InOrStdin()
			interactive := isTerminal(in)
			prompt := func() {
				if interactive {
					fmt.Fprint(out, "canvass> ")
				}
			}

			scanner := bufio.NewScanner(in)
			for prompt(); scanner.Scan(); prompt() {
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if question == "exit" || question == "quit" {
					break
				}
				result, err := engine.Ask(cmd.Context(), answer.Request{Question: question, Conversation: conv})
				if err != nil {
					return err
				}
				if !interactive {
					fmt.Fprintf(out, "> %s\n", question)
				}
				fmt.Fprintf(out, "%s\n\n", result.Answer)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().BoolVar(&noModel, "no-llm", false, "skip the language model and print grounded answers")
	return cmd
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *cli) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <text>",
		Short: "Show how a question is interpreted, without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			teams, err := s.Teams(cmd.Context())
			if err != nil {
				return err
			}
			ex := extract.New(extract.WithClock(c.now), extract.WithTeams(teams...))
			return writeJSON(cmd.OutOrStdout(), ex.Extract(joinArgs(args)))
		},
	}
}
