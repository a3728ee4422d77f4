package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/canvass/internal/ingest"
)

func (c *cli) importCmd() *cobra.Command {
	var opts ingest.ImportOptions
	cmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Import contact logs from CSV, TSV or JSON files",
		Long: `Imports contact-log rows into the local store. A directory imports every
supported file in it. Each file becomes one batch that can later be removed
with "canvass batches --delete".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			engine := ingest.NewEngine(s, ingest.WithLogger(c.logger))

			if opts.DryRun {
				fmt.Fprintln(out, "Dry run mode: no changes will be written")
				fmt.Fprintln(out)
			}

			total := &ingest.ImportResult{}
			failed := 0
			for _, path := range args {
				fmt.Fprintf(out, "Importing %s...\n", path)
				opts.ProgressFn = func(current, n int, file string) {
					fmt.Fprintf(out, "  [%d/%d] %s\n", current, n, file)
				}

				result, err := engine.ImportFile(cmd.Context(), path, opts)
				if err != nil {
					failed++
					c.logger.Warn("import failed", zap.String("path", path), zap.Error(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "  Error: %v\n", err)
					continue
				}
				total.Add(result)
			}

			fmt.Fprintln(out)
			fmt.Fprint(out, ingest.FormatImportResult(total))
			if failed == len(args) {
				return fmt.Errorf("nothing imported")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "parse and report without writing")
	return cmd
}
