package main

import (
	"encoding/json"

	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/pdftable"
	"github.com/spf13/cobra"
)

func newInspectCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <statement.pdf>",
		Short: "Show how each page was read and why rows were skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.withLogger(cmd.Context())

			table := pdftable.DefaultSettings()
			table.ExplicitColumns = c.cfg.Extraction.ExplicitColumns
			extractor := extract.NewExtractor(extract.Options{
				MaxPages:        c.cfg.Extraction.MaxPages,
				PageConcurrency: c.cfg.Extraction.PageConcurrency,
				Table:           table,
			})

			report, err := extractor.Inspect(ctx, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(c.out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
