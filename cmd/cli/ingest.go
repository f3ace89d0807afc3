package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-extractor/internal/app"
	"github.com/dvloznov/statement-extractor/internal/export"
	"github.com/dvloznov/statement-extractor/internal/gcsuploader"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newIngestCmd(c *cli) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ingest <statement.pdf|gs://bucket/object>",
		Short: "Run the full extraction pipeline and persist the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(c.withLogger(cmd.Context()), timeout)
			defer cancel()

			source := args[0]
			services, err := app.New(ctx, c.cfg, app.Options{GCS: gcsuploader.IsGCSURI(source)})
			if err != nil {
				return err
			}
			defer services.Close()

			job := &jobs.ExtractStatementJob{
				JobID:      uuid.New().String(),
				DocumentID: uuid.New().String(),
				SourceURI:  source,
			}
			c.log.Info().Str("source", source).Str("document_id", job.DocumentID).Msg("Starting ingestion")

			result, err := pipeline.IngestStatement(ctx, services.PipelineDeps(), job)
			if err != nil {
				return err
			}

			printTransactions(c.out, export.FromTransactions(result.Transactions, c.cfg.Defaults.Currency, c.cfg.Defaults.Category))
			fmt.Fprintf(c.out, "%s stored %d transactions (strategy %s, document %s, run %s)\n",
				color.GreenString("✓"), result.Stored, result.Strategy, job.DocumentID, result.RunID)
			if !c.cfg.BigQuery.Enabled {
				fmt.Fprintln(c.out, color.YellowString("BigQuery is disabled; results were not persisted beyond this process."))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall time limit")
	return cmd
}
