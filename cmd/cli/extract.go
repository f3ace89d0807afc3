package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/export"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/gemini"
	"github.com/dvloznov/statement-extractor/internal/pdftable"
	"github.com/spf13/cobra"
)

// outputFlags are shared by the commands that print transactions.
type outputFlags struct {
	format string
	out    string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "write csv, xlsx or json instead of a table")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default stdout; required for xlsx)")
}

func newExtractCmd(c *cli) *cobra.Command {
	var (
		output   outputFlags
		maxPages int
		columns  []float64
	)

	cmd := &cobra.Command{
		Use:   "extract <statement.pdf>",
		Short: "Extract transactions with the table heuristics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.withLogger(cmd.Context())

			table := pdftable.DefaultSettings()
			table.ExplicitColumns = c.cfg.Extraction.ExplicitColumns
			if len(columns) > 0 {
				table.ExplicitColumns = columns
			}
			if maxPages == 0 {
				maxPages = c.cfg.Extraction.MaxPages
			}

			extractor := extract.NewExtractor(extract.Options{
				MaxPages:        maxPages,
				PageConcurrency: c.cfg.Extraction.PageConcurrency,
				Table:           table,
			})

			txs, report, err := extractor.Extract(ctx, args[0])
			if err != nil {
				return err
			}
			if report.NoTransactions() {
				return fmt.Errorf("%w (%s)", domain.ErrNoTransactionsFound, report.Summary())
			}
			c.log.Info().Str("summary", report.Summary()).Msg("Extraction finished")

			return c.emit(txs, output)
		},
	}

	output.register(cmd)
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	cmd.Flags().Float64SliceVar(&columns, "columns", nil, "explicit column boundaries as x positions")
	return cmd
}

func newAICmd(c *cli) *cobra.Command {
	var (
		output  outputFlags
		apiKey  string
		model   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ai <statement.pdf>",
		Short: "Extract transactions with the Gemini model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.withLogger(cmd.Context())

			key := apiKey
			if key == "" {
				key = c.cfg.Gemini.APIKey
			}

			aiCfg := gemini.DefaultConfig()
			aiCfg.Model = c.cfg.Gemini.Model
			if model != "" {
				aiCfg.Model = model
			}
			aiCfg.Timeout = c.cfg.Gemini.Timeout
			if timeout > 0 {
				aiCfg.Timeout = timeout
			}
			aiCfg.Retry.MaxRetries = c.cfg.Gemini.MaxRetries

			txs, err := gemini.NewExtractor(aiCfg, nil).ExtractViaAI(ctx, args[0], key)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				return domain.ErrNoTransactionsFound
			}
			return c.emit(txs, output)
		},
	}

	output.register(cmd)
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Gemini API key (default GOOGLE_GEMINI_API_KEY)")
	cmd.Flags().StringVar(&model, "model", "", "model name (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-attempt timeout (default from config)")
	return cmd
}

// emit prints txs as a table, or encodes them when a format is given.
func (c *cli) emit(txs []domain.ParsedTransaction, output outputFlags) error {
	records := export.FromTransactions(txs, c.cfg.Defaults.Currency, c.cfg.Defaults.Category)

	if output.format == "" {
		if output.out != "" {
			output.format = string(export.FormatCSV)
		} else {
			printTransactions(c.out, records)
			return nil
		}
	}

	format, err := export.ParseFormat(output.format)
	if err != nil {
		return err
	}
	if output.out == "" {
		if format == export.FormatXLSX {
			return fmt.Errorf("--out is required for xlsx")
		}
		return export.Write(c.out, format, records)
	}

	f, err := os.Create(output.out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output.out, err)
	}
	if err := export.Write(f, format, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", output.out, err)
	}
	fmt.Fprintf(c.out, "Wrote %d transactions to %s\n", len(records), output.out)
	return nil
}
