// Command cli extracts transactions from bank statement PDFs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

// cli is the state shared by all subcommands.
type cli struct {
	out     io.Writer
	cfg     *config.Config
	log     zerolog.Logger
	verbose bool
	noColor bool
}

func (c *cli) withLogger(parent context.Context) context.Context {
	return logger.WithContext(parent, c.log)
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "cli",
		Short:         "Extract transactions from bank statement PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.noColor {
				color.NoColor = true
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg

			level := cfg.Log.Level
			if c.verbose {
				level = "debug"
			}
			log, err := logger.NewFromConfig(level, cfg.Log.Format, os.Stderr)
			if err != nil {
				return err
			}
			c.log = log
			return nil
		},
	}
	root.SetOut(out)

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newExtractCmd(c),
		newAICmd(c),
		newInspectCmd(c),
		newUploadCmd(c),
		newIngestCmd(c),
	)
	return root
}
