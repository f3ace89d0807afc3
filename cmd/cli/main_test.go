package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/pdftable"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func testCLI(out *bytes.Buffer) *cli {
	return &cli{
		out: out,
		cfg: &config.Config{Defaults: config.DefaultsConfig{Currency: "GBP", Category: "Uncategorized"}},
		log: zerolog.Nop(),
	}
}

func sampleTransactions() []domain.ParsedTransaction {
	return []domain.ParsedTransaction{
		{
			Date:         civil.Date{Year: 2024, Month: 4, Day: 1},
			Description:  "Salary",
			Amount:       decimal.RequireFromString("2500"),
			Direction:    domain.DirectionCredit,
			BalanceAfter: decimal.NewNullDecimal(decimal.RequireFromString("3000")),
		},
		{
			Date:        civil.Date{Year: 2024, Month: 4, Day: 2},
			Description: "Groceries",
			Amount:      decimal.RequireFromString("45.5"),
			Direction:   domain.DirectionDebit,
		},
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"extract", "ai", "inspect", "upload", "ingest"} {
		assert.Contains(t, names, want)
	}
}

func TestExtractRequiresArgument(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"extract"})
	assert.Error(t, root.Execute())
}

func TestEmitTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, testCLI(&out).emit(sampleTransactions(), outputFlags{}))

	s := out.String()
	assert.Contains(t, s, "DATE")
	assert.Contains(t, s, "+£2,500.00")
	assert.Contains(t, s, "-£45.50")
	assert.Contains(t, s, "£3,000.00")
	assert.Contains(t, s, "2 transactions, in £2,500.00, out £45.50")
}

func TestEmitFormats(t *testing.T) {
	t.Run("csv to stdout", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, testCLI(&out).emit(sampleTransactions(), outputFlags{format: "csv"}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "2024-04-02,Groceries,45.50,debit,,GBP,Uncategorized", lines[2])
	})

	t.Run("file defaults to csv", func(t *testing.T) {
		var out bytes.Buffer
		path := filepath.Join(t.TempDir(), "april.csv")
		require.NoError(t, testCLI(&out).emit(sampleTransactions(), outputFlags{out: path}))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "date,description,amount"))
		assert.Contains(t, out.String(), "Wrote 2 transactions")
	})

	t.Run("xlsx needs a file", func(t *testing.T) {
		var out bytes.Buffer
		assert.Error(t, testCLI(&out).emit(sampleTransactions(), outputFlags{format: "xlsx"}))
	})

	t.Run("xlsx to file", func(t *testing.T) {
		var out bytes.Buffer
		path := filepath.Join(t.TempDir(), "april.xlsx")
		require.NoError(t, testCLI(&out).emit(sampleTransactions(), outputFlags{format: "xlsx", out: path}))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	})

	t.Run("unknown format", func(t *testing.T) {
		var out bytes.Buffer
		assert.Error(t, testCLI(&out).emit(sampleTransactions(), outputFlags{format: "ofx"}))
	})
}

func TestPrintReport(t *testing.T) {
	report := &extract.Report{
		Path:      "/tmp/april.pdf",
		PageCount: 2,
		Pages: []extract.PageReport{
			{
				Page:     1,
				State:    extract.PageRowsProcessed,
				Strategy: "lines",
				Tables: []extract.TableReport{{
					Index:    0,
					Rows:     12,
					Header:   []string{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
					Accepted: true,
					Emitted:  10,
					Skipped:  map[extract.SkipReason]int{extract.SkipNoAmount: 1, extract.SkipNoDate: 1},
				}},
			},
			{Page: 2, State: extract.PageNoTableFound, TextSample: "Thank you for banking with us"},
		},
		TransactionCount: 10,
		Info:             &pdftable.Info{Version: "1.7", PageCount: 2, Producer: "iText"},
	}

	var out bytes.Buffer
	printReport(&out, report)

	s := out.String()
	assert.Contains(t, s, "PDF 1.7, 2 pages, produced by iText")
	assert.Contains(t, s, "Page 1: rows_processed (strategy lines)")
	assert.Contains(t, s, "table 0: 12 rows, accepted, 10 transactions, skipped no_amount=1, no_date=1")
	assert.Contains(t, s, "header: Date | Narration | Withdrawal | Deposit | Balance")
	assert.Contains(t, s, "Page 2: no_table_found")
	assert.Contains(t, s, "Thank you for banking with us")
	assert.Contains(t, s, "Summary:")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
