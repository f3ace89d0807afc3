package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/pdftable"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pages  []pdftable.PageTables
	errs   map[int]error
	closed bool
}

func (f *fakeSource) NumPages() int { return len(f.pages) }

func (f *fakeSource) PageTables(n int) (pdftable.PageTables, error) {
	if err, ok := f.errs[n]; ok {
		return pdftable.PageTables{Page: n}, err
	}
	pt := f.pages[n-1]
	pt.Page = n
	return pt, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func tablePage(tables ...domain.RawTable) pdftable.PageTables {
	return pdftable.PageTables{Detection: pdftable.Detection{Strategy: pdftable.StrategyDefault, Tables: tables}}
}

func textPage(text string) pdftable.PageTables {
	return pdftable.PageTables{Text: text}
}

func extractorFor(src *fakeSource, opts Options) *Extractor {
	opts.Open = func(string) (PageSource, error) { return src, nil }
	return NewExtractor(opts)
}

func quietContext() context.Context {
	return logger.WithContext(context.Background(), zerolog.Nop())
}

var statementTable = domain.RawTable{
	domain.TextRow("Date", "Particulars", "Debit", "Credit", "Balance"),
	domain.TextRow("01-04-2024", "ATM WDL", "500.00", "", "9500.00"),
	domain.TextRow("02-04-2024", "SALARY CREDIT", "", "50000.00", "59500.00"),
}

func TestExtractTwoPageStatement(t *testing.T) {
	src := &fakeSource{pages: []pdftable.PageTables{
		tablePage(statementTable),
		textPage("Thank you for banking with us"),
	}}

	txs, report, err := extractorFor(src, Options{}).Extract(quietContext(), "statement.pdf")

	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, src.closed)

	assert.Equal(t, civil.Date{Year: 2024, Month: 4, Day: 1}, txs[0].Date)
	assert.Equal(t, "ATM WDL", txs[0].Description)
	assert.True(t, decimal.NewFromInt(500).Equal(txs[0].Amount))
	assert.Equal(t, domain.DirectionDebit, txs[0].Direction)
	require.True(t, txs[0].BalanceAfter.Valid)
	assert.True(t, decimal.NewFromInt(9500).Equal(txs[0].BalanceAfter.Decimal))
	assert.JSONEq(t, `{"row":["01-04-2024","ATM WDL","500.00",null,"9500.00"],"page":1}`, txs[0].RawRowData)

	assert.Equal(t, civil.Date{Year: 2024, Month: 4, Day: 2}, txs[1].Date)
	assert.Equal(t, "SALARY CREDIT", txs[1].Description)
	assert.True(t, decimal.NewFromInt(50000).Equal(txs[1].Amount))
	assert.Equal(t, domain.DirectionCredit, txs[1].Direction)
	require.True(t, txs[1].BalanceAfter.Valid)
	assert.True(t, decimal.NewFromInt(59500).Equal(txs[1].BalanceAfter.Decimal))

	require.Len(t, report.Pages, 2)
	assert.Equal(t, PageRowsProcessed, report.Pages[0].State)
	assert.Equal(t, pdftable.StrategyDefault, report.Pages[0].Strategy)
	assert.Equal(t, PageNoTableFound, report.Pages[1].State)
	assert.Equal(t, "Thank you for banking with us", report.Pages[1].TextSample)
	assert.Equal(t, 2, report.TransactionCount)
	assert.False(t, report.NoTransactions())
}

func TestExtractNoTablesIsSoftEmpty(t *testing.T) {
	src := &fakeSource{pages: []pdftable.PageTables{textPage("scanned"), textPage("")}}

	txs, report, err := extractorFor(src, Options{}).Extract(quietContext(), "scan.pdf")

	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.True(t, report.NoTransactions())
	assert.Equal(t, "2 pages, 0 tables found, 0 with date/description columns, 0 transactions", report.Summary())
}

func TestExtractSkipsBadRowsAndTables(t *testing.T) {
	unlabelled := domain.RawTable{
		domain.TextRow("Summary"),
		domain.TextRow("Closing balance 10,000"),
	}
	messy := domain.RawTable{
		domain.TextRow("Date", "Narration", "Amount"),
		domain.TextRow("01-05-2024", "UPI payment"),                     // short row
		domain.TextRow("Opening", "Brought forward", "100"),             // no date
		domain.TextRow("", "NEFT ref 03/05/2024 rent", "15,000.00"),     // date from description
		domain.TextRow("04-05-2024", "ab", "10"),                        // short description
		domain.TextRow("05-05-2024", "Cheque returned", "NIL"),          // no amount
		domain.TextRow("06-05-2024", "  Interest credited  ", "₹12.40"), // trimmed
	}
	src := &fakeSource{pages: []pdftable.PageTables{tablePage(unlabelled, messy)}}

	txs, report, err := extractorFor(src, Options{}).Extract(quietContext(), "messy.pdf")

	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, civil.Date{Year: 2024, Month: 5, Day: 3}, txs[0].Date)
	assert.Equal(t, domain.DirectionDebit, txs[0].Direction)
	assert.Equal(t, "Interest credited", txs[1].Description)
	assert.Equal(t, domain.DirectionCredit, txs[1].Direction)
	assert.False(t, txs[1].BalanceAfter.Valid)

	page := report.Pages[0]
	require.Len(t, page.Tables, 2)
	assert.False(t, page.Tables[0].Accepted)
	assert.True(t, page.Tables[1].Accepted)
	assert.Equal(t, map[SkipReason]int{
		SkipShortRow:         1,
		SkipNoDate:           1,
		SkipShortDescription: 1,
		SkipNoAmount:         1,
	}, page.Tables[1].Skipped)
	assert.Equal(t, 1, report.TablesAccepted())
}

func TestExtractPageErrorDoesNotAbortDocument(t *testing.T) {
	src := &fakeSource{
		pages: []pdftable.PageTables{{}, tablePage(statementTable)},
		errs:  map[int]error{1: errors.New("bad content stream")},
	}

	txs, report, err := extractorFor(src, Options{}).Extract(quietContext(), "partial.pdf")

	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Equal(t, "bad content stream", report.Pages[0].Error)
	assert.Contains(t, txs[0].RawRowData, `"page":2`)
}

func TestExtractOpenFailureIsDocumentUnreadable(t *testing.T) {
	ext := NewExtractor(Options{Open: func(string) (PageSource, error) {
		return nil, errors.New("not a PDF file: invalid header")
	}})

	_, _, err := ext.Extract(quietContext(), "x.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentUnreadable)
}

func TestExtractCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 truncated"), 0o600))

	_, _, err := NewExtractor(Options{}).Extract(quietContext(), path)

	assert.ErrorIs(t, err, domain.ErrDocumentUnreadable)
}

func manyPages(n int) []pdftable.PageTables {
	pages := make([]pdftable.PageTables, n)
	for i := range pages {
		if i%3 == 2 {
			pages[i] = textPage("blank")
			continue
		}
		pages[i] = tablePage(domain.RawTable{
			domain.TextRow("Date", "Narration", "Amount"),
			domain.TextRow(fmt.Sprintf("%02d-06-2024", i+1), fmt.Sprintf("UPI transfer %d", i), fmt.Sprintf("%d.00", 100+i)),
			domain.TextRow(fmt.Sprintf("%02d-06-2024", i+1), fmt.Sprintf("Refund %d", i), "-1.50"),
		})
	}
	return pages
}

func TestExtractIsIdempotentAndOrderedUnderConcurrency(t *testing.T) {
	src := &fakeSource{pages: manyPages(12)}

	first, _, err := extractorFor(src, Options{}).Extract(quietContext(), "a.pdf")
	require.NoError(t, err)
	second, _, err := extractorFor(src, Options{}).Extract(quietContext(), "a.pdf")
	require.NoError(t, err)
	parallel, report, err := extractorFor(src, Options{PageConcurrency: 4}).Extract(quietContext(), "a.pdf")
	require.NoError(t, err)

	assert.Len(t, first, 16)
	assert.Equal(t, first, second)
	assert.Equal(t, first, parallel)
	for i, p := range report.Pages {
		assert.Equal(t, i+1, p.Page)
	}
}

func TestExtractMaxPages(t *testing.T) {
	src := &fakeSource{pages: manyPages(6)}

	txs, report, err := extractorFor(src, Options{MaxPages: 2}).Extract(quietContext(), "a.pdf")

	require.NoError(t, err)
	assert.Len(t, txs, 4)
	assert.Len(t, report.Pages, 2)
	assert.Equal(t, 6, report.PageCount)
}

func TestExtractHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(quietContext())
	cancel()

	_, _, err := extractorFor(&fakeSource{pages: manyPages(3)}, Options{}).Extract(ctx, "a.pdf")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspectWithoutContainerMetadata(t *testing.T) {
	src := &fakeSource{pages: []pdftable.PageTables{tablePage(statementTable)}}

	report, err := extractorFor(src, Options{}).Inspect(quietContext(), filepath.Join(t.TempDir(), "missing.pdf"))

	require.NoError(t, err)
	assert.Nil(t, report.Info)
	assert.Equal(t, 2, report.TransactionCount)
}

func TestExtractPageStates(t *testing.T) {
	unlabelled := domain.RawTable{
		domain.TextRow("Summary"),
		domain.TextRow("Closing balance 10,000"),
	}
	allSkipped := domain.RawTable{
		domain.TextRow("Date", "Narration", "Amount"),
		domain.TextRow("01-05-2024", "UPI payment"),
	}

	tests := []struct {
		name string
		page pdftable.PageTables
		want PageState
	}{
		{name: "no table", page: textPage("scanned"), want: PageNoTableFound},
		{name: "columns unresolved", page: tablePage(unlabelled), want: PageTableCandidate},
		{name: "columns resolved, no rows kept", page: tablePage(allSkipped), want: PageColumnsClassified},
		{name: "rows emitted", page: tablePage(statementTable), want: PageRowsProcessed},
		{name: "later table advances", page: tablePage(unlabelled, allSkipped, statementTable), want: PageRowsProcessed},
		{name: "later table does not regress", page: tablePage(statementTable, unlabelled), want: PageRowsProcessed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{pages: []pdftable.PageTables{tt.page}}

			_, report, err := extractorFor(src, Options{}).Extract(quietContext(), "a.pdf")

			require.NoError(t, err)
			require.Len(t, report.Pages, 1)
			assert.Equal(t, tt.want, report.Pages[0].State)
		})
	}
}

func TestExtractDiscardsTablesWithoutDataRows(t *testing.T) {
	headerOnly := domain.RawTable{domain.TextRow("Date", "Narration", "Amount")}

	t.Run("mixed with a usable table", func(t *testing.T) {
		src := &fakeSource{pages: []pdftable.PageTables{tablePage(domain.RawTable{}, headerOnly, statementTable)}}

		txs, report, err := extractorFor(src, Options{}).Extract(quietContext(), "a.pdf")

		require.NoError(t, err)
		assert.Len(t, txs, 2)
		page := report.Pages[0]
		assert.Equal(t, 2, page.Discarded)
		require.Len(t, page.Tables, 1)
		assert.Equal(t, 2, page.Tables[0].Index)
		assert.Equal(t, PageRowsProcessed, page.State)
	})

	t.Run("only empty tables", func(t *testing.T) {
		src := &fakeSource{pages: []pdftable.PageTables{tablePage(domain.RawTable{})}}

		txs, report, err := extractorFor(src, Options{}).Extract(quietContext(), "a.pdf")

		require.NoError(t, err)
		assert.Empty(t, txs)
		assert.Equal(t, PageNoTableFound, report.Pages[0].State)
		assert.True(t, report.NoTransactions())
	})
}
