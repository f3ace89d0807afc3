package extract

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/pdftable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PageSource is an opened document whose pages yield candidate tables.
type PageSource interface {
	NumPages() int
	PageTables(page int) (pdftable.PageTables, error)
	Close() error
}

// Opener opens a document for extraction.
type Opener func(path string) (PageSource, error)

// Options configures an Extractor. The zero value reads every page
// sequentially with the default strategy chain.
type Options struct {
	// MaxPages stops after this many pages; 0 means all.
	MaxPages int
	// PageConcurrency processes pages in parallel when greater than 1.
	// Output order is the same either way.
	PageConcurrency int
	// Table tunes the table detection strategies.
	Table pdftable.Settings
	// Open replaces the PDF reader, mainly for tests.
	Open Opener
}

// Extractor is the heuristic, table-based statement extractor. It keeps no
// state between calls and is safe for concurrent use.
type Extractor struct {
	opts Options
	open Opener
}

// NewExtractor returns an Extractor for opts.
func NewExtractor(opts Options) *Extractor {
	open := opts.Open
	if open == nil {
		chain := pdftable.NewChain(opts.Table)
		open = func(path string) (PageSource, error) {
			doc, err := pdftable.Open(path, chain)
			if err != nil {
				return nil, err
			}
			return doc, nil
		}
	}
	if opts.PageConcurrency < 1 {
		opts.PageConcurrency = 1
	}
	return &Extractor{opts: opts, open: open}
}

type pageResult struct {
	report PageReport
	txs    []domain.ParsedTransaction
}

// Extract reads the statement at path and returns its transactions in page,
// table and row order. An empty result is not an error; check
// Report.NoTransactions. A file that cannot be opened as a PDF fails with
// domain.ErrDocumentUnreadable.
func (e *Extractor) Extract(ctx context.Context, path string) ([]domain.ParsedTransaction, *Report, error) {
	log := logger.FromContext(ctx).With().Str("path", path).Logger()

	src, err := e.open(path)
	if err != nil {
		return nil, nil, domain.NewDocumentUnreadable(fmt.Sprintf("opening %s", path), err)
	}
	defer src.Close()

	total := src.NumPages()
	pages := total
	if e.opts.MaxPages > 0 && pages > e.opts.MaxPages {
		log.Warn().Int("pages", total).Int("max_pages", e.opts.MaxPages).Msg("Page limit reached, ignoring remaining pages")
		pages = e.opts.MaxPages
	}
	log.Debug().Int("pages", total).Msg("Extracting transactions")

	results := make([]pageResult, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.PageConcurrency)
	for i := 0; i < pages; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.processPage(gctx, src, i+1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("Extract: %w", err)
	}

	report := &Report{Path: path, PageCount: total, Pages: make([]PageReport, 0, pages)}
	var txs []domain.ParsedTransaction
	for _, r := range results {
		report.Pages = append(report.Pages, r.report)
		txs = append(txs, r.txs...)
	}
	report.TransactionCount = len(txs)

	if report.NoTransactions() {
		log.Info().Str("summary", report.Summary()).Msg("No transactions found")
	} else {
		log.Info().Int("transactions", len(txs)).Msg("Extraction completed")
	}
	return txs, report, nil
}

// Inspect runs extraction for its diagnostics only and adds container
// metadata to the report.
func (e *Extractor) Inspect(ctx context.Context, path string) (*Report, error) {
	_, report, err := e.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	info, err := pdftable.Inspect(path)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("path", path).Msg("PDF metadata unavailable")
	} else {
		report.Info = info
	}
	return report, nil
}

func (e *Extractor) processPage(ctx context.Context, src PageSource, page int) pageResult {
	log := logger.FromContext(ctx).With().Int("page", page).Logger()
	res := pageResult{report: PageReport{Page: page, State: PageNoTableFound}}

	pt, err := src.PageTables(page)
	if err != nil {
		log.Warn().Err(err).Msg("Page unreadable, skipping")
		res.report.Error = err.Error()
		return res
	}
	res.report.Discarded = pt.Discarded

	if !pt.Found() {
		res.report.TextSample = sample(pt.Text)
		log.Info().Int("text_chars", len(pt.Text)).Str("text_sample", res.report.TextSample).Msg("No table detected by any strategy")
		return res
	}

	res.report.Strategy = pt.Strategy
	for i, table := range pt.Tables {
		if len(table) < pdftable.MinTableRows {
			log.Debug().Int("table", i).Int("rows", len(table)).Msg("Table discarded: no data rows")
			res.report.Discarded++
			continue
		}
		tr, txs := processTable(log, table, page, i)
		res.report.Tables = append(res.report.Tables, tr)
		res.report.State = advance(res.report.State, tr)
		res.txs = append(res.txs, txs...)
	}
	return res
}

// advance moves a page along no_table_found, table_candidate,
// columns_classified, rows_processed. A page never moves back.
func advance(state PageState, tr TableReport) PageState {
	next := PageTableCandidate
	switch {
	case tr.Emitted > 0:
		next = PageRowsProcessed
	case tr.Accepted:
		next = PageColumnsClassified
	}
	if pageStateRank[next] > pageStateRank[state] {
		return next
	}
	return state
}

var pageStateRank = map[PageState]int{
	PageNoTableFound:      0,
	PageTableCandidate:    1,
	PageColumnsClassified: 2,
	PageRowsProcessed:     3,
}

func processTable(log zerolog.Logger, table domain.RawTable, page, index int) (TableReport, []domain.ParsedTransaction) {
	header := table[0]
	roles := ClassifyColumns(header)

	tr := TableReport{
		Index:  index,
		Rows:   len(table),
		Header: make([]string, len(header)),
		Roles:  roles.AsMap(),
	}
	for i, c := range header {
		tr.Header[i] = c.String()
	}

	if !roles.Resolved() {
		log.Info().Int("table", index).Strs("header", tr.Header).Msg("Table discarded: no date or description column")
		return tr, nil
	}
	tr.Accepted = true
	log.Debug().Int("table", index).Int("rows", len(table)).Interface("roles", tr.Roles).Msg("Columns classified")

	var txs []domain.ParsedTransaction
	for _, row := range table[1:] {
		tx, reason, ok := AssembleRow(row, roles, page)
		if !ok {
			if tr.Skipped == nil {
				tr.Skipped = make(map[SkipReason]int)
			}
			tr.Skipped[reason]++
			continue
		}
		txs = append(txs, tx)
	}
	tr.Emitted = len(txs)
	return tr, txs
}
