package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/pdftable"
)

// PageState is how far a page got through extraction.
type PageState string

const (
	PageNoTableFound      PageState = "no_table_found"
	PageTableCandidate    PageState = "table_candidate"
	PageColumnsClassified PageState = "columns_classified"
	PageRowsProcessed     PageState = "rows_processed"
)

// SkipReason says why a data row produced no transaction.
type SkipReason string

const (
	SkipShortRow         SkipReason = "short_row"
	SkipNoDate           SkipReason = "no_date"
	SkipShortDescription SkipReason = "short_description"
	SkipNoAmount         SkipReason = "no_amount"
)

const textSampleLimit = 500

// TableReport describes one candidate table.
type TableReport struct {
	Index    int                `json:"index"`
	Rows     int                `json:"rows"`
	Header   []string           `json:"header"`
	Roles    map[string]int     `json:"roles"`
	Accepted bool               `json:"accepted"`
	Emitted  int                `json:"emitted"`
	Skipped  map[SkipReason]int `json:"skipped,omitempty"`
}

// PageReport describes one page.
type PageReport struct {
	Page       int           `json:"page"`
	State      PageState     `json:"state"`
	Strategy   string        `json:"strategy,omitempty"`
	Discarded  int           `json:"discarded_tables,omitempty"`
	Tables     []TableReport `json:"tables,omitempty"`
	TextSample string        `json:"text_sample,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Report is the diagnostic trail of one extraction run.
type Report struct {
	Path             string         `json:"path"`
	PageCount        int            `json:"page_count"`
	Pages            []PageReport   `json:"pages"`
	TransactionCount int            `json:"transaction_count"`
	Info             *pdftable.Info `json:"info,omitempty"`
}

// NoTransactions is the soft "no transactions found" outcome.
func (r *Report) NoTransactions() bool {
	return r.TransactionCount == 0
}

// TablesFound counts candidate tables across pages.
func (r *Report) TablesFound() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Tables)
	}
	return n
}

// TablesAccepted counts tables whose date and description columns resolved.
func (r *Report) TablesAccepted() int {
	n := 0
	for _, p := range r.Pages {
		for _, t := range p.Tables {
			if t.Accepted {
				n++
			}
		}
	}
	return n
}

// Skipped totals skipped rows by reason.
func (r *Report) Skipped() map[SkipReason]int {
	out := make(map[SkipReason]int)
	for _, p := range r.Pages {
		for _, t := range p.Tables {
			for reason, n := range t.Skipped {
				out[reason] += n
			}
		}
	}
	return out
}

// Summary is a one-line human description, used as the failure message when
// nothing was found.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d pages, %d tables found, %d with date/description columns, %d transactions",
		r.PageCount, r.TablesFound(), r.TablesAccepted(), r.TransactionCount)

	skipped := r.Skipped()
	if len(skipped) > 0 {
		reasons := make([]string, 0, len(skipped))
		for reason := range skipped {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		parts := make([]string, len(reasons))
		for i, reason := range reasons {
			parts[i] = fmt.Sprintf("%s=%d", reason, skipped[SkipReason(reason)])
		}
		fmt.Fprintf(&b, " (skipped rows: %s)", strings.Join(parts, ", "))
	}
	return b.String()
}

func sample(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > textSampleLimit {
		r = r[:textSampleLimit]
	}
	return string(r)
}
