package bigquery

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/google/uuid"
)

// Extraction run statuses as stored in extraction_runs.status.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// TransactionRepository provides transaction persistence.
type TransactionRepository interface {
	// InsertTransactions inserts a batch of TransactionRow.
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error

	// ListTransactionsByDocument returns a document's transactions in
	// statement order.
	ListTransactionsByDocument(ctx context.Context, documentID string) ([]*TransactionRow, error)
}

// ExtractionRunRepository records extraction attempts.
type ExtractionRunRepository interface {
	// StartExtractionRun inserts a run with status=RUNNING and returns its ID.
	StartExtractionRun(ctx context.Context, documentID, jobID string) (string, error)

	// MarkExtractionRunSucceeded sets status=SUCCESS, the strategy used and
	// the number of transactions stored.
	MarkExtractionRunSucceeded(ctx context.Context, runID, strategy string, transactionCount int) error

	// MarkExtractionRunFailed sets status=FAILED and the error message.
	// Failures to record are logged, not returned.
	MarkExtractionRunFailed(ctx context.Context, runID string, runErr error)
}

// TransactionRow represents a transaction record in BigQuery.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	DocumentID    string `bigquery:"document_id"`    // REQUIRED
	RunID         string `bigquery:"run_id"`         // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Description     string     `bigquery:"description"`      // REQUIRED

	Amount       *big.Rat `bigquery:"amount"`        // REQUIRED NUMERIC
	Direction    string   `bigquery:"direction"`     // credit | debit
	BalanceAfter *big.Rat `bigquery:"balance_after"` // NULLABLE NUMERIC
	Currency     string   `bigquery:"currency"`
	Category     string   `bigquery:"category"`

	Strategy        string            `bigquery:"strategy"`          // ai | heuristic
	StatementLineNo int64             `bigquery:"statement_line_no"` // position within the document
	RawRowData      bigquery.NullJSON `bigquery:"raw_row_data"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// ExtractionRunRow represents one extraction attempt for a document.
type ExtractionRunRow struct {
	RunID      string `bigquery:"run_id"`
	DocumentID string `bigquery:"document_id"`
	JobID      string `bigquery:"job_id"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	Status           string              `bigquery:"status"`
	Strategy         bigquery.NullString `bigquery:"strategy"`
	TransactionCount bigquery.NullInt64  `bigquery:"transaction_count"`
	ErrorMessage     string              `bigquery:"error_message"`
}

// RowDefaults are the collaborator-assigned fields stamped on every row.
type RowDefaults struct {
	Currency string
	Category string
	Strategy string
}

// ToTransactionRows maps extracted transactions to rows, preserving order.
func ToTransactionRows(documentID, runID string, txs []domain.ParsedTransaction, defaults RowDefaults, now time.Time) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(txs))
	for i, tx := range txs {
		row := &TransactionRow{
			TransactionID:   uuid.NewString(),
			DocumentID:      documentID,
			RunID:           runID,
			TransactionDate: tx.Date,
			Description:     tx.Description,
			Amount:          tx.Amount.Rat(),
			Direction:       string(tx.Direction),
			Currency:        defaults.Currency,
			Category:        defaults.Category,
			Strategy:        defaults.Strategy,
			StatementLineNo: int64(i + 1),
			CreatedTS:       now,
		}
		if tx.BalanceAfter.Valid {
			row.BalanceAfter = tx.BalanceAfter.Decimal.Rat()
		}
		if tx.RawRowData != "" {
			row.RawRowData = bigquery.NullJSON{JSONVal: tx.RawRowData, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}
