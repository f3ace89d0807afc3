package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/statement-extractor/internal/bigquery"
)

// Re-export row types and interfaces from the shared package.
type (
	TransactionRow          = bq.TransactionRow
	ExtractionRunRow        = bq.ExtractionRunRow
	TransactionRepository   = bq.TransactionRepository
	ExtractionRunRepository = bq.ExtractionRunRepository
)

// DefaultDatasetID is used when no dataset is configured.
const DefaultDatasetID = "statements"

// Repository implements TransactionRepository and ExtractionRunRepository
// on BigQuery. It holds a shared client to avoid creating a new connection
// for each operation.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a Repository with a shared BigQuery client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewRepository: project ID is required")
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) table(name string) string {
	return qualifiedTable(r.projectID, r.datasetID, name)
}

// InsertTransactions delegates to InsertTransactionsWithClient with the shared client.
func (r *Repository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// ListTransactionsByDocument delegates to ListTransactionsByDocumentWithClient.
func (r *Repository) ListTransactionsByDocument(ctx context.Context, documentID string) ([]*TransactionRow, error) {
	return ListTransactionsByDocumentWithClient(ctx, r.client, r.table(transactionsTable), documentID)
}

// StartExtractionRun delegates to StartExtractionRunWithClient.
func (r *Repository) StartExtractionRun(ctx context.Context, documentID, jobID string) (string, error) {
	return StartExtractionRunWithClient(ctx, r.client, r.table(extractionRunsTable), documentID, jobID)
}

// MarkExtractionRunSucceeded delegates to MarkExtractionRunSucceededWithClient.
func (r *Repository) MarkExtractionRunSucceeded(ctx context.Context, runID, strategy string, transactionCount int) error {
	return MarkExtractionRunSucceededWithClient(ctx, r.client, r.table(extractionRunsTable), runID, strategy, transactionCount)
}

// MarkExtractionRunFailed delegates to MarkExtractionRunFailedWithClient.
func (r *Repository) MarkExtractionRunFailed(ctx context.Context, runID string, runErr error) {
	MarkExtractionRunFailedWithClient(ctx, r.client, r.table(extractionRunsTable), runID, runErr)
}

func qualifiedTable(projectID, datasetID, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, table)
}

var (
	_ TransactionRepository   = (*Repository)(nil)
	_ ExtractionRunRepository = (*Repository)(nil)
)
