package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const transactionsTable = "transactions"

// InsertTransactionsWithClient streams a batch of TransactionRow into the
// transactions table using the provided BigQuery client.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Use fully qualified table name to avoid project ID issues
	table := client.DatasetInProject(projectID, datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// ListTransactionsByDocumentWithClient returns the transactions of the
// document's latest run, in statement order.
func ListTransactionsByDocumentWithClient(ctx context.Context, client *bigquery.Client, table, documentID string) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			document_id,
			run_id,
			transaction_date,
			description,
			amount,
			direction,
			balance_after,
			currency,
			category,
			strategy,
			statement_line_no,
			raw_row_data,
			created_ts
		FROM %s
		WHERE document_id = @document_id
		QUALIFY run_id = FIRST_VALUE(run_id) OVER (
			PARTITION BY document_id ORDER BY created_ts DESC
		)
		ORDER BY statement_line_no
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByDocument: query read: %w", err)
	}

	rows := []*TransactionRow{}
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactionsByDocument: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
