package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/statement-extractor/internal/bigquery"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/google/uuid"
)

const extractionRunsTable = "extraction_runs"

// StartExtractionRunWithClient inserts a new row into extraction_runs with
// status=RUNNING and returns the generated run_id.
func StartExtractionRunWithClient(ctx context.Context, client *bigquery.Client, table, documentID, jobID string) (string, error) {
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			document_id,
			job_id,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@document_id,
			@job_id,
			@started_ts,
			@status
		)
	`, table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "document_id", Value: documentID},
		{Name: "job_id", Value: jobID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: bq.RunStatusRunning},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartExtractionRun: %w", err)
	}
	return runID, nil
}

// MarkExtractionRunSucceededWithClient sets status=SUCCESS, finished_ts, the
// strategy and the transaction count, and clears error_message.
func MarkExtractionRunSucceededWithClient(ctx context.Context, client *bigquery.Client, table, runID, strategy string, transactionCount int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    strategy = @strategy,
		    transaction_count = @transaction_count,
		    error_message = ""
		WHERE run_id = @run_id
	`, table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "strategy", Value: strategy},
		{Name: "transaction_count", Value: transactionCount},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkExtractionRunSucceeded: %w", err)
	}
	return nil
}

// MarkExtractionRunFailedWithClient sets status=FAILED, finished_ts and a
// truncated error_message. Errors are logged rather than returned so the
// original failure is what reaches the caller.
func MarkExtractionRunFailedWithClient(ctx context.Context, client *bigquery.Client, table, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = domain.TruncateMessage(runErr.Error(), domain.MaxErrorMessageLength)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkExtractionRunFailed: update failed")
	}
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
