package pipeline

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/statement-extractor/internal/bigquery"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/google/uuid"
)

// MemorySink keeps transactions and runs in memory. It implements
// TransactionSink and RunRecorder for deployments without BigQuery.
// Data is lost on restart.
type MemorySink struct {
	mu           sync.RWMutex
	transactions map[string][]*bq.TransactionRow // by document, latest batch only
	runs         map[string]*bq.ExtractionRunRow
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		transactions: make(map[string][]*bq.TransactionRow),
		runs:         make(map[string]*bq.ExtractionRunRow),
	}
}

// InsertTransactions implements TransactionSink. A batch replaces whatever an
// earlier run stored for the same document.
func (s *MemorySink) InsertTransactions(ctx context.Context, rows []*bq.TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byDoc := make(map[string][]*bq.TransactionRow)
	for _, r := range rows {
		rowCopy := *r
		byDoc[r.DocumentID] = append(byDoc[r.DocumentID], &rowCopy)
	}
	for doc, batch := range byDoc {
		s.transactions[doc] = batch
	}
	return nil
}

// ListTransactionsByDocument implements TransactionSink.
func (s *MemorySink) ListTransactionsByDocument(ctx context.Context, documentID string) ([]*bq.TransactionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.transactions[documentID]
	out := make([]*bq.TransactionRow, len(stored))
	for i, r := range stored {
		rowCopy := *r
		out[i] = &rowCopy
	}
	return out, nil
}

// StartExtractionRun implements RunRecorder.
func (s *MemorySink) StartExtractionRun(ctx context.Context, documentID, jobID string) (string, error) {
	run := &bq.ExtractionRunRow{
		RunID:      uuid.NewString(),
		DocumentID: documentID,
		JobID:      jobID,
		StartedTS:  time.Now(),
		Status:     bq.RunStatusRunning,
	}

	s.mu.Lock()
	s.runs[run.RunID] = run
	s.mu.Unlock()

	return run.RunID, nil
}

// MarkExtractionRunSucceeded implements RunRecorder.
func (s *MemorySink) MarkExtractionRunSucceeded(ctx context.Context, runID, strategy string, transactionCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil
	}
	run.Status = bq.RunStatusSuccess
	run.FinishedTS = bigquery.NullTimestamp{Timestamp: time.Now(), Valid: true}
	run.Strategy = bigquery.NullString{StringVal: strategy, Valid: true}
	run.TransactionCount = bigquery.NullInt64{Int64: int64(transactionCount), Valid: true}
	run.ErrorMessage = ""
	return nil
}

// MarkExtractionRunFailed implements RunRecorder.
func (s *MemorySink) MarkExtractionRunFailed(ctx context.Context, runID string, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return
	}
	run.Status = bq.RunStatusFailed
	run.FinishedTS = bigquery.NullTimestamp{Timestamp: time.Now(), Valid: true}
	if runErr != nil {
		run.ErrorMessage = domain.TruncateMessage(runErr.Error(), domain.MaxErrorMessageLength)
	}
}

// Run returns a copy of the run with the given ID.
func (s *MemorySink) Run(runID string) (bq.ExtractionRunRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return bq.ExtractionRunRow{}, false
	}
	return *run, true
}

var (
	_ TransactionSink = (*MemorySink)(nil)
	_ RunRecorder     = (*MemorySink)(nil)
)
