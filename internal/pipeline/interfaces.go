package pipeline

import (
	"context"

	bq "github.com/dvloznov/statement-extractor/internal/bigquery"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
)

// DocumentFetcher resolves a local path or gs:// URI to a readable local
// file. cleanup is always non-nil.
type DocumentFetcher interface {
	FetchToTempFile(ctx context.Context, uri string) (path string, cleanup func(), err error)
}

// AIExtractor is the model-backed strategy.
// This interface enables mocking and testing of AI extraction.
type AIExtractor interface {
	ExtractViaAI(ctx context.Context, path, credential string) ([]domain.ParsedTransaction, error)
}

// HeuristicExtractor is the table-detection strategy.
type HeuristicExtractor interface {
	Extract(ctx context.Context, path string) ([]domain.ParsedTransaction, *extract.Report, error)
}

// TransactionSink persists extracted transactions.
type TransactionSink = bq.TransactionRepository

// RunRecorder records extraction runs.
type RunRecorder = bq.ExtractionRunRepository
