package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	bq "github.com/dvloznov/statement-extractor/internal/bigquery"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/metrics"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	JobID      string
	DocumentID string
	SourceURI  string

	LocalPath string
	Cleanup   func()

	RunID        string
	Strategy     string
	Transactions []domain.ParsedTransaction
	Report       *extract.Report
	// AIError is the AI strategy's failure when the heuristic fallback ran.
	AIError error
	Stored  int
}

// Step 1: ResolveDocumentStep makes the source available as a local file.
type ResolveDocumentStep struct {
	Fetcher DocumentFetcher
}

func (s *ResolveDocumentStep) Name() string { return "resolve_document" }

func (s *ResolveDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	path, cleanup, err := s.Fetcher.FetchToTempFile(ctx, state.SourceURI)
	if err != nil {
		return domain.NewDocumentUnreadable(fmt.Sprintf("resolving %s", state.SourceURI), err)
	}
	state.LocalPath = path
	state.Cleanup = cleanup
	return nil
}

// Step 2: StartRunStep records a run with status=RUNNING.
type StartRunStep struct {
	Runs RunRecorder
}

func (s *StartRunStep) Name() string { return "start_run" }

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	runID, err := s.Runs.StartExtractionRun(ctx, state.DocumentID, state.JobID)
	if err != nil {
		return err
	}
	state.RunID = runID
	return nil
}

// Step 3: ExtractStep runs the AI strategy when a credential is configured
// and falls back to the heuristic extractor on any AI error or empty result.
type ExtractStep struct {
	AI         AIExtractor
	Credential string
	Heuristic  HeuristicExtractor
	Metrics    *metrics.Recorder
}

func (s *ExtractStep) Name() string { return "extract" }

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	if s.AI != nil && strings.TrimSpace(s.Credential) != "" {
		start := time.Now()
		txs, err := s.AI.ExtractViaAI(ctx, state.LocalPath, s.Credential)
		s.Metrics.ObserveExtraction(StrategyAI, time.Since(start), len(txs), err)

		switch {
		case err == nil && len(txs) > 0:
			state.Strategy = StrategyAI
			state.Transactions = txs
			log.Info().Int("transactions", len(txs)).Msg("AI extraction succeeded")
			return nil
		case err != nil:
			state.AIError = err
			log.Warn().Err(err).Str("error_type", string(domain.TypeOf(err))).Msg("AI extraction failed, falling back to heuristic parser")
		default:
			log.Info().Msg("AI extraction returned no transactions, falling back to heuristic parser")
		}
	}

	start := time.Now()
	txs, report, err := s.Heuristic.Extract(ctx, state.LocalPath)
	s.Metrics.ObserveExtraction(StrategyHeuristic, time.Since(start), len(txs), err)
	s.Metrics.ObserveReport(report)
	if err != nil {
		return err
	}

	state.Strategy = StrategyHeuristic
	state.Transactions = txs
	state.Report = report
	return nil
}

// Step 4: EnsureTransactionsStep turns an empty result into
// domain.ErrNoTransactionsFound.
type EnsureTransactionsStep struct{}

func (s *EnsureTransactionsStep) Name() string { return "ensure_transactions" }

func (s *EnsureTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Transactions) > 0 {
		return nil
	}

	var details []string
	if state.Report != nil {
		details = append(details, state.Report.Summary())
	}
	if state.AIError != nil {
		details = append(details, fmt.Sprintf("AI strategy: %v", state.AIError))
	}
	if len(details) == 0 {
		return domain.ErrNoTransactionsFound
	}
	return fmt.Errorf("%w (%s)", domain.ErrNoTransactionsFound, strings.Join(details, "; "))
}

// Step 5: PersistStep writes the transactions with the collaborator defaults.
type PersistStep struct {
	Sink     TransactionSink
	Currency string
	Category string
	Now      func() time.Time
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	defaults := bq.RowDefaults{
		Currency: orDefault(s.Currency, DefaultCurrency),
		Category: orDefault(s.Category, DefaultCategory),
		Strategy: state.Strategy,
	}

	rows := bq.ToTransactionRows(state.DocumentID, state.RunID, state.Transactions, defaults, now())
	if err := s.Sink.InsertTransactions(ctx, rows); err != nil {
		return err
	}
	state.Stored = len(rows)
	return nil
}

// Step 6: FinishRunStep marks the run as SUCCESS. Fail marks it FAILED and is
// called by IngestStatement when an earlier step fails.
type FinishRunStep struct {
	Runs RunRecorder
}

func (s *FinishRunStep) Name() string { return "finish_run" }

func (s *FinishRunStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Runs.MarkExtractionRunSucceeded(ctx, state.RunID, state.Strategy, state.Stored)
}

// Fail records runErr on the run, if one was started.
func (s *FinishRunStep) Fail(ctx context.Context, state *PipelineState, runErr error) {
	if state.RunID == "" {
		return
	}
	s.Runs.MarkExtractionRunFailed(ctx, state.RunID, runErr)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
