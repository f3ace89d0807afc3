package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/metrics"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially, stopping at the first
// failure or when ctx is cancelled.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) not started: %w", i+1, step.Name(), err)
		}
		log.Debug().Int("step", i+1).Str("name", step.Name()).Msg("Running pipeline step")
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// Deps are the collaborators of one ingestion.
type Deps struct {
	Fetcher   DocumentFetcher
	Heuristic HeuristicExtractor
	Sink      TransactionSink
	Runs      RunRecorder

	// AI and Credential are optional; the AI strategy is skipped when either
	// is missing.
	AI         AIExtractor
	Credential string

	Currency string
	Category string
	Metrics  *metrics.Recorder
	Now      func() time.Time
}

func (d Deps) validate() error {
	var missing []string
	if d.Fetcher == nil {
		missing = append(missing, "Fetcher")
	}
	if d.Heuristic == nil {
		missing = append(missing, "Heuristic")
	}
	if d.Sink == nil {
		missing = append(missing, "Sink")
	}
	if d.Runs == nil {
		missing = append(missing, "Runs")
	}
	if len(missing) > 0 {
		return fmt.Errorf("pipeline: missing dependencies %v", missing)
	}
	return nil
}

// Result is what one ingestion produced.
type Result struct {
	RunID        string
	Strategy     string
	Transactions []domain.ParsedTransaction
	Stored       int
	// Report is set when the heuristic strategy ran.
	Report *extract.Report
}

// IngestStatement extracts and persists the statement referenced by job.
//
// Steps:
//  1. resolve the source to a local file
//  2. start an extraction run
//  3. extract (AI first when configured, heuristic fallback)
//  4. require at least one transaction
//  5. persist the transactions
//  6. mark the run succeeded
//
// On failure the run is marked failed with the error message.
func IngestStatement(ctx context.Context, deps Deps, job *jobs.ExtractStatementJob) (*Result, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	state := &PipelineState{
		JobID:      job.JobID,
		DocumentID: job.DocumentID,
		SourceURI:  job.SourceURI,
	}
	defer func() {
		if state.Cleanup != nil {
			state.Cleanup()
		}
	}()

	finish := &FinishRunStep{Runs: deps.Runs}
	p := NewPipeline(
		&ResolveDocumentStep{Fetcher: deps.Fetcher},
		&StartRunStep{Runs: deps.Runs},
		&ExtractStep{AI: deps.AI, Credential: deps.Credential, Heuristic: deps.Heuristic, Metrics: deps.Metrics},
		&EnsureTransactionsStep{},
		&PersistStep{Sink: deps.Sink, Currency: deps.Currency, Category: deps.Category, Now: deps.Now},
		finish,
	)

	if err := p.Execute(ctx, state); err != nil {
		// The failure must be recorded even if ctx was cancelled.
		finish.Fail(context.WithoutCancel(ctx), state, err)
		return nil, err
	}

	return &Result{
		RunID:        state.RunID,
		Strategy:     state.Strategy,
		Transactions: state.Transactions,
		Stored:       state.Stored,
		Report:       state.Report,
	}, nil
}

// NewJobHandler adapts IngestStatement to the job queue. The strategy, run
// and transaction count are recorded on the job.
func NewJobHandler(deps Deps) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		j, ok := job.(*jobs.ExtractStatementJob)
		if !ok {
			return fmt.Errorf("pipeline: unsupported job type %s", job.GetType())
		}

		result, err := IngestStatement(ctx, deps, j)
		if err != nil {
			return err
		}
		j.RunID = result.RunID
		j.Strategy = result.Strategy
		j.TransactionCount = result.Stored
		return nil
	}
}

// IsNoTransactions reports whether err is the soft "nothing found" outcome.
func IsNoTransactions(err error) bool {
	return errors.Is(err, domain.ErrNoTransactionsFound)
}
