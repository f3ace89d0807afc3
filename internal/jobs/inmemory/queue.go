package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/google/uuid"
)

// Config tunes the in-memory queue.
type Config struct {
	// Workers is the number of concurrent job handlers.
	Workers int
	// BufferSize is how many jobs can wait before publishing blocks.
	BufferSize int
	// MaxRetries is applied to jobs published without their own limit.
	MaxRetries int
	// RetryBackoff is multiplied by the retry count before a failed job is
	// enqueued again.
	RetryBackoff time.Duration
	// OnTransition, if set, is called after every status change.
	OnTransition func(status jobs.JobStatus)
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Workers:      5,
		BufferSize:   100,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and testing.
type Queue struct {
	cfg       Config
	jobChan   chan *jobs.ExtractStatementJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	// claimMu serializes the active-job check for a document with the save
	// that claims it.
	claimMu sync.Mutex
	store   jobs.JobStore
	closed  bool
}

// NewQueue creates a new in-memory job queue. Zero fields in cfg take their
// DefaultConfig values.
func NewQueue(cfg Config, store jobs.JobStore) *Queue {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	return &Queue{
		cfg:       cfg,
		jobChan:   make(chan *jobs.ExtractStatementJob, cfg.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
	}
}

// PublishExtractStatement implements the Publisher interface.
// It enqueues an extraction job for asynchronous processing. job is filled
// in with its ID and pending state and is not touched afterwards; progress is
// read back from the store.
func (q *Queue) PublishExtractStatement(ctx context.Context, job *jobs.ExtractStatementJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.DocumentID == "" {
		job.DocumentID = job.JobID
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.cfg.MaxRetries
	}

	if err := q.claim(ctx, job, nil); err != nil {
		return err
	}

	// Workers own the queued copy; the caller keeps reading job.
	queued := *job
	return q.send(ctx, &queued)
}

// Retry implements the Publisher interface. Only failed jobs can be retried,
// and only while no other job holds the same document.
func (q *Queue) Retry(ctx context.Context, jobID string) (*jobs.ExtractStatementJob, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, jobs.ErrQueueClosed
	}
	if q.store == nil {
		return nil, fmt.Errorf("Retry: queue has no job store")
	}

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	err = q.claim(ctx, job, func(current *jobs.ExtractStatementJob) error {
		if current.Status != jobs.JobStatusFailed {
			return fmt.Errorf("%w: job %s is %s", jobs.ErrJobNotRetryable, current.JobID, current.Status)
		}
		current.Status = jobs.JobStatusPending
		current.Error = ""
		current.RetryCount = 0
		current.StartedAt = nil
		current.CompletedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	snapshot := *job
	if err := q.send(ctx, job); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// claim checks that no other job is active for the document, applies
// mutate, and saves the job, all under claimMu.
func (q *Queue) claim(ctx context.Context, job *jobs.ExtractStatementJob, mutate func(*jobs.ExtractStatementJob) error) error {
	if q.store == nil {
		if mutate != nil {
			return mutate(job)
		}
		return nil
	}

	q.claimMu.Lock()
	defer q.claimMu.Unlock()

	if mutate != nil {
		current, err := q.store.GetJob(ctx, job.JobID)
		if err != nil {
			return err
		}
		*job = *current
		if err := mutate(job); err != nil {
			return err
		}
	}

	active, err := q.store.ActiveJob(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to check document %s: %w", job.DocumentID, err)
	}
	if active != nil && active.JobID != job.JobID {
		return fmt.Errorf("%w: document %s, job %s", jobs.ErrDocumentBusy, job.DocumentID, active.JobID)
	}

	if err := q.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	q.notify(job.Status)
	return nil
}

func (q *Queue) send(ctx context.Context, job *jobs.ExtractStatementJob) error {
	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

func (q *Queue) notify(status jobs.JobStatus) {
	if q.cfg.OnTransition != nil {
		q.cfg.OnTransition(status)
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.ExtractStatementJob) {
	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
		}
	}
	q.notify(job.Status)
}

// Start implements the Consumer interface.
// It starts consuming jobs from the queue and processes them using the provided handler.
// The handler is called concurrently for each job, up to cfg.Workers workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.ExtractStatementJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Str("document_id", job.DocumentID).Logger()

	job.Status = jobs.JobStatusProcessing
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(logger.WithContext(ctx, log), job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusSucceeded
		job.Error = ""
		log.Info().Int("transactions", job.TransactionCount).Str("strategy", job.Strategy).Msg("Job succeeded")
		q.save(ctx, job)
		return
	}

	job.Error = domain.TruncateMessage(err.Error(), domain.MaxErrorMessageLength)

	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("retry_count", job.RetryCount).Msg("Job failed")
		q.save(ctx, job)
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusPending
	backoff := time.Duration(job.RetryCount) * q.cfg.RetryBackoff
	log.Warn().Err(err).Int("retry_count", job.RetryCount).Dur("backoff", backoff).Msg("Job failed, retrying")
	q.save(ctx, job)

	time.AfterFunc(backoff, func() {
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.requeue(ctx, job); err != nil {
			job.Status = jobs.JobStatusFailed
			job.Error = domain.TruncateMessage(fmt.Sprintf("requeue failed: %v", err), domain.MaxErrorMessageLength)
			q.save(context.WithoutCancel(ctx), job)
		}
	})
}

func (q *Queue) requeue(ctx context.Context, job *jobs.ExtractStatementJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}
	return q.send(ctx, job)
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
// It closes the queue and releases resources.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
