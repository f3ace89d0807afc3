package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExtractStatement represents a statement extraction job.
	JobTypeExtractStatement JobType = "extract_statement"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed,
	// including while it waits for a retry.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates the job is currently being processed.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusSucceeded indicates the job completed successfully.
	JobStatusSucceeded JobStatus = "succeeded"
	// JobStatusFailed indicates the job failed and will not be retried.
	JobStatusFailed JobStatus = "failed"
)

// Terminal reports whether no further transitions happen without a manual retry.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Active reports whether the job holds its document.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

var (
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")
	// ErrDocumentBusy is returned when a document already has a pending or
	// processing job.
	ErrDocumentBusy = errors.New("document already has an active extraction job")
	// ErrJobNotRetryable is returned when retrying a job that has not failed.
	ErrJobNotRetryable = errors.New("only failed jobs can be retried")
	// ErrQueueClosed is returned after the queue has been stopped.
	ErrQueueClosed = errors.New("queue is closed")
)

// ExtractStatementJob represents a job to extract transactions from one
// uploaded statement.
type ExtractStatementJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// DocumentID identifies the uploaded file. At most one active job exists
	// per document.
	DocumentID string `json:"document_id"`

	// SourceURI is a local path or a gs:// URI.
	SourceURI string `json:"source_uri"`

	// Filename is the name the file was uploaded with.
	Filename string `json:"filename,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`

	// Strategy is the extraction strategy that produced the result ("ai" or
	// "heuristic").
	Strategy string `json:"strategy,omitempty"`

	// TransactionCount is the number of transactions persisted.
	TransactionCount int `json:"transaction_count"`

	// RunID is the extraction run recorded for the last attempt.
	RunID string `json:"run_id,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ExtractStatementJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ExtractStatementJob) GetType() JobType {
	return JobTypeExtractStatement
}

// GetStatus implements the Job interface.
func (j *ExtractStatementJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishExtractStatement enqueues an extraction job. It fails with
	// ErrDocumentBusy when the document already has an active job.
	PublishExtractStatement(ctx context.Context, job *ExtractStatementJob) error

	// Retry resets a failed job to pending and enqueues it again.
	Retry(ctx context.Context, jobID string) (*ExtractStatementJob, error)

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ExtractStatementJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ExtractStatementJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExtractStatementJob, error)

	// ActiveJob returns the pending or processing job holding documentID,
	// or nil when the document is idle.
	ActiveJob(ctx context.Context, documentID string) (*ExtractStatementJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// DocumentID filters jobs by document ID.
	DocumentID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
