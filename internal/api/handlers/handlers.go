package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/api/middleware"
	"github.com/dvloznov/statement-extractor/internal/bigquery"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/export"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/gcsuploader"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxUploadBytes bounds a statement upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 32 << 20

// StatementsHandler handles statement uploads.
type StatementsHandler struct {
	store     gcsuploader.UploadStore
	publisher jobs.Publisher
	maxBytes  int64
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(store gcsuploader.UploadStore, publisher jobs.Publisher, maxBytes int64, log zerolog.Logger) *StatementsHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &StatementsHandler{
		store:     store,
		publisher: publisher,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// UploadStatement handles POST /api/statements
//
// The multipart field "file" must hold a .pdf. The file is stored, a job is
// enqueued and 202 is returned with the job ID.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.ContentLength > h.maxBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxBytes))
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !gcsuploader.IsPDF(header.Filename) {
		middleware.WriteError(w, http.StatusBadRequest, "Only .pdf files are accepted")
		return
	}

	uri, err := h.store.Save(ctx, header.Filename, file)
	if err != nil {
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to store statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	job := &jobs.ExtractStatementJob{
		DocumentID: uuid.New().String(),
		SourceURI:  uri,
		Filename:   gcsuploader.SanitizeFilename(header.Filename),
	}

	if err := h.publisher.PublishExtractStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Str("document_id", job.DocumentID).Msg("Failed to enqueue extraction job")
		writeJobError(w, err, "Failed to enqueue extraction job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("document_id", job.DocumentID).
		Str("source_uri", uri).
		Msg("Extraction job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"document_id": job.DocumentID,
		"source_uri":  uri,
		"status":      string(job.Status),
	})
}

// DocumentFetcher resolves a job's source to a local file.
type DocumentFetcher interface {
	FetchToTempFile(ctx context.Context, uri string) (path string, cleanup func(), err error)
}

// ReportInspector produces the extraction report for a local PDF.
type ReportInspector interface {
	Inspect(ctx context.Context, path string) (*extract.Report, error)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	results   bigquery.TransactionRepository
	fetcher   DocumentFetcher
	inspector ReportInspector
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, results bigquery.TransactionRepository, fetcher DocumentFetcher, inspector ReportInspector, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		results:   results,
		fetcher:   fetcher,
		inspector: inspector,
		log:       log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		DocumentID: query.Get("document_id"),
		Status:     jobs.JobStatus(query.Get("status")),
	}

	switch filter.Status {
	case "", jobs.JobStatusPending, jobs.JobStatusProcessing, jobs.JobStatusSucceeded, jobs.JobStatusFailed:
	default:
		middleware.WriteError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	var err error
	if filter.Limit, err = nonNegativeInt(query.Get("limit")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	if filter.Offset, err = nonNegativeInt(query.Get("offset")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ExtractStatementJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// RetryJob handles POST /api/jobs/{id}/retry
func (h *JobsHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.publisher.Retry(r.Context(), jobID)
	if err != nil {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("Retry refused")
		writeJobError(w, err, "Failed to retry job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("document_id", job.DocumentID).Msg("Extraction job re-enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// ListTransactions handles GET /api/jobs/{id}/transactions
//
// ?format=csv|xlsx returns a download; the default is JSON.
func (h *JobsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	format := export.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := export.ParseFormat(f)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = parsed
	}

	rows, err := h.results.ListTransactionsByDocument(r.Context(), job.DocumentID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	records := export.FromRows(rows)

	if format == export.FormatJSON {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"job_id":       job.JobID,
			"document_id":  job.DocumentID,
			"status":       job.Status,
			"transactions": records,
			"count":        len(records),
		})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, job.JobID, format))
	if err := export.Write(w, format, records); err != nil {
		h.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to write export")
	}
}

// DebugJob handles GET /api/jobs/{id}/debug
//
// The source is re-read and the per-page extraction report returned.
func (h *JobsHandler) DebugJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	path, cleanup, err := h.fetcher.FetchToTempFile(ctx, job.SourceURI)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to fetch document")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to fetch document")
		return
	}
	defer cleanup()

	report, err := h.inspector.Inspect(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentUnreadable) {
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to inspect document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to inspect document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  job.JobID,
		"summary": report.Summary(),
		"report":  report,
	})
}

func (h *JobsHandler) lookup(w http.ResponseWriter, r *http.Request) (*jobs.ExtractStatementJob, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
		return nil, false
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return nil, false
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return nil, false
	}
	return job, true
}

func writeJobError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, jobs.ErrJobNotRetryable), errors.Is(err, jobs.ErrDocumentBusy):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrQueueClosed):
		middleware.WriteError(w, http.StatusServiceUnavailable, "Queue is shutting down")
	default:
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

func nonNegativeInt(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return n, nil
}
