// Package metrics exposes Prometheus collectors for extraction runs and jobs.
package metrics

import (
	"time"

	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "statement_extractor"

// Outcomes recorded on extractions_total.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// Recorder owns the collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	extractions  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	transactions *prometheus.CounterVec
	pages        *prometheus.CounterVec
	skippedRows  *prometheus.CounterVec
	jobs         *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of one extraction attempt.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"strategy"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_extracted_total",
			Help:      "Transactions produced by strategy.",
		}, []string{"strategy"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_processed_total",
			Help:      "Pages processed by the heuristic extractor, by final state.",
		}, []string{"state"}),
		skippedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Data rows that produced no transaction, by reason.",
		}, []string{"reason"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Job status transitions.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{r.extractions, r.duration, r.transactions, r.pages, r.skippedRows, r.jobs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveExtraction records one attempt of strategy. count is the number of
// transactions returned; err is the attempt's error, if any.
func (r *Recorder) ObserveExtraction(strategy string, elapsed time.Duration, count int, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeError
	case count == 0:
		outcome = OutcomeEmpty
	}
	r.extractions.WithLabelValues(strategy, outcome).Inc()
	r.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if count > 0 {
		r.transactions.WithLabelValues(strategy).Add(float64(count))
	}
}

// ObserveReport records per-page states and skipped rows from a heuristic run.
func (r *Recorder) ObserveReport(rep *extract.Report) {
	if r == nil || rep == nil {
		return
	}
	for _, p := range rep.Pages {
		r.pages.WithLabelValues(string(p.State)).Inc()
	}
	for reason, n := range rep.Skipped() {
		r.skippedRows.WithLabelValues(string(reason)).Add(float64(n))
	}
}

// ObserveJob records a job status transition. Its signature matches the
// in-memory queue's OnTransition hook.
func (r *Recorder) ObserveJob(status jobs.JobStatus) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(string(status)).Inc()
}
