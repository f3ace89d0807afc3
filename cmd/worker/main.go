// Command worker extracts a batch of statements given as local paths or
// gs:// URIs and prints a summary once every job has finished.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/statement-extractor/internal/app"
	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/gcsuploader"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/jobs/inmemory"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	pollInterval := flag.Duration("poll", 200*time.Millisecond, "How often job status is checked")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: worker [flags] <statement.pdf|gs://bucket/object> ...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	bootLog := logger.New()
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid log configuration")
	}

	// Cancelled on SIGINT/SIGTERM; in-flight jobs see the cancellation.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	sources := flag.Args()
	services, err := app.New(ctx, cfg, app.Options{GCS: anyGCS(sources)})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer services.Close()

	queueCfg := inmemory.DefaultConfig()
	queueCfg.Workers = cfg.Queue.Workers
	queueCfg.BufferSize = cfg.Queue.BufferSize
	queueCfg.MaxRetries = cfg.Queue.MaxRetries

	log.Info().Int("statements", len(sources)).Int("workers", queueCfg.Workers).Msg("Starting worker")

	results, err := runBatch(ctx, sources, pipeline.NewJobHandler(services.PipelineDeps()), queueCfg, *pollInterval)
	printSummary(os.Stdout, results)
	if err != nil {
		log.Error().Err(err).Msg("Worker stopped before all jobs finished")
		os.Exit(1)
	}
	for _, job := range results {
		if job.Status != jobs.JobStatusSucceeded {
			os.Exit(1)
		}
	}
}

// runBatch enqueues one job per source and waits until all are terminal or
// ctx is cancelled. The returned jobs are in source order.
func runBatch(ctx context.Context, sources []string, handler jobs.JobHandler, cfg inmemory.Config, poll time.Duration) ([]*jobs.ExtractStatementJob, error) {
	log := logger.FromContext(ctx)

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(cfg, store)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := queue.Start(workerCtx, handler); err != nil {
		return nil, fmt.Errorf("starting queue: %w", err)
	}

	var ids []string
	for _, src := range sources {
		job := &jobs.ExtractStatementJob{
			DocumentID: uuid.New().String(),
			SourceURI:  src,
			Filename:   sourceName(src),
		}
		if err := queue.PublishExtractStatement(ctx, job); err != nil {
			shutdown(queue, log)
			return nil, fmt.Errorf("enqueueing %s: %w", src, err)
		}
		log.Debug().Str("job_id", job.JobID).Str("source", src).Msg("Job enqueued")
		ids = append(ids, job.JobID)
	}

	_, err := jobs.WaitForJobs(ctx, store, ids, poll)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Interrupted, waiting for in-flight jobs")
	}
	shutdown(queue, log)

	// Re-read after shutdown so interrupted jobs report their final state.
	results := make([]*jobs.ExtractStatementJob, 0, len(ids))
	for _, id := range ids {
		job, getErr := store.GetJob(context.WithoutCancel(ctx), id)
		if getErr != nil {
			return results, errors.Join(err, getErr)
		}
		results = append(results, job)
	}
	return results, err
}

func shutdown(queue *inmemory.Queue, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queue.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
}

func sourceName(src string) string {
	if gcsuploader.IsGCSURI(src) {
		return gcsuploader.ExtractFilenameFromGCSURI(src)
	}
	return filepath.Base(src)
}

func anyGCS(sources []string) bool {
	for _, src := range sources {
		if gcsuploader.IsGCSURI(src) {
			return true
		}
	}
	return false
}

func printSummary(w io.Writer, results []*jobs.ExtractStatementJob) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.FgYellow).SprintFunc()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tSTRATEGY\tTRANSACTIONS\tERROR")

	succeeded := 0
	for _, job := range results {
		status := string(job.Status)
		switch job.Status {
		case jobs.JobStatusSucceeded:
			succeeded++
			status = ok(status)
		case jobs.JobStatusFailed:
			status = bad(status)
		default:
			status = dim(status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", job.Filename, status, orDash(job.Strategy), job.TransactionCount, orDash(job.Error))
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d of %d statements extracted\n", succeeded, len(results))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
