// Package app wires configuration into the services shared by the api,
// worker and cli binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	bq "github.com/dvloznov/statement-extractor/internal/bigquery"
	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/gcsuploader"
	"github.com/dvloznov/statement-extractor/internal/gemini"
	infraBQ "github.com/dvloznov/statement-extractor/internal/infra/bigquery"
	"github.com/dvloznov/statement-extractor/internal/metrics"
	"github.com/dvloznov/statement-extractor/internal/pdftable"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

// UploadPrefix is the object prefix for statements uploaded to a bucket.
const UploadPrefix = "uploads"

// Options adjust what New connects to.
type Options struct {
	// Registerer receives the metrics collectors. Nil disables metrics.
	Registerer prometheus.Registerer
	// GCS creates a storage client even without a configured bucket, so
	// gs:// sources can be fetched.
	GCS bool
}

// Services are the configured collaborators of the extraction pipeline.
type Services struct {
	Config    *config.Config
	Extractor *extract.Extractor
	// AI is nil when no Gemini key is configured.
	AI      *gemini.Extractor
	Storage *gcsuploader.GCSStorageService
	Fetcher *gcsuploader.Fetcher
	Uploads gcsuploader.UploadStore
	Sink    bq.TransactionRepository
	Runs    bq.ExtractionRunRepository
	Metrics *metrics.Recorder

	closers []func() error
}

// New builds Services from cfg. Without a bucket, uploads go to the local
// upload directory; without BigQuery, results are kept in memory.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Services, error) {
	s := &Services{Config: cfg}

	table := pdftable.DefaultSettings()
	table.ExplicitColumns = cfg.Extraction.ExplicitColumns
	s.Extractor = extract.NewExtractor(extract.Options{
		MaxPages:        cfg.Extraction.MaxPages,
		PageConcurrency: cfg.Extraction.PageConcurrency,
		Table:           table,
	})

	if cfg.Gemini.Enabled() {
		aiCfg := gemini.DefaultConfig()
		aiCfg.Model = cfg.Gemini.Model
		aiCfg.Timeout = cfg.Gemini.Timeout
		aiCfg.Retry.MaxRetries = cfg.Gemini.MaxRetries
		aiCfg.RatePerSecond = cfg.Gemini.RatePerSecond
		s.AI = gemini.NewExtractor(aiCfg, nil)
	}

	s.Fetcher = &gcsuploader.Fetcher{}
	if cfg.Storage.Bucket != "" || opts.GCS {
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		s.Storage = storage
		s.Fetcher.Storage = storage
		s.closers = append(s.closers, storage.Close)
	}
	if cfg.Storage.Bucket != "" {
		s.Uploads = &gcsuploader.BucketStore{Storage: s.Storage, Bucket: cfg.Storage.Bucket, Prefix: UploadPrefix}
	} else {
		s.Uploads = &gcsuploader.LocalStore{Dir: cfg.Storage.UploadDir}
	}

	if cfg.BigQuery.Enabled {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		s.Sink = repo
		s.Runs = repo
		s.closers = append(s.closers, repo.Close)
	} else {
		mem := pipeline.NewMemorySink()
		s.Sink = mem
		s.Runs = mem
	}

	if opts.Registerer != nil {
		rec, err := metrics.NewRecorder(opts.Registerer)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		s.Metrics = rec
	}

	return s, nil
}

// PipelineDeps returns the dependencies for pipeline.IngestStatement.
func (s *Services) PipelineDeps() pipeline.Deps {
	deps := pipeline.Deps{
		Fetcher:   s.Fetcher,
		Heuristic: s.Extractor,
		Sink:      s.Sink,
		Runs:      s.Runs,
		Currency:  s.Config.Defaults.Currency,
		Category:  s.Config.Defaults.Category,
		Metrics:   s.Metrics,
	}
	// A typed nil would defeat the AI strategy's nil check.
	if s.AI != nil {
		deps.AI = s.AI
		deps.Credential = s.Config.Gemini.APIKey
	}
	return deps
}

// Close releases the storage and BigQuery clients.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
