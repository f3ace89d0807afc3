package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/statement-extractor/internal/api/handlers"
	"github.com/dvloznov/statement-extractor/internal/api/middleware"
	"github.com/dvloznov/statement-extractor/internal/app"
	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/jobs/inmemory"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	bootLog := logger.New()
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid log configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := app.New(ctx, cfg, app.Options{Registerer: reg})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer services.Close()

	if cfg.Storage.Bucket == "" {
		log.Info().Str("dir", cfg.Storage.UploadDir).Msg("No GCS bucket configured, storing uploads locally")
	}
	if !cfg.BigQuery.Enabled {
		log.Info().Msg("BigQuery disabled, results are kept in memory")
	}
	if services.AI == nil {
		log.Info().Msg("No Gemini API key configured, using the heuristic extractor only")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	queueCfg := inmemory.DefaultConfig()
	queueCfg.Workers = cfg.Queue.Workers
	queueCfg.BufferSize = cfg.Queue.BufferSize
	queueCfg.MaxRetries = cfg.Queue.MaxRetries
	queueCfg.OnTransition = services.Metrics.ObserveJob
	jobQueue := inmemory.NewQueue(queueCfg, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", queueCfg.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, pipeline.NewJobHandler(services.PipelineDeps())); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	statementsHandler := handlers.NewStatementsHandler(services.Uploads, jobQueue, cfg.HTTP.MaxUploadBytes, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, jobQueue, services.Sink, services.Fetcher, services.Extractor, log)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      newRouter(log, statementsHandler, jobsHandler, reg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", cfg.HTTP.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func newRouter(log zerolog.Logger, statements *handlers.StatementsHandler, jobs *handlers.JobsHandler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/statements", statements.UploadStatement)

	mux.HandleFunc("GET /api/jobs", jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobs.GetJob)
	mux.HandleFunc("POST /api/jobs/{id}/retry", jobs.RetryJob)
	mux.HandleFunc("GET /api/jobs/{id}/transactions", jobs.ListTransactions)
	mux.HandleFunc("GET /api/jobs/{id}/debug", jobs.DebugJob)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Apply middleware
	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)
}
