package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/statement-extractor/internal/api/handlers"
	"github.com/dvloznov/statement-extractor/internal/api/middleware"
	"github.com/dvloznov/statement-extractor/internal/jobs/inmemory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRouter(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.DefaultConfig(), store)
	defer queue.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"}))

	log := zerolog.Nop()
	router := newRouter(log,
		handlers.NewStatementsHandler(nil, queue, 0, log),
		handlers.NewJobsHandler(store, queue, nil, nil, nil, log),
		reg,
	)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantBody: "healthy"},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK, wantBody: "router_test_total"},
		{name: "empty job list", method: http.MethodGet, path: "/api/jobs", wantStatus: http.StatusOK, wantBody: `"count":0`},
		{name: "unknown job", method: http.MethodGet, path: "/api/jobs/missing", wantStatus: http.StatusNotFound},
		{name: "retry unknown job", method: http.MethodPost, path: "/api/jobs/missing/retry", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodDelete, path: "/api/jobs", wantStatus: http.StatusMethodNotAllowed},
		{name: "preflight", method: http.MethodOptions, path: "/api/statements", wantStatus: http.StatusNoContent},
		{name: "unknown route", method: http.MethodGet, path: "/api/documents", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
