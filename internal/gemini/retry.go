package gemini

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/dvloznov/statement-extractor/internal/logger"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

func shouldRetryStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// shouldRetry reports whether err is worth another attempt. Unlabelled
// transport errors and per-attempt timeouts are retried; a caller
// cancellation is not.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return shouldRetryStatus(se.Code)
	}
	return true
}

func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

// withRetry runs call until it succeeds, fails permanently, or retries run out.
// It returns the last error and the number of attempts made.
func withRetry(ctx context.Context, cfg RetryConfig, call func(ctx context.Context) error) (int, error) {
	log := logger.FromContext(ctx)
	var lastErr error
	attempt := 0
	for ; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		lastErr = call(ctx)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if !shouldRetry(ctx, lastErr) || attempt == cfg.MaxRetries {
			return attempt + 1, lastErr
		}

		backoff := calculateBackoff(attempt, cfg)
		log.Warn().Err(lastErr).Int("attempt", attempt+1).Int("max_retries", cfg.MaxRetries).Dur("backoff", backoff).Msg("Gemini request failed, retrying")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt + 1, ctx.Err()
		case <-t.C:
		}
	}
	return attempt, lastErr
}
