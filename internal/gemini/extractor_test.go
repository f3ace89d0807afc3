package gemini

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockGenerator replays scripted replies, one per call.
type MockGenerator struct {
	mu           sync.Mutex
	Replies      []string
	Errs         []error
	Calls        int
	LastModel    string
	LastPDF      []byte
	GenerateFunc func(ctx context.Context) (string, error)
}

func (m *MockGenerator) Generate(ctx context.Context, credential, model, prompt string, pdf []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.Calls
	m.Calls++
	m.LastModel = model
	m.LastPDF = pdf
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx)
	}
	var err error
	if i < len(m.Errs) {
		err = m.Errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(m.Replies) {
		return m.Replies[i], nil
	}
	return "", nil
}

func testConfig() Config {
	return Config{
		Model:   "test-model",
		Timeout: time.Second,
		Retry:   RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	}
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 test"), 0o600))
	return path
}

func quietContext() context.Context {
	return logger.WithContext(context.Background(), zerolog.Nop())
}

func TestExtractViaAI(t *testing.T) {
	gen := &MockGenerator{Replies: []string{twoTransactions}}
	path := writePDF(t)

	txs, err := NewExtractor(testConfig(), gen).ExtractViaAI(quietContext(), path, "key")

	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Equal(t, 1, gen.Calls)
	assert.Equal(t, "test-model", gen.LastModel)
	assert.Equal(t, []byte("%PDF-1.7 test"), gen.LastPDF)
}

func TestExtractViaAICredentialMissing(t *testing.T) {
	gen := &MockGenerator{}

	_, err := NewExtractor(testConfig(), gen).ExtractViaAI(quietContext(), writePDF(t), "  ")

	assert.ErrorIs(t, err, domain.ErrCredentialMissing)
	assert.Zero(t, gen.Calls)
}

func TestExtractViaAIMissingFile(t *testing.T) {
	_, err := NewExtractor(testConfig(), &MockGenerator{}).ExtractViaAI(quietContext(), filepath.Join(t.TempDir(), "nope.pdf"), "key")

	assert.ErrorIs(t, err, domain.ErrDocumentUnreadable)
}

func TestExtractViaAIRetriesTransientFailures(t *testing.T) {
	gen := &MockGenerator{
		Errs: []error{
			&StatusError{Code: http.StatusTooManyRequests, Err: errors.New("quota")},
			&StatusError{Code: http.StatusServiceUnavailable, Err: errors.New("overloaded")},
		},
		Replies: []string{"", "", twoTransactions},
	}

	txs, err := NewExtractor(testConfig(), gen).ExtractViaAI(quietContext(), writePDF(t), "key")

	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Equal(t, 3, gen.Calls)
}

func TestExtractViaAIGivesUpAfterRetries(t *testing.T) {
	gen := &MockGenerator{Errs: []error{errors.New("reset"), errors.New("reset"), errors.New("reset"), errors.New("reset")}}

	_, err := NewExtractor(testConfig(), gen).ExtractViaAI(quietContext(), writePDF(t), "key")

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, 3, gen.Calls)
}

func TestExtractViaAIDoesNotRetryClientErrors(t *testing.T) {
	gen := &MockGenerator{Errs: []error{&StatusError{Code: http.StatusBadRequest, Err: errors.New("bad key")}}}

	_, err := NewExtractor(testConfig(), gen).ExtractViaAI(quietContext(), writePDF(t), "key")

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, 1, gen.Calls)
}

func TestExtractViaAIAttemptTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.Retry.MaxRetries = 1
	gen := &MockGenerator{GenerateFunc: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	_, err := NewExtractor(cfg, gen).ExtractViaAI(quietContext(), writePDF(t), "key")

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, gen.Calls)
}

func TestExtractViaAIEmptyReply(t *testing.T) {
	gen := &MockGenerator{Replies: []string{"  "}}

	_, err := NewExtractor(testConfig(), gen).ExtractViaAI(quietContext(), writePDF(t), "key")

	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 5*time.Second, calculateBackoff(3, cfg))
}

func TestShouldRetry(t *testing.T) {
	ctx := context.Background()
	assert.True(t, shouldRetry(ctx, &StatusError{Code: 500}))
	assert.True(t, shouldRetry(ctx, &StatusError{Code: 429}))
	assert.False(t, shouldRetry(ctx, &StatusError{Code: 403}))
	assert.True(t, shouldRetry(ctx, errors.New("connection reset")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, shouldRetry(cancelled, errors.New("connection reset")))
}
