package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"golang.org/x/time/rate"
)

// Config controls the AI strategy's call policy.
type Config struct {
	Model string
	// Timeout bounds a single attempt.
	Timeout time.Duration
	Retry   RetryConfig
	// RatePerSecond caps calls across all goroutines sharing the Extractor.
	// Zero disables the limiter.
	RatePerSecond float64
}

// DefaultConfig returns the production call policy.
func DefaultConfig() Config {
	return Config{
		Model:         DefaultModel,
		Timeout:       2 * time.Minute,
		Retry:         DefaultRetryConfig(),
		RatePerSecond: 1,
	}
}

// Extractor is the AI-based statement extractor.
type Extractor struct {
	cfg      Config
	gen      Generator
	limiter  *rate.Limiter
	readFile func(string) ([]byte, error)
}

// NewExtractor creates an Extractor. A nil gen uses the Gemini API.
func NewExtractor(cfg Config, gen Generator) *Extractor {
	if gen == nil {
		gen = GenAIGenerator{}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Extractor{cfg: cfg, gen: gen, limiter: limiter, readFile: os.ReadFile}
}

// ExtractViaAI sends the PDF at path to the model and returns the
// transactions it lists, in the order given.
//
// It fails with domain.ErrCredentialMissing when credential is blank,
// domain.ErrServiceUnavailable when the call keeps failing, and
// domain.ErrMalformedResponse when the reply cannot be used. An empty list
// from the model is an empty result, not an error.
func (e *Extractor) ExtractViaAI(ctx context.Context, path, credential string) ([]domain.ParsedTransaction, error) {
	log := logger.FromContext(ctx).With().Str("path", path).Str("model", e.cfg.Model).Logger()

	if strings.TrimSpace(credential) == "" {
		return nil, domain.NewCredentialMissing("Google Gemini API key not found. Set GOOGLE_GEMINI_API_KEY environment variable.")
	}

	pdfBytes, err := e.readFile(path)
	if err != nil {
		return nil, domain.NewDocumentUnreadable(fmt.Sprintf("reading %s", path), err)
	}

	var reply string
	attempts, err := withRetry(ctx, e.cfg.Retry, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		attemptCtx := ctx
		if e.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
			defer cancel()
		}
		text, err := e.gen.Generate(attemptCtx, credential, e.cfg.Model, statementPrompt, pdfBytes)
		if err != nil {
			return err
		}
		reply = text
		return nil
	})
	if err != nil {
		return nil, domain.NewServiceUnavailable(fmt.Sprintf("gemini call failed after %d attempts", attempts), err)
	}
	log.Info().Int("attempts", attempts).Int("chars", len(reply)).Msg("Gemini response received")

	if strings.TrimSpace(reply) == "" {
		return nil, domain.NewMalformedResponse("empty response from model", nil)
	}
	return parseResponse(reply, log)
}
