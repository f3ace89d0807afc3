package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// Generator sends one prompt plus a PDF to a model and returns the reply text.
// This interface enables mocking the Gemini API in tests.
type Generator interface {
	Generate(ctx context.Context, credential, model, prompt string, pdf []byte) (string, error)
}

// StatusError is a failed call with the HTTP status the service answered with.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// GenAIGenerator is the Generator backed by google.golang.org/genai.
type GenAIGenerator struct{}

// Generate creates a client for credential and calls GenerateContent.
func (GenAIGenerator) Generate(ctx context.Context, credential, model, prompt string, pdf []byte) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      credential,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdf,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.Code, Err: err}
		}
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
