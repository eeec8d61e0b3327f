package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"finot/ingest/internal/ingesterror"
	"finot/ingest/internal/logging"
)

// GeminiClient implements Client against the Google Gemini API.
type GeminiClient struct {
	model   *genai.GenerativeModel
	client  *genai.Client
	timeout time.Duration
	log     logging.Logger
}

// NewGeminiClient creates a Gemini-backed completion client.
func NewGeminiClient(ctx context.Context, apiKey, modelName string, timeout time.Duration, log logging.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	return &GeminiClient{
		model:   model,
		client:  client,
		timeout: timeout,
		log:     log,
	}, nil
}

// Complete sends the prompt and returns the first candidate's text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		// The per-call timeout is retryable; cancellation of the run is not.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return "", ingesterror.NewTransient("llm", err)
		}
		return "", classifyGeminiError(err)
	}

	c.log.WithFields(
		logging.Field{Key: logging.FieldService, Value: "llm"},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()},
	).Debug("Gemini completion finished")

	text := flattenResponse(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// flattenResponse concatenates the text parts of the first candidate.
func flattenResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	return out
}

// classifyGeminiError maps provider failures onto the pipeline taxonomy so
// the coordinator can decide on retries without knowing about googleapi.
func classifyGeminiError(err error) error {
	if ingesterror.IsCancelled(err) {
		return err
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return ingesterror.NewTransient("llm", err)
		}
		return fmt.Errorf("gemini request failed: %w", err)
	}
	// Network-level failures are worth a retry.
	return ingesterror.NewTransient("llm", err)
}
