// Package llm abstracts the completion service used by intent
// classification and extraction. The production implementation talks to
// Google Gemini; tests substitute deterministic mocks.
package llm

import "context"

// Client is the minimal completion interface the pipeline needs.
// Implementations map provider failures onto the ingesterror taxonomy:
// rate limits and outages become *ingesterror.TransientError, empty or
// unusable responses surface as plain errors for the caller to classify.
type Client interface {
	// Complete sends a prompt and returns the model's raw text response.
	Complete(ctx context.Context, prompt string) (string, error)
}
