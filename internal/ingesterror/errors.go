// Package ingesterror defines the typed errors used across the ingestion
// pipeline. The coordinator decides retry policy purely from these types:
// transient errors are retried with backoff, everything else is terminal.
package ingesterror

import (
	"context"
	"errors"
	"fmt"
)

// TransientError wraps a temporary upstream failure (OCR, speech-to-text or
// LLM unavailable or rate-limited). Retrying with backoff may succeed.
type TransientError struct {
	Service string // "ocr", "stt", "llm"
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s temporarily unavailable: %v", e.Service, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a TransientError for the named service.
func NewTransient(service string, err error) *TransientError {
	return &TransientError{Service: service, Err: err}
}

// UnsupportedMediaError indicates the input payload is in a format none of
// the normalizer paths can handle. Never retried.
type UnsupportedMediaError struct {
	Kind   string
	Format string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported %s format '%s'", e.Kind, e.Format)
}

// MalformedOutputError indicates the LLM response failed schema validation
// even after the bounded repair attempt. Snippet is truncated raw output for
// operator diagnosis; it is never shown to the user.
type MalformedOutputError struct {
	Reason  string
	Snippet string
}

func (e *MalformedOutputError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("malformed model output: %s", e.Reason)
	}
	return fmt.Sprintf("malformed model output: %s (raw: %q)", e.Reason, e.Snippet)
}

// NewMalformedOutput builds a MalformedOutputError, truncating the raw
// snippet so logs stay bounded.
func NewMalformedOutput(reason, raw string) *MalformedOutputError {
	const maxSnippet = 200
	if len(raw) > maxSnippet {
		raw = raw[:maxSnippet]
	}
	return &MalformedOutputError{Reason: reason, Snippet: raw}
}

// QuotaError indicates the user has no credits left for this feature.
type QuotaError struct {
	UserID string
	Tier   string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("credit quota exhausted for user %s (tier %s)", e.UserID, e.Tier)
}

// IsTransient reports whether err (anywhere in its chain) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsCancelled reports whether err stems from context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
