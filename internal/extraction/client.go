// Package extraction turns normalized text into a structured transaction
// candidate via an LLM call. The model output is held to a strict JSON
// schema; one bounded repair re-prompt corrects schema violations before the
// run is declared malformed.
package extraction

import (
	"context"
	"time"

	"finot/ingest/internal/ingesterror"
	"finot/ingest/internal/llm"
	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
	"finot/ingest/internal/store"
)

// Options tunes the extraction client.
type Options struct {
	// RepairAttempts bounds the schema-repair re-prompts after a malformed
	// response. Zero disables repair entirely.
	RepairAttempts int
	// DefaultConfidence is substituted when the model reports none.
	DefaultConfidence float64
}

// Client extracts transaction candidates from normalized text.
type Client struct {
	llm     llm.Client
	catalog *store.Catalog
	opts    Options
	log     logging.Logger

	// now is swapped in tests to pin relative-date resolution.
	now func() time.Time
}

// New creates an extraction Client bound to a completion client and a
// category catalog.
func New(client llm.Client, catalog *store.Catalog, opts Options, log logging.Logger) *Client {
	return &Client{
		llm:     client,
		catalog: catalog,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Extract asks the model for a structured transaction and validates the
// response against the schema. Extraction is deterministic for a given model:
// the same text produces the same prompt, so replays yield the same
// candidate. Returned warnings flag responses that carried more than one
// candidate; only the first is kept.
//
// Transient and cancellation errors from the model pass through unchanged so
// the coordinator can apply its retry policy. A response that still violates
// the schema after the configured repair attempts returns a
// MalformedOutputError, which is terminal.
func (c *Client) Extract(ctx context.Context, text models.NormalizedText) (models.ParsedTransaction, []string, error) {
	now := c.now()
	prompt := buildExtractionPrompt(c.catalog.Categories(), text.Text, now)

	response, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		return models.ParsedTransaction{}, nil, err
	}

	tx, warnings, parseErr := parseResponse(response, c.catalog, now)
	for attempt := 1; parseErr != nil && attempt <= c.opts.RepairAttempts; attempt++ {
		c.log.WithFields(
			logging.Field{Key: logging.FieldAttempt, Value: attempt},
			logging.Field{Key: logging.FieldReason, Value: parseErr.Error()},
		).Warn("Model output failed schema validation, requesting repair")

		repair := buildRepairPrompt(c.catalog.Categories(), response, parseErr.Error())
		response, err = c.llm.Complete(ctx, repair)
		if err != nil {
			return models.ParsedTransaction{}, nil, err
		}
		tx, warnings, parseErr = parseResponse(response, c.catalog, now)
	}
	if parseErr != nil {
		return models.ParsedTransaction{}, nil, ingesterror.NewMalformedOutput(parseErr.Error(), response)
	}

	tx.RawQuote = text.Text
	if tx.Confidence == confidenceUnreported {
		tx.Confidence = c.opts.DefaultConfidence
	}

	c.log.WithFields(
		logging.Field{Key: logging.FieldCategory, Value: tx.Category},
		logging.Field{Key: logging.FieldAmount, Value: tx.Amount.String()},
		logging.Field{Key: logging.FieldConfidence, Value: tx.Confidence},
	).Debug("Extraction produced a candidate")
	return tx, warnings, nil
}
