// Package intent decides what a normalized message is asking for. Fast
// deterministic heuristics handle the clear cases; a single constrained LLM
// call resolves the rest.
package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"finot/ingest/internal/llm"
	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
)

// commandPrefixes are dispatched outside the pipeline.
var commandPrefixes = []string{
	"/start", "/help", "/export", "/upgrade", "/status", "/cancel",
}

// currencyMarkers strongly suggest a transaction when near a number.
var currencyMarkers = []string{"rp", "idr", "$", "usd"}

// moneyToken matches a number with optional Indonesian shorthand suffix
// ("25rb", "5jt", "15k", "25.000").
var moneyToken = regexp.MustCompile(`\b\d[\d.,]*(rb|ribu|jt|juta|k)?\b`)

// shorthandToken matches a number immediately followed by a shorthand unit.
var shorthandToken = regexp.MustCompile(`\b\d[\d.,]*(rb|ribu|jt|juta|k)\b`)

// transactionVerbs are spending/earning words common in Indonesian entries.
var transactionVerbs = []string{
	"beli", "bayar", "belanja", "gajian", "gaji", "transfer", "topup",
	"top up", "jajan", "nabung", "terima", "dapat",
}

// smallTalk are greetings and acknowledgements with nothing to record.
var smallTalk = []string{
	"hai", "halo", "hi", "hello", "makasih", "terima kasih", "thanks",
	"ok", "oke", "sip", "mantap", "p",
}

// Classifier labels normalized text with an intent.
type Classifier struct {
	client llm.Client
	log    logging.Logger
}

// New creates a Classifier. client may be nil; heuristically inconclusive
// inputs are then labeled Ambiguous instead of asking the model.
func New(client llm.Client, log logging.Logger) *Classifier {
	return &Classifier{client: client, log: log}
}

// Classify labels the text. It never returns an error: when both heuristics
// and the model are unsure the label is Ambiguous, which routes to
// extraction with a lower-confidence mark.
func (c *Classifier) Classify(ctx context.Context, text models.NormalizedText) models.Intent {
	label, decided := classifyHeuristically(text.Text)
	if decided {
		c.log.WithFields(
			logging.Field{Key: logging.FieldIntent, Value: string(label)},
		).Debug("Intent decided heuristically")
		return label
	}

	if c.client == nil {
		return models.IntentAmbiguous
	}

	label = c.classifyWithModel(ctx, text.Text)
	c.log.WithFields(
		logging.Field{Key: logging.FieldIntent, Value: string(label)},
	).Debug("Intent decided by model")
	return label
}

// classifyHeuristically applies the deterministic rules. The second return
// value is false when no rule fires decisively.
func classifyHeuristically(text string) (models.Intent, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return models.IntentNoise, true
	}

	for _, prefix := range commandPrefixes {
		if strings.HasPrefix(s, prefix) {
			return models.IntentCommand, true
		}
	}
	if strings.HasPrefix(s, "/") {
		// Unknown slash command still belongs to the dispatcher.
		return models.IntentCommand, true
	}

	hasNumber := moneyToken.MatchString(s)
	if hasNumber {
		if shorthandToken.MatchString(s) {
			return models.IntentTransaction, true
		}
		for _, marker := range currencyMarkers {
			if strings.Contains(s, marker) {
				return models.IntentTransaction, true
			}
		}
		for _, verb := range transactionVerbs {
			if strings.Contains(s, verb) {
				return models.IntentTransaction, true
			}
		}
		// A bare number could be a reply to a prompt; stay undecided.
		return "", false
	}

	for _, phrase := range smallTalk {
		if s == phrase {
			return models.IntentNoise, true
		}
	}

	for _, verb := range transactionVerbs {
		if strings.Contains(s, verb) {
			// Transaction wording without an amount; let the model look.
			return "", false
		}
	}

	return "", false
}

// classificationPrompt constrains the model to exactly one of four labels.
const classificationPrompt = `Classify the user message into exactly one label.

Labels:
- transaction: the user is recording money spent or received
- command: the user is issuing an app command or navigation request
- noise: small talk, greetings, or nothing recordable
- ambiguous: unclear

Reply with only the label, lowercase, no punctuation.

User message: %q`

func (c *Classifier) classifyWithModel(ctx context.Context, text string) models.Intent {
	resp, err := c.client.Complete(ctx, fmt.Sprintf(classificationPrompt, text))
	if err != nil {
		c.log.WithError(err).Warn("Intent model call failed, treating as ambiguous")
		return models.IntentAmbiguous
	}

	switch strings.ToLower(strings.TrimSpace(resp)) {
	case "transaction":
		return models.IntentTransaction
	case "command":
		return models.IntentCommand
	case "noise":
		return models.IntentNoise
	case "ambiguous":
		return models.IntentAmbiguous
	}
	c.log.WithField(logging.FieldIntent, resp).Warn("Model returned unknown intent label")
	return models.IntentAmbiguous
}
