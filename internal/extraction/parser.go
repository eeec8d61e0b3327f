package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finot/ingest/internal/dateutils"
	"finot/ingest/internal/models"
	"finot/ingest/internal/store"
)

// rawTransaction mirrors one entry of the model's JSON output. Pointer fields
// distinguish a missing key from a zero value so schema checks can tell them
// apart.
type rawTransaction struct {
	Intent     *string         `json:"intent"`
	Amount     json.RawMessage `json:"amount"`
	Currency   *string         `json:"currency"`
	Category   *string         `json:"category"`
	Merchant   *string         `json:"merchant"`
	Date       *string         `json:"date"`
	Note       *string         `json:"note"`
	Confidence *float64        `json:"confidence"`
}

// rawEnvelope is the top-level object the prompt asks for.
type rawEnvelope struct {
	Transactions []rawTransaction `json:"transactions"`
}

// confidenceUnreported marks a response that carried no confidence field; the
// client substitutes the configured default.
const confidenceUnreported = -1

// extractJSONBlock returns the first balanced JSON object in text. Models
// wrap their output in prose or markdown fences often enough that decoding
// the raw response directly is not an option.
func extractJSONBlock(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// parseResponse validates the model output against the schema and converts
// the first candidate into a ParsedTransaction. Responses with several
// candidates keep only the first and flag the result. The returned error
// describes the schema violation and doubles as the repair prompt problem.
func parseResponse(raw string, catalog *store.Catalog, now time.Time) (models.ParsedTransaction, []string, error) {
	block, err := extractJSONBlock(raw)
	if err != nil {
		return models.ParsedTransaction{}, nil, err
	}

	var envelope rawEnvelope
	if err := json.Unmarshal([]byte(block), &envelope); err != nil {
		return models.ParsedTransaction{}, nil, fmt.Errorf("response is not valid JSON: %v", err)
	}

	entries := envelope.Transactions
	if len(entries) == 0 {
		// Some responses skip the envelope and emit a bare transaction.
		var single rawTransaction
		if err := json.Unmarshal([]byte(block), &single); err == nil && len(single.Amount) > 0 {
			entries = []rawTransaction{single}
		}
	}
	if len(entries) == 0 {
		return models.ParsedTransaction{}, nil, fmt.Errorf("transactions list is empty")
	}

	var warnings []string
	if len(entries) > 1 {
		warnings = append(warnings, models.WarningMultipleCandidates)
	}

	tx, err := convertEntry(entries[0], catalog, now)
	if err != nil {
		return models.ParsedTransaction{}, nil, err
	}
	return tx, warnings, nil
}

// convertEntry checks one raw entry against the schema and builds the typed
// transaction.
func convertEntry(entry rawTransaction, catalog *store.Catalog, now time.Time) (models.ParsedTransaction, error) {
	if entry.Intent == nil {
		return models.ParsedTransaction{}, fmt.Errorf("missing required field 'intent'")
	}
	direction, ok := models.NormalizeDirection(strings.ToLower(strings.TrimSpace(*entry.Intent)))
	if !ok {
		return models.ParsedTransaction{}, fmt.Errorf("'intent' must be 'income' or 'expense', got %q", *entry.Intent)
	}

	if len(entry.Amount) == 0 || string(entry.Amount) == "null" {
		return models.ParsedTransaction{}, fmt.Errorf("missing required field 'amount'")
	}
	amount, err := decodeAmount(entry.Amount)
	if err != nil {
		return models.ParsedTransaction{}, err
	}

	if entry.Currency == nil || strings.TrimSpace(*entry.Currency) == "" {
		return models.ParsedTransaction{}, fmt.Errorf("missing required field 'currency'")
	}
	currency := strings.ToUpper(strings.TrimSpace(*entry.Currency))

	if entry.Category == nil || strings.TrimSpace(*entry.Category) == "" {
		return models.ParsedTransaction{}, fmt.Errorf("missing required field 'category'")
	}
	category, resolved := catalog.Normalize(*entry.Category)
	if !resolved {
		return models.ParsedTransaction{}, fmt.Errorf(
			"'category' %q is not in the allowed set", *entry.Category)
	}

	tx := models.ParsedTransaction{
		Amount:     amount,
		Currency:   currency,
		Category:   category,
		Direction:  direction,
		Confidence: confidenceUnreported,
	}
	if entry.Merchant != nil {
		tx.Merchant = strings.TrimSpace(*entry.Merchant)
	}
	if entry.Note != nil {
		tx.Note = strings.TrimSpace(*entry.Note)
	}
	if entry.Confidence != nil {
		tx.Confidence = clampConfidence(*entry.Confidence)
	}
	if entry.Date != nil {
		// Unparseable dates are dropped, not repaired; the validator treats
		// a nil date as "today".
		if parsed, err := dateutils.ParseDate(*entry.Date, now); err == nil {
			tx.OccurredAt = &parsed
		}
	}
	return tx, nil
}

// decodeAmount accepts the amount either as a JSON number or as a string,
// running strings through the shorthand-aware parser so "25rb" survives a
// model that ignores the expansion rule.
func decodeAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		amount, perr := models.ParseAmount(s)
		if perr != nil {
			return decimal.Zero, fmt.Errorf("'amount' %q is not numeric", s)
		}
		return amount, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if amount, perr := decimal.NewFromString(n.String()); perr == nil {
			return amount, nil
		}
	}
	return decimal.Zero, fmt.Errorf("'amount' must be a number, got %s", string(raw))
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
