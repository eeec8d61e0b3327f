// Package validation applies deterministic sanity rules to extracted
// transaction candidates. No model calls happen here: every rule is a pure
// check so the same candidate always yields the same outcome.
package validation

import (
	"time"

	"github.com/shopspring/decimal"

	"finot/ingest/internal/dateutils"
	"finot/ingest/internal/models"
	"finot/ingest/internal/store"
)

// Options holds the validator bounds.
type Options struct {
	// MaxAmount is the upper bound on a single transaction.
	MaxAmount decimal.Decimal
	// FutureDays is how far ahead a transaction date may lie before it needs
	// confirmation.
	FutureDays int
	// RetentionDays is how far back a transaction date may lie before it
	// needs confirmation.
	RetentionDays int
	// ConfidenceFloor is the effective confidence below which an otherwise
	// valid candidate is downgraded to needs-confirmation.
	ConfidenceFloor float64
}

// warningPenalty is subtracted from the candidate confidence for every
// normalization warning attached to the source text.
const warningPenalty = 0.05

// Validator runs the sanity rules against a catalog of allowed categories.
type Validator struct {
	catalog *store.Catalog
	opts    Options

	// now is swapped in tests to pin the date-window checks.
	now func() time.Time
}

// New creates a Validator.
func New(catalog *store.Catalog, opts Options) *Validator {
	return &Validator{catalog: catalog, opts: opts, now: time.Now}
}

// Validate checks one candidate. warnings are the flags collected upstream
// (normalization and extraction); each one lowers the effective confidence.
//
// Hard rules reject: a missing, zero or negative amount, or an amount above
// the configured maximum. Soft rules downgrade to needs-confirmation and
// correct the candidate where possible: an unknown category becomes the
// catch-all, out-of-window dates and low confidence are flagged for the user
// to confirm.
func (v *Validator) Validate(tx models.ParsedTransaction, warnings []string) models.ValidationOutcome {
	if !tx.Amount.IsPositive() {
		return models.ValidationOutcome{
			Status:  models.ValidationRejected,
			Reasons: []string{models.ReasonInvalidAmount},
		}
	}
	if tx.Amount.GreaterThan(v.opts.MaxAmount) {
		return models.ValidationOutcome{
			Status:  models.ValidationRejected,
			Reasons: []string{models.ReasonInvalidAmount},
		}
	}

	var reasons []string

	category, resolved := v.catalog.Normalize(tx.Category)
	tx.Category = category
	if !resolved {
		reasons = append(reasons, models.ReasonUnknownCategory)
	}

	if tx.OccurredAt != nil {
		days := dateutils.DaysBetween(v.now(), *tx.OccurredAt)
		switch {
		case days > v.opts.FutureDays:
			reasons = append(reasons, models.ReasonDateInFuture)
		case -days > v.opts.RetentionDays:
			reasons = append(reasons, models.ReasonDateTooOld)
		}
	}

	tx.Confidence = effectiveConfidence(tx.Confidence, len(warnings))
	if tx.Confidence < v.opts.ConfidenceFloor || hasWarning(warnings, models.WarningLowConfidence) {
		reasons = append(reasons, models.ReasonLowConfidence)
	}

	status := models.ValidationAccepted
	if len(reasons) > 0 {
		status = models.ValidationNeedsConfirmation
	}
	return models.ValidationOutcome{
		Status:      status,
		Transaction: tx,
		Reasons:     reasons,
	}
}

func hasWarning(warnings []string, name string) bool {
	for _, w := range warnings {
		if w == name {
			return true
		}
	}
	return false
}

// effectiveConfidence applies the per-warning penalty, floored at zero.
func effectiveConfidence(confidence float64, warningCount int) float64 {
	effective := confidence - warningPenalty*float64(warningCount)
	if effective < 0 {
		return 0
	}
	return effective
}
