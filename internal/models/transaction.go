package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction distinguishes money coming in from money going out.
type Direction string

const (
	// DirectionIncome is money received (gaji, transfer masuk).
	DirectionIncome Direction = "income"
	// DirectionExpense is money spent.
	DirectionExpense Direction = "expense"
)

// NormalizeDirection maps the model's direction wording (English or
// Indonesian) onto a Direction. The second return value is false when the
// value is unrecognized.
func NormalizeDirection(value string) (Direction, bool) {
	switch value {
	case "income", "pemasukan", "masuk":
		return DirectionIncome, true
	case "expense", "pengeluaran", "keluar":
		return DirectionExpense, true
	}
	return "", false
}

// ParsedTransaction is a candidate transaction produced by the extraction
// client. Amount is the only mandatory field; everything else may be missing
// and is reconciled by the sanity validator.
type ParsedTransaction struct {
	Amount     decimal.Decimal
	Currency   string
	Category   string
	Direction  Direction
	Merchant   string     // optional
	OccurredAt *time.Time // optional; nil when the model gave no usable date
	Note       string
	RawQuote   string // the normalized text the extraction was based on

	// Confidence is the model's self-reported certainty in [0,1], or the
	// configured default when the model did not report one.
	Confidence float64
}
