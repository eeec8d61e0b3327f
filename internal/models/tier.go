package models

import "time"

// Tier is a subscription level controlling credit allotment.
type Tier string

const (
	// TierFree gets a one-time, non-resetting credit allotment.
	TierFree Tier = "free"
	// TierPro gets a weekly resetting allotment.
	TierPro Tier = "pro"
	// TierElite gets a larger weekly resetting allotment.
	TierElite Tier = "elite"
)

// ParseTier maps a stored tier string onto a Tier, defaulting to free for
// anything unrecognized.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierPro:
		return TierPro
	case TierElite:
		return TierElite
	}
	return TierFree
}

// WindowKind describes how a credit window behaves over time.
type WindowKind string

const (
	// WindowOneTime never resets; once the allotment is spent it stays spent.
	WindowOneTime WindowKind = "one_time"
	// WindowWeekly resets the allotment every seven days.
	WindowWeekly WindowKind = "weekly"
)

// CreditLedgerEntry is the per-user credit state. It is owned exclusively by
// the credit meter and mutated only through its atomic consume operation.
type CreditLedgerEntry struct {
	UserID      string     `csv:"user_id"`
	Tier        Tier       `csv:"tier"`
	Remaining   int        `csv:"remaining"`
	WindowStart time.Time  `csv:"window_start"`
	WindowKind  WindowKind `csv:"window_kind"`
}
