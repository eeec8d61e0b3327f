// Package credit meters feature usage against per-user credit allotments.
// The free tier gets a one-time allotment; paid tiers reset weekly. All
// balance mutations go through a single atomic consume so concurrent runs
// can never double-spend.
package credit

import (
	"context"
	"time"

	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
)

// weeklyWindow is the reset period of the weekly tiers.
const weeklyWindow = 7 * 24 * time.Hour

// Decision is the outcome of a consume attempt. Remaining is the balance
// after the decision, for denied attempts the unchanged balance.
type Decision struct {
	Granted   bool
	Remaining int
}

// Policy is the provisioning rule for one tier, resolved by the meter and
// executed by the store.
type Policy struct {
	Tier      models.Tier
	Allotment int
	Window    models.WindowKind
}

// LedgerStore persists per-user credit state. Consume must apply the window
// reset, the balance check and the decrement as one atomic step; two
// concurrent calls against a balance of one must grant exactly once.
type LedgerStore interface {
	Consume(ctx context.Context, userID string, policy Policy, cost int, now time.Time) (Decision, error)
	// Entries returns a snapshot of every ledger entry, for inspection and
	// export.
	Entries(ctx context.Context) ([]models.CreditLedgerEntry, error)
}

// Allotments configures the credit grant per tier.
type Allotments struct {
	// Free is the one-time allotment of the free tier. It never resets.
	Free int
	// ProWeekly and EliteWeekly reset every week.
	ProWeekly   int
	EliteWeekly int
}

// Meter applies tier policy on top of a ledger store.
type Meter struct {
	store LedgerStore
	allot Allotments
	log   logging.Logger

	// now is swapped in tests to drive window resets.
	now func() time.Time
}

// NewMeter creates a Meter over the given store.
func NewMeter(store LedgerStore, allot Allotments, log logging.Logger) *Meter {
	return &Meter{store: store, allot: allot, log: log, now: time.Now}
}

// policy resolves the provisioning rule for a tier.
func (m *Meter) policy(tier models.Tier) Policy {
	switch tier {
	case models.TierPro:
		return Policy{Tier: models.TierPro, Allotment: m.allot.ProWeekly, Window: models.WindowWeekly}
	case models.TierElite:
		return Policy{Tier: models.TierElite, Allotment: m.allot.EliteWeekly, Window: models.WindowWeekly}
	}
	return Policy{Tier: models.TierFree, Allotment: m.allot.Free, Window: models.WindowOneTime}
}

// Consume attempts to spend cost credits for the user. First contact
// provisions the tier's full allotment. A denied decision leaves the balance
// untouched.
func (m *Meter) Consume(ctx context.Context, userID string, tier models.Tier, cost int) (Decision, error) {
	decision, err := m.store.Consume(ctx, userID, m.policy(tier), cost, m.now())
	if err != nil {
		return Decision{}, err
	}

	m.log.WithFields(
		logging.Field{Key: logging.FieldUserID, Value: userID},
		logging.Field{Key: logging.FieldTier, Value: string(tier)},
		logging.Field{Key: logging.FieldRemaining, Value: decision.Remaining},
	).Debug("Credit decision made")
	return decision, nil
}

// Entries returns a snapshot of the ledger.
func (m *Meter) Entries(ctx context.Context) ([]models.CreditLedgerEntry, error) {
	return m.store.Entries(ctx)
}
