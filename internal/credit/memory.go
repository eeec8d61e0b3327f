package credit

import (
	"context"
	"sort"
	"sync"
	"time"

	"finot/ingest/internal/models"
)

// MemoryStore is an in-process LedgerStore. State is lost on restart; it
// backs tests and single-node deployments that accept ephemeral balances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.CreditLedgerEntry
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*models.CreditLedgerEntry)}
}

// Consume implements LedgerStore. The mutex makes the provision-reset-check-
// decrement sequence a single critical section.
func (s *MemoryStore) Consume(ctx context.Context, userID string, policy Policy, cost int, now time.Time) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok || entry.Tier != policy.Tier {
		// First contact, or a tier change: provision the full allotment.
		entry = &models.CreditLedgerEntry{
			UserID:      userID,
			Tier:        policy.Tier,
			Remaining:   policy.Allotment,
			WindowStart: now,
			WindowKind:  policy.Window,
		}
		s.entries[userID] = entry
	}

	if entry.WindowKind == models.WindowWeekly && now.Sub(entry.WindowStart) >= weeklyWindow {
		entry.Remaining = policy.Allotment
		entry.WindowStart = now
	}

	if entry.Remaining < cost {
		return Decision{Granted: false, Remaining: entry.Remaining}, nil
	}
	entry.Remaining -= cost
	return Decision{Granted: true, Remaining: entry.Remaining}, nil
}

// Entries implements LedgerStore, returning entries sorted by user id.
func (s *MemoryStore) Entries(ctx context.Context) ([]models.CreditLedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CreditLedgerEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
