package credit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finot/ingest/internal/logging"
	"finot/ingest/internal/models"
)

var testAllotments = Allotments{Free: 5, ProWeekly: 50, EliteWeekly: 150}

func newTestMeter(store LedgerStore, now time.Time) *Meter {
	m := NewMeter(store, testAllotments, logging.NewMockLogger())
	m.now = func() time.Time { return now }
	return m
}

func TestConsumeProvisionsOnFirstContact(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestMeter(NewMemoryStore(), now)

	decision, err := m.Consume(context.Background(), "user-1", models.TierFree, 1)
	require.NoError(t, err)
	assert.True(t, decision.Granted)
	assert.Equal(t, 4, decision.Remaining)
}

func TestConsumeDeniesWhenDepleted(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestMeter(NewMemoryStore(), now)
	ctx := context.Background()

	for i := 0; i < testAllotments.Free; i++ {
		decision, err := m.Consume(ctx, "user-1", models.TierFree, 1)
		require.NoError(t, err)
		require.True(t, decision.Granted)
	}

	decision, err := m.Consume(ctx, "user-1", models.TierFree, 1)
	require.NoError(t, err)
	assert.False(t, decision.Granted)
	assert.Zero(t, decision.Remaining)
}

func TestConsumeConcurrentGrantsExactlyOnce(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestMeter(NewMemoryStore(), now)
	ctx := context.Background()

	// Spend down to a single remaining credit.
	for i := 0; i < testAllotments.Free-1; i++ {
		decision, err := m.Consume(ctx, "user-1", models.TierFree, 1)
		require.NoError(t, err)
		require.True(t, decision.Granted)
	}

	const attempts = 16
	var wg sync.WaitGroup
	granted := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := m.Consume(ctx, "user-1", models.TierFree, 1)
			assert.NoError(t, err)
			granted <- decision.Granted
		}()
	}
	wg.Wait()
	close(granted)

	grants := 0
	for g := range granted {
		if g {
			grants++
		}
	}
	assert.Equal(t, 1, grants)
}

func TestFreeTierNeverResets(t *testing.T) {
	store := NewMemoryStore()
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	m := newTestMeter(store, start)
	for i := 0; i < testAllotments.Free; i++ {
		_, err := m.Consume(ctx, "user-1", models.TierFree, 1)
		require.NoError(t, err)
	}

	// A year later the one-time allotment is still spent.
	m = newTestMeter(store, start.AddDate(1, 0, 0))
	decision, err := m.Consume(ctx, "user-1", models.TierFree, 1)
	require.NoError(t, err)
	assert.False(t, decision.Granted)
}

func TestWeeklyWindowResets(t *testing.T) {
	store := NewMemoryStore()
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	m := newTestMeter(store, start)
	for i := 0; i < testAllotments.ProWeekly; i++ {
		decision, err := m.Consume(ctx, "user-1", models.TierPro, 1)
		require.NoError(t, err)
		require.True(t, decision.Granted)
	}
	decision, err := m.Consume(ctx, "user-1", models.TierPro, 1)
	require.NoError(t, err)
	require.False(t, decision.Granted)

	// Six days later the window has not turned yet.
	m = newTestMeter(store, start.AddDate(0, 0, 6))
	decision, err = m.Consume(ctx, "user-1", models.TierPro, 1)
	require.NoError(t, err)
	assert.False(t, decision.Granted)

	// Seven days in, the allotment is fresh.
	m = newTestMeter(store, start.AddDate(0, 0, 7))
	decision, err = m.Consume(ctx, "user-1", models.TierPro, 1)
	require.NoError(t, err)
	assert.True(t, decision.Granted)
	assert.Equal(t, testAllotments.ProWeekly-1, decision.Remaining)
}

func TestTierUpgradeReprovisions(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	m := newTestMeter(store, now)

	for i := 0; i < testAllotments.Free; i++ {
		_, err := m.Consume(ctx, "user-1", models.TierFree, 1)
		require.NoError(t, err)
	}

	decision, err := m.Consume(ctx, "user-1", models.TierPro, 1)
	require.NoError(t, err)
	assert.True(t, decision.Granted)
	assert.Equal(t, testAllotments.ProWeekly-1, decision.Remaining)
}

func TestConsumeCostAboveBalance(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestMeter(NewMemoryStore(), now)

	decision, err := m.Consume(context.Background(), "user-1", models.TierFree, testAllotments.Free+1)
	require.NoError(t, err)
	assert.False(t, decision.Granted)
	assert.Equal(t, testAllotments.Free, decision.Remaining)
}

func TestExportCSV(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestMeter(NewMemoryStore(), now)
	ctx := context.Background()

	_, err := m.Consume(ctx, "user-1", models.TierFree, 1)
	require.NoError(t, err)
	_, err = m.Consume(ctx, "user-2", models.TierPro, 1)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, m.ExportCSV(ctx, &buf))

	out := buf.String()
	assert.Contains(t, out, "user_id")
	assert.Contains(t, out, "user-1")
	assert.Contains(t, out, "pro")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}
