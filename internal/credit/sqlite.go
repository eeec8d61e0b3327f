package credit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"finot/ingest/internal/models"
)

// timeLayout is RFC3339 at second precision in UTC. Fixed width, so the
// SQL window-start comparison can stay a plain string compare.
const timeLayout = "2006-01-02T15:04:05Z"

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS credit_ledger (
	user_id      TEXT PRIMARY KEY,
	tier         TEXT NOT NULL,
	remaining    INTEGER NOT NULL,
	window_start TEXT NOT NULL,
	window_kind  TEXT NOT NULL
);`

// SQLiteStore is a durable LedgerStore backed by a single SQLite file.
// Balances survive restarts; the consume sequence runs inside one immediate
// transaction so concurrent spends serialize at the database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the ledger database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open credit ledger %s: %w", path, err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize credit ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Consume implements LedgerStore. Provisioning, window reset and the
// conditional decrement run in one transaction; the decrement's WHERE clause
// carries the balance check so a depleted balance can never go negative.
func (s *SQLiteStore) Consume(ctx context.Context, userID string, policy Policy, cost int, now time.Time) (Decision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("begin consume: %w", err)
	}
	defer tx.Rollback()

	nowStr := now.UTC().Format(timeLayout)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credit_ledger (user_id, tier, remaining, window_start, window_kind)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, policy.Tier, policy.Allotment, nowStr, policy.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("provision ledger entry: %w", err)
	}

	// Tier change: re-provision under the new policy.
	_, err = tx.ExecContext(ctx,
		`UPDATE credit_ledger SET tier = ?, remaining = ?, window_start = ?, window_kind = ?
		 WHERE user_id = ? AND tier <> ?`,
		policy.Tier, policy.Allotment, nowStr, policy.Window, userID, policy.Tier)
	if err != nil {
		return Decision{}, fmt.Errorf("reprovision ledger entry: %w", err)
	}

	if policy.Window == models.WindowWeekly {
		cutoff := now.Add(-weeklyWindow).UTC().Format(timeLayout)
		_, err = tx.ExecContext(ctx,
			`UPDATE credit_ledger SET remaining = ?, window_start = ?
			 WHERE user_id = ? AND window_kind = ? AND window_start <= ?`,
			policy.Allotment, nowStr, userID, models.WindowWeekly, cutoff)
		if err != nil {
			return Decision{}, fmt.Errorf("reset credit window: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE credit_ledger SET remaining = remaining - ?
		 WHERE user_id = ? AND remaining >= ?`,
		cost, userID, cost)
	if err != nil {
		return Decision{}, fmt.Errorf("decrement credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Decision{}, fmt.Errorf("decrement credits: %w", err)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx,
		`SELECT remaining FROM credit_ledger WHERE user_id = ?`, userID).Scan(&remaining); err != nil {
		return Decision{}, fmt.Errorf("read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Decision{}, fmt.Errorf("commit consume: %w", err)
	}
	return Decision{Granted: affected > 0, Remaining: remaining}, nil
}

// Entries implements LedgerStore.
func (s *SQLiteStore) Entries(ctx context.Context) ([]models.CreditLedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, tier, remaining, window_start, window_kind
		 FROM credit_ledger ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.CreditLedgerEntry
	for rows.Next() {
		var entry models.CreditLedgerEntry
		var tier, windowStart, windowKind string
		if err := rows.Scan(&entry.UserID, &tier, &entry.Remaining, &windowStart, &windowKind); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.Tier = models.Tier(tier)
		entry.WindowKind = models.WindowKind(windowKind)
		start, err := time.Parse(timeLayout, windowStart)
		if err != nil {
			return nil, fmt.Errorf("parse window start %q: %w", windowStart, err)
		}
		entry.WindowStart = start
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
