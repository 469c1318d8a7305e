package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
)

// Ledger implements ports.UsageLedger using SQLite.
// Check-and-increment is a single conditional upsert, so it is atomic per
// (account, day) without an explicit transaction.
type Ledger struct {
	db    *DB
	clock ports.Clock
}

// NewLedger creates a new SQLite usage ledger stamping updates with clk.
func NewLedger(db *DB, clk ports.Clock) *Ledger {
	return &Ledger{db: db, clock: clk}
}

// TryConsume admits one request when the counter is below limit.
func (l *Ledger) TryConsume(ctx context.Context, key quota.Key, limit int64) (int64, bool, error) {
	if limit < 0 {
		used, err := l.Increment(ctx, key)
		return used, err == nil, err
	}
	if limit == 0 {
		used, err := l.Count(ctx, key)
		return used, false, err
	}

	var used int64
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO usage_counters (account_id, day, count, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(account_id, day) DO UPDATE
			SET count = usage_counters.count + 1, updated_at = excluded.updated_at
			WHERE usage_counters.count < ?
		RETURNING count
	`, key.AccountID, key.Day, l.clock.Now().UTC(), limit).Scan(&used)

	if errors.Is(err, sql.ErrNoRows) {
		// The conditional update matched nothing: the counter is at limit.
		used, err = l.Count(ctx, key)
		return used, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("consume quota: %w", err)
	}
	return used, true, nil
}

// Increment adds one unconditionally.
func (l *Ledger) Increment(ctx context.Context, key quota.Key) (int64, error) {
	var used int64
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO usage_counters (account_id, day, count, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(account_id, day) DO UPDATE
			SET count = usage_counters.count + 1, updated_at = excluded.updated_at
		RETURNING count
	`, key.AccountID, key.Day, l.clock.Now().UTC()).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return used, nil
}

// Count returns the current counter value.
func (l *Ledger) Count(ctx context.Context, key quota.Key) (int64, error) {
	var used int64
	err := l.db.QueryRowContext(ctx, `
		SELECT count FROM usage_counters WHERE account_id = ? AND day = ?
	`, key.AccountID, key.Day).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return used, nil
}

// Prune removes counters older than beforeDay.
func (l *Ledger) Prune(ctx context.Context, beforeDay string) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM usage_counters WHERE day < ?`, beforeDay)
	if err != nil {
		return 0, fmt.Errorf("prune usage: %w", err)
	}
	return result.RowsAffected()
}

// Ensure interface compliance.
var _ ports.UsageLedger = (*Ledger)(nil)
