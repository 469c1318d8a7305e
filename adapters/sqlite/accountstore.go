package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/ports"
)

// AccountStore implements ports.AccountStore using SQLite.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new SQLite account store.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, name, email, plan_id, secret_key, created_at, last_seen_at`

// Create stores a new account.
func (s *AccountStore) Create(ctx context.Context, a account.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, plan_id, secret_key, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.Email, a.PlanID, a.SecretKey, a.CreatedAt.UTC(), nullTimeValue(a.LastSeenAt))

	if isUniqueConstraintError(err) {
		return uniqueViolation(err)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetByKey retrieves an account by secret key.
func (s *AccountStore) GetByKey(ctx context.Context, secretKey string) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE secret_key = ?`, secretKey)
	return scanAccount(row)
}

// GetByEmail retrieves an account by contact address.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.ToLower(email))
	return scanAccount(row)
}

// List returns accounts with pagination, oldest first.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]account.Account, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Count returns total account count.
func (s *AccountStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	return count, err
}

// TouchLastSeen updates the last-seen timestamp.
func (s *AccountStore) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, `UPDATE accounts SET last_seen_at = ? WHERE id = ?`, at.UTC(), id)
}

// UpdateKey replaces the secret key.
func (s *AccountStore) UpdateKey(ctx context.Context, id, secretKey string) error {
	err := s.update(ctx, `UPDATE accounts SET secret_key = ? WHERE id = ?`, secretKey, id)
	if isUniqueConstraintError(err) {
		return ports.ErrDuplicateKey
	}
	return err
}

// UpdatePlan replaces the plan identifier.
func (s *AccountStore) UpdatePlan(ctx context.Context, id, planID string) error {
	return s.update(ctx, `UPDATE accounts SET plan_id = ? WHERE id = ?`, planID, id)
}

func (s *AccountStore) update(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (account.Account, error) {
	var a account.Account
	var lastSeen sql.NullTime

	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PlanID, &a.SecretKey, &a.CreatedAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, ports.ErrNotFound
	}
	if err != nil {
		return account.Account{}, err
	}

	if lastSeen.Valid {
		a.LastSeenAt = lastSeen.Time
	}
	return a, nil
}

// uniqueViolation maps a UNIQUE failure to the matching sentinel.
func uniqueViolation(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "accounts.email"):
		return ports.ErrDuplicateContact
	case strings.Contains(msg, "accounts.secret_key"):
		return ports.ErrDuplicateKey
	default:
		return fmt.Errorf("unique constraint: %w", err)
	}
}

func nullTimeValue(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Ensure interface compliance.
var _ ports.AccountStore = (*AccountStore)(nil)
