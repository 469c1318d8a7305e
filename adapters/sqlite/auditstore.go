package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/quotagate/domain/audit"
	"github.com/artpar/quotagate/ports"
)

// AuditStore implements ports.AuditStore using SQLite.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates a new SQLite audit store.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append stores one audit record.
func (s *AuditStore) Append(ctx context.Context, r audit.Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, account_id, secret_key, endpoint, subject, ts, remote_ip, user_agent, status_code, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.AccountID, r.SecretKey, r.Endpoint, r.Subject, r.Timestamp.UnixNano(),
		r.RemoteIP, r.UserAgent, r.StatusCode, r.LatencyMs)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// DailyCount counts records with timestamps in [start, end].
func (s *AuditStore) DailyCount(ctx context.Context, accountID string, start, end time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_log WHERE account_id = ? AND ts >= ? AND ts <= ?
	`, accountID, start.UnixNano(), end.UnixNano()).Scan(&n)
	return n, err
}

// TotalCount counts all records for the account.
func (s *AuditStore) TotalCount(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

// TopSubjects returns the n most requested subjects.
func (s *AuditStore) TopSubjects(ctx context.Context, accountID string, n int) ([]audit.SubjectCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, COUNT(*) AS c
		FROM audit_log
		WHERE account_id = ? AND subject != ''
		GROUP BY subject
		ORDER BY c DESC, subject ASC
		LIMIT ?
	`, accountID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.SubjectCount
	for rows.Next() {
		var sc audit.SubjectCount
		if err := rows.Scan(&sc.Subject, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Recent returns the newest records, newest first.
func (s *AuditStore) Recent(ctx context.Context, accountID string, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, secret_key, endpoint, subject, ts, remote_ip, user_agent, status_code, latency_ms
		FROM audit_log
		WHERE account_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var r audit.Record
		var ts int64
		if err := rows.Scan(&r.ID, &r.AccountID, &r.SecretKey, &r.Endpoint, &r.Subject, &ts,
			&r.RemoteIP, &r.UserAgent, &r.StatusCode, &r.LatencyMs); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.AuditStore = (*AuditStore)(nil)
