package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artpar/quotagate/domain/audit"
	"github.com/artpar/quotagate/ports"
)

// AuditStore is an in-memory, append-only implementation of ports.AuditStore.
type AuditStore struct {
	mu        sync.RWMutex
	records   []audit.Record
	byAccount map[string][]int // account ID -> indexes into records
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{byAccount: make(map[string][]int)}
}

// Append stores one record.
func (s *AuditStore) Append(ctx context.Context, r audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byAccount[r.AccountID] = append(s.byAccount[r.AccountID], len(s.records))
	s.records = append(s.records, r)
	return nil
}

// DailyCount counts records with timestamps in [start, end].
func (s *AuditStore) DailyCount(ctx context.Context, accountID string, start, end time.Time) (int64, error) {
	var n int64
	for _, r := range s.forAccount(accountID) {
		if !r.Timestamp.Before(start) && !r.Timestamp.After(end) {
			n++
		}
	}
	return n, nil
}

// TotalCount counts all records for the account.
func (s *AuditStore) TotalCount(ctx context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byAccount[accountID])), nil
}

// TopSubjects returns the n most requested subjects.
func (s *AuditStore) TopSubjects(ctx context.Context, accountID string, n int) ([]audit.SubjectCount, error) {
	return audit.TopSubjects(s.forAccount(accountID), n), nil
}

// Recent returns the newest records, newest first.
func (s *AuditStore) Recent(ctx context.Context, accountID string, limit int) ([]audit.Record, error) {
	recs := s.forAccount(accountID)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// All returns a copy of every record in append order (for testing).
func (s *AuditStore) All() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *AuditStore) forAccount(accountID string) []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byAccount[accountID]
	out := make([]audit.Record, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.records[i])
	}
	return out
}

// Ensure interface compliance.
var _ ports.AuditStore = (*AuditStore)(nil)
