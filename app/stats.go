package app

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/audit"
	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/domain/plan"
	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
)

// DefaultTopSubjects is how many subjects AccountStats reports.
const DefaultTopSubjects = 5

// StatsService reports per-account usage.
type StatsService struct {
	quota *QuotaEnforcer
	audit ports.AuditStore
	plans *plan.Registry
	clock ports.Clock
}

// StatsDeps contains dependencies for StatsService.
type StatsDeps struct {
	Quota *QuotaEnforcer
	Audit ports.AuditStore
	Plans *plan.Registry
	Clock ports.Clock
}

// NewStatsService creates a new stats service.
func NewStatsService(deps StatsDeps) *StatsService {
	return &StatsService{
		quota: deps.Quota,
		audit: deps.Audit,
		plans: deps.Plans,
		clock: deps.Clock,
	}
}

// AccountStats is a usage summary for one account.
type AccountStats struct {
	AccountID     string
	Plan          plan.Plan
	Day           string
	UsedToday     int64 // admitted today, from the ledger
	Remaining     int64 // -1 when unlimited
	AuditedToday  int64 // audit records today, any outcome
	TotalRequests int64 // audit records ever
	TopSubjects   []audit.SubjectCount
	LastSeenAt    time.Time
}

// Unlimited reports whether the account's plan has no daily quota.
func (s AccountStats) Unlimited() bool {
	return s.Plan.IsUnlimited()
}

// AccountStats builds the usage summary for acct.
func (s *StatsService) AccountStats(ctx context.Context, acct account.Account) (AccountStats, error) {
	now := s.clock.Now()
	loc := s.quota.Location()
	p := s.plans.Resolve(acct.PlanID)

	used, err := s.quota.UsedToday(ctx, acct.ID)
	if err != nil {
		return AccountStats{}, err
	}

	start, end := quota.DayBounds(now, loc)
	today, err := s.audit.DailyCount(ctx, acct.ID, start, end)
	if err != nil {
		return AccountStats{}, gate.StorageUnavailable(fmt.Errorf("daily audit count: %w", err))
	}
	total, err := s.audit.TotalCount(ctx, acct.ID)
	if err != nil {
		return AccountStats{}, gate.StorageUnavailable(fmt.Errorf("total audit count: %w", err))
	}
	top, err := s.audit.TopSubjects(ctx, acct.ID, DefaultTopSubjects)
	if err != nil {
		return AccountStats{}, gate.StorageUnavailable(fmt.Errorf("top subjects: %w", err))
	}

	return AccountStats{
		AccountID:     acct.ID,
		Plan:          p,
		Day:           quota.Day(now, loc),
		UsedToday:     used,
		Remaining:     quota.Remaining(used, p.RequestsPerDay),
		AuditedToday:  today,
		TotalRequests: total,
		TopSubjects:   top,
		LastSeenAt:    acct.LastSeenAt,
	}, nil
}

// DefaultRecentRequests is how many records RecentRequests returns when no
// limit is given.
const DefaultRecentRequests = 20

// RecentRequests is the newest audit records for one account and a digest
// of them.
type RecentRequests struct {
	Records []audit.Record
	Summary audit.Summary
}

// RecentRequests returns up to limit of acct's newest audit records.
func (s *StatsService) RecentRequests(ctx context.Context, acct account.Account, limit int) (RecentRequests, error) {
	if limit <= 0 {
		limit = DefaultRecentRequests
	}
	records, err := s.audit.Recent(ctx, acct.ID, limit)
	if err != nil {
		return RecentRequests{}, gate.StorageUnavailable(fmt.Errorf("recent requests: %w", err))
	}

	start, end := quota.DayBounds(s.clock.Now(), s.quota.Location())
	summary := audit.Summarize(records, start, end)
	summary.AccountID = acct.ID

	return RecentRequests{Records: records, Summary: summary}, nil
}
