package app

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/domain/plan"
	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
)

// QuotaEnforcer admits or rejects requests against the daily plan quota.
type QuotaEnforcer struct {
	ledger   ports.UsageLedger
	plans    *plan.Registry
	notifier ports.Notifier
	clock    ports.Clock
	metrics  ports.Metrics
	logger   zerolog.Logger
	cfg      QuotaConfig

	// background unlimited-plan increments
	wg sync.WaitGroup
}

// QuotaDeps contains dependencies for QuotaEnforcer.
type QuotaDeps struct {
	Ledger   ports.UsageLedger
	Plans    *plan.Registry
	Notifier ports.Notifier // optional
	Clock    ports.Clock
	Metrics  ports.Metrics // optional
	Logger   zerolog.Logger
}

// QuotaConfig contains configuration for QuotaEnforcer.
type QuotaConfig struct {
	// Location defines the calendar day. Defaults to UTC.
	Location *time.Location

	// WarningThreshold is the used/limit ratio at which the notifier is
	// signalled. Zero disables the signal.
	WarningThreshold float64

	// BackgroundTimeout bounds unlimited-plan counter writes. Defaults to 5s.
	BackgroundTimeout time.Duration

	// StorageTimeout bounds the check-and-increment. Defaults to 5s.
	StorageTimeout time.Duration
}

// Decision is the outcome of TryAdmit.
type Decision struct {
	Plan      plan.Plan
	Fields    plan.FieldSet
	Admission quota.Admission
}

// NewQuotaEnforcer creates a new quota enforcer.
func NewQuotaEnforcer(deps QuotaDeps, cfg QuotaConfig) *QuotaEnforcer {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BackgroundTimeout == 0 {
		cfg.BackgroundTimeout = defaultStorageTimeout
	}
	if cfg.StorageTimeout == 0 {
		cfg.StorageTimeout = defaultStorageTimeout
	}
	return &QuotaEnforcer{
		ledger:   deps.Ledger,
		plans:    deps.Plans,
		notifier: notifierOrNop(deps.Notifier),
		clock:    deps.Clock,
		metrics:  metricsOrNop(deps.Metrics),
		logger:   deps.Logger.With().Str("component", "quota").Logger(),
		cfg:      cfg,
	}
}

// Location returns the timezone that defines the calendar day.
func (q *QuotaEnforcer) Location() *time.Location {
	return q.cfg.Location
}

// TryAdmit consumes one unit of today's quota for acct.
//
// The returned Decision always carries the resolved plan and its field set.
// On rejection the error is gate.QuotaExceeded with the limit and the
// current count. Consumed units are never given back.
func (q *QuotaEnforcer) TryAdmit(ctx context.Context, acct account.Account) (Decision, error) {
	// 1. Resolve plan (PURE)
	p := q.plans.Resolve(acct.PlanID)
	d := Decision{Plan: p, Fields: p.Fields}
	key := quota.KeyFor(acct.ID, q.clock.Now(), q.cfg.Location)

	// 2a. Unlimited plans never wait on the ledger
	if p.IsUnlimited() {
		d.Admission = quota.Admission{Admitted: true, Unlimited: true, Limit: plan.Unlimited}
		q.metrics.Admitted(p.ID)
		q.countInBackground(ctx, key)
		return d, nil
	}

	// 2b. Atomic check-and-increment (I/O)
	cctx, cancel := detach(ctx, q.cfg.StorageTimeout)
	used, admitted, err := q.ledger.TryConsume(cctx, key, p.RequestsPerDay)
	cancel()
	if err != nil {
		q.logger.Error().Err(err).Str("account_id", acct.ID).Msg("usage ledger unavailable")
		return d, gate.StorageUnavailable(err)
	}
	d.Admission = quota.Admission{Admitted: admitted, Used: used, Limit: p.RequestsPerDay}

	if !admitted {
		q.metrics.QuotaRejected(p.ID)
		q.logger.Info().
			Str("account_id", acct.ID).
			Str("plan_id", p.ID).
			Int64("used", used).
			Int64("limit", p.RequestsPerDay).
			Msg("daily quota exceeded")
		return d, gate.QuotaExceeded(p.RequestsPerDay, used)
	}
	q.metrics.Admitted(p.ID)

	// 3. Threshold signal (PURE check, fire-and-forget)
	if quota.ThresholdReached(used, p.RequestsPerDay, q.cfg.WarningThreshold) {
		q.notifier.OnThresholdCrossed(ctx, acct, used, p.RequestsPerDay)
	}

	return d, nil
}

// UsedToday returns today's counter for accountID.
func (q *QuotaEnforcer) UsedToday(ctx context.Context, accountID string) (int64, error) {
	key := quota.KeyFor(accountID, q.clock.Now(), q.cfg.Location)
	n, err := q.ledger.Count(ctx, key)
	if err != nil {
		return 0, gate.StorageUnavailable(err)
	}
	return n, nil
}

func (q *QuotaEnforcer) countInBackground(ctx context.Context, key quota.Key) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		bctx, cancel := detach(ctx, q.cfg.BackgroundTimeout)
		defer cancel()
		if _, err := q.ledger.Increment(bctx, key); err != nil {
			q.logger.Warn().Err(err).Str("account_id", key.AccountID).Msg("failed to count unlimited request")
		}
	}()
}

// Wait blocks until background counter writes have finished.
func (q *QuotaEnforcer) Wait() {
	q.wg.Wait()
}
