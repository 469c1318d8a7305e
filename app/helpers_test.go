package app_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/quotagate/adapters/clock"
	"github.com/artpar/quotagate/adapters/idgen"
	"github.com/artpar/quotagate/adapters/memory"
	"github.com/artpar/quotagate/adapters/random"
	"github.com/artpar/quotagate/app"
	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/audit"
	"github.com/artpar/quotagate/domain/plan"
	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// countingAccounts wraps the memory store, counting calls and optionally
// failing them.
type countingAccounts struct {
	*memory.AccountStore
	calls     atomic.Int64
	lookupErr error
	touchErr  error
}

func (c *countingAccounts) GetByKey(ctx context.Context, key string) (account.Account, error) {
	c.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	if c.lookupErr != nil {
		return account.Account{}, c.lookupErr
	}
	return c.AccountStore.GetByKey(ctx, key)
}

func (c *countingAccounts) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	c.calls.Add(1)
	if c.touchErr != nil {
		return c.touchErr
	}
	return c.AccountStore.TouchLastSeen(ctx, id, at)
}

// failingLedger fails every call.
type failingLedger struct{ err error }

func (f failingLedger) TryConsume(context.Context, quota.Key, int64) (int64, bool, error) {
	return 0, false, f.err
}
func (f failingLedger) Increment(context.Context, quota.Key) (int64, error) { return 0, f.err }
func (f failingLedger) Count(context.Context, quota.Key) (int64, error)     { return 0, f.err }
func (f failingLedger) Prune(context.Context, string) (int64, error)        { return 0, f.err }

// failingAudit rejects every append.
type failingAudit struct {
	*memory.AuditStore
	err error
}

func (f failingAudit) Append(context.Context, audit.Record) error { return f.err }

type thresholdCall struct {
	AccountID   string
	Used, Limit int64
}

type recordingNotifier struct {
	mu        sync.Mutex
	threshold []thresholdCall
	resets    map[string]string
}

func (n *recordingNotifier) OnThresholdCrossed(_ context.Context, a account.Account, used, limit int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.threshold = append(n.threshold, thresholdCall{a.ID, used, limit})
}

func (n *recordingNotifier) OnKeyReset(_ context.Context, a account.Account, newKey string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resets == nil {
		n.resets = make(map[string]string)
	}
	n.resets[a.ID] = newKey
}

func (n *recordingNotifier) thresholdCalls() []thresholdCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]thresholdCall(nil), n.threshold...)
}

type harness struct {
	clock    *clock.Fake
	accounts *countingAccounts
	ledger   ports.UsageLedger
	audit    ports.AuditStore
	records  *memory.AuditStore
	plans    *plan.Registry
	notifier *recordingNotifier

	auth    *app.Authenticator
	quota   *app.QuotaEnforcer
	gate    *app.Gate
	service *app.AccountService
	stats   *app.StatsService
}

type harnessOption func(*harness)

func withLedger(l ports.UsageLedger) harnessOption {
	return func(h *harness) { h.ledger = l }
}

func withAudit(a ports.AuditStore) harnessOption {
	return func(h *harness) { h.audit = a }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	plans, err := plan.NewRegistry(append(plan.Defaults(), plan.Plan{
		ID:             "tiny",
		Name:           "Tiny",
		RequestsPerDay: 0,
		Fields:         plan.NewFieldSet(plan.FieldShortTerm),
	}), plan.DefaultID)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	records := memory.NewAuditStore()
	h := &harness{
		clock:    clock.NewFake(testNow),
		accounts: &countingAccounts{AccountStore: memory.NewAccountStore()},
		ledger:   memory.NewLedger(4),
		audit:    records,
		records:  records,
		plans:    plans,
		notifier: &recordingNotifier{},
	}
	for _, opt := range opts {
		opt(h)
	}

	logger := zerolog.Nop()
	h.auth = app.NewAuthenticator(app.AuthenticatorDeps{
		Accounts: h.accounts,
		Clock:    h.clock,
		Logger:   logger,
	})
	h.quota = app.NewQuotaEnforcer(app.QuotaDeps{
		Ledger:   h.ledger,
		Plans:    plans,
		Notifier: h.notifier,
		Clock:    h.clock,
		Logger:   logger,
	}, app.QuotaConfig{WarningThreshold: quota.DefaultWarningThreshold})
	h.gate = app.NewGate(app.GateDeps{
		Authenticator: h.auth,
		Quota:         h.quota,
		Audit:         h.audit,
		IDGen:         idgen.NewSequential("req_"),
		Clock:         h.clock,
		Logger:        logger,
	}, app.GateConfig{})
	h.service = app.NewAccountService(app.AccountDeps{
		Accounts: h.accounts,
		Plans:    plans,
		Random:   random.NewFake(),
		IDGen:    idgen.NewSequential("acct_"),
		Clock:    h.clock,
		Notifier: h.notifier,
		Logger:   logger,
	})
	h.stats = app.NewStatsService(app.StatsDeps{
		Quota: h.quota,
		Audit: h.audit,
		Plans: plans,
		Clock: h.clock,
	})
	return h
}

func (h *harness) createAccount(t *testing.T, email, planID string) account.Account {
	t.Helper()
	acct, err := h.service.Create(context.Background(), account.CreateParams{
		Name:   "Test User",
		Email:  email,
		PlanID: planID,
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", email, err)
	}
	return acct
}

// consumePrior records n admissions for today.
func (h *harness) consumePrior(t *testing.T, accountID string, n int) {
	t.Helper()
	key := quota.KeyFor(accountID, h.clock.Now(), time.UTC)
	for i := 0; i < n; i++ {
		if _, err := h.ledger.Increment(context.Background(), key); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
}

func staticProducer(body map[string]any) ports.PayloadProducer {
	return ports.PayloadProducerFunc(func(ctx context.Context, req ports.PayloadRequest) (map[string]any, error) {
		out := map[string]any{"symbol": req.Subject}
		for k, v := range body {
			out[k] = v
		}
		return out, nil
	})
}
