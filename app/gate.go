package app

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/audit"
	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
)

// Gate runs a gated request through authentication, quota admission, the
// payload producer and the audit log, stopping at the first rejection.
type Gate struct {
	auth    *Authenticator
	quota   *QuotaEnforcer
	audit   ports.AuditStore
	idGen   ports.IDGenerator
	clock   ports.Clock
	metrics ports.Metrics
	logger  zerolog.Logger

	auditTimeout time.Duration
}

// GateDeps contains dependencies for Gate.
type GateDeps struct {
	Authenticator *Authenticator
	Quota         *QuotaEnforcer
	Audit         ports.AuditStore
	IDGen         ports.IDGenerator
	Clock         ports.Clock
	Metrics       ports.Metrics // optional
	Logger        zerolog.Logger
}

// GateConfig contains configuration for Gate.
type GateConfig struct {
	// AuditTimeout bounds the audit write. Defaults to 5s.
	AuditTimeout time.Duration
}

// NewGate creates a new request gate.
func NewGate(deps GateDeps, cfg GateConfig) *Gate {
	if cfg.AuditTimeout == 0 {
		cfg.AuditTimeout = defaultStorageTimeout
	}
	return &Gate{
		auth:         deps.Authenticator,
		quota:        deps.Quota,
		audit:        deps.Audit,
		idGen:        deps.IDGen,
		clock:        deps.Clock,
		metrics:      metricsOrNop(deps.Metrics),
		logger:       deps.Logger.With().Str("component", "gate").Logger(),
		auditTimeout: cfg.AuditTimeout,
	}
}

// Result is the outcome of Handle.
type Result struct {
	// Stage is the last stage the request reached.
	Stage gate.Stage

	// Account is set once the caller is authenticated.
	Account  account.Account
	Decision Decision

	// Body is set on success; Err on failure.
	Body   map[string]any
	Err    *gate.Error
	Status int
}

// Authenticated reports whether the caller was identified.
func (r Result) Authenticated() bool {
	return r.Stage.Audited()
}

// Handle processes one gated request. Every request that gets past
// authentication is audited exactly once, whatever the outcome.
func (g *Gate) Handle(ctx context.Context, req gate.Request, producer ports.PayloadProducer) Result {
	if req.Received.IsZero() {
		req.Received = g.clock.Now()
	}
	res := Result{Stage: gate.StageReceived}

	// 1. Format check and credential lookup
	acct, err := g.auth.Authenticate(ctx, req.RawKey)
	if err != nil {
		ge := gate.As(err)
		if ge.Kind != gate.KindInvalidFormat {
			res.Stage = gate.StageFormatChecked
		}
		return g.reject(res, ge)
	}
	res.Stage = gate.StageAuthenticated
	res.Account = acct

	// 2. Quota admission
	res.Decision, err = g.quota.TryAdmit(ctx, acct)
	if err != nil {
		res = g.reject(res, gate.As(err))
		return g.logged(ctx, req, res)
	}
	res.Stage = gate.StageQuotaChecked

	// 3. Subject validation (PURE)
	subject := req.Subject
	if subject != "" || req.RequireSubject {
		subject, err = account.NormalizeSubject(subject)
		if err != nil {
			res = g.reject(res, subjectError(err))
			return g.logged(ctx, req, res)
		}
		req.Subject = subject
	}

	// 4. Payload (I/O, external)
	body, err := producer.Produce(ctx, ports.PayloadRequest{
		Account: acct,
		Subject: subject,
		Fields:  res.Decision.Fields,
	})
	if err != nil {
		res = g.reject(res, gate.As(err))
		return g.logged(ctx, req, res)
	}
	res.Stage = gate.StageProduced
	res.Body = body
	res.Status = 200

	return g.logged(ctx, req, res)
}

func (g *Gate) reject(res Result, ge *gate.Error) Result {
	res.Err = ge
	res.Status = ge.Status()
	if !ge.Kind.Expected() {
		g.logger.Error().Err(ge).Str("stage", res.Stage.String()).Msg("request failed")
	}
	return res
}

// logged writes the audit record and advances to StageLogged. A failed
// write is logged and counted; it never changes the result.
func (g *Gate) logged(ctx context.Context, req gate.Request, res Result) Result {
	if !res.Stage.Audited() {
		return res
	}
	rec := audit.Record{
		ID:         g.idGen.New(),
		AccountID:  res.Account.ID,
		SecretKey:  res.Account.SecretKey,
		Endpoint:   req.Endpoint,
		Subject:    req.Subject,
		Timestamp:  req.Received,
		RemoteIP:   req.RemoteIP,
		UserAgent:  req.UserAgent,
		StatusCode: res.Status,
		LatencyMs:  g.clock.Now().Sub(req.Received).Milliseconds(),
	}

	// The caller may be gone; the record is still owed.
	actx, cancel := detach(ctx, g.auditTimeout)
	defer cancel()

	if err := g.audit.Append(actx, rec); err != nil {
		g.metrics.AuditWriteFailed()
		g.logger.Error().Err(err).
			Str("account_id", rec.AccountID).
			Str("endpoint", rec.Endpoint).
			Int("status", rec.StatusCode).
			Msg("audit write failed")
	}

	res.Stage = gate.StageLogged
	return res
}

func subjectError(err error) *gate.Error {
	if errors.Is(err, account.ErrSubjectMissing) {
		return gate.InvalidSubject("Symbol is required")
	}
	return gate.InvalidSubject("Invalid symbol format")
}
