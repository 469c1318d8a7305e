package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
)

// Authenticator resolves raw secret keys to accounts.
type Authenticator struct {
	accounts ports.AccountStore
	clock    ports.Clock
	metrics  ports.Metrics
	logger   zerolog.Logger
	timeout  time.Duration
}

// AuthenticatorDeps contains dependencies for Authenticator.
type AuthenticatorDeps struct {
	Accounts ports.AccountStore
	Clock    ports.Clock
	Metrics  ports.Metrics // optional
	Logger   zerolog.Logger

	// LookupTimeout bounds the credential lookup. Defaults to 5s.
	LookupTimeout time.Duration
}

// NewAuthenticator creates a new authenticator.
func NewAuthenticator(deps AuthenticatorDeps) *Authenticator {
	if deps.LookupTimeout == 0 {
		deps.LookupTimeout = defaultStorageTimeout
	}
	return &Authenticator{
		accounts: deps.Accounts,
		clock:    deps.Clock,
		metrics:  metricsOrNop(deps.Metrics),
		logger:   deps.Logger.With().Str("component", "auth").Logger(),
		timeout:  deps.LookupTimeout,
	}
}

// Authenticate returns the account owning rawKey.
//
// Failures are *gate.Error values: InvalidFormat when the key is malformed
// (storage is not consulted), Unauthorized when no account owns the key and
// StorageUnavailable when the lookup itself failed.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (account.Account, error) {
	// 1. Validate key format (PURE)
	if !account.ValidKeyFormat(rawKey) {
		a.metrics.AuthFailure(string(gate.KindInvalidFormat))
		return account.Account{}, gate.InvalidFormat()
	}

	// 2. Lookup key (I/O)
	lctx, cancel := detach(ctx, a.timeout)
	defer cancel()
	acct, err := a.accounts.GetByKey(lctx, rawKey)
	if errors.Is(err, ports.ErrNotFound) {
		a.metrics.AuthFailure(string(gate.KindUnauthorized))
		a.logger.Info().Str("key", account.MaskKey(rawKey)).Msg("unknown api key")
		return account.Account{}, gate.Unauthorized()
	}
	if err != nil {
		a.metrics.AuthFailure(string(gate.KindStorageUnavailable))
		a.logger.Error().Err(err).Msg("credential lookup failed")
		return account.Account{}, gate.StorageUnavailable(fmt.Errorf("lookup key: %w", err))
	}

	// 3. Record last seen (I/O, best effort)
	now := a.clock.Now()
	if err := a.accounts.TouchLastSeen(lctx, acct.ID, now); err != nil {
		a.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("failed to update last seen")
	} else {
		acct.LastSeenAt = now
	}

	return acct, nil
}
