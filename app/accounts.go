package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/domain/plan"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
)

// maxKeyAttempts bounds retries when a generated key collides.
const maxKeyAttempts = 3

// AccountService provisions and manages accounts.
type AccountService struct {
	accounts ports.AccountStore
	plans    *plan.Registry
	random   ports.Random
	idGen    ports.IDGenerator
	clock    ports.Clock
	notifier ports.Notifier
	logger   zerolog.Logger
}

// AccountDeps contains dependencies for AccountService.
type AccountDeps struct {
	Accounts ports.AccountStore
	Plans    *plan.Registry
	Random   ports.Random
	IDGen    ports.IDGenerator
	Clock    ports.Clock
	Notifier ports.Notifier // optional
	Logger   zerolog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(deps AccountDeps) *AccountService {
	return &AccountService{
		accounts: deps.Accounts,
		plans:    deps.Plans,
		random:   deps.Random,
		idGen:    deps.IDGen,
		clock:    deps.Clock,
		notifier: notifierOrNop(deps.Notifier),
		logger:   deps.Logger.With().Str("component", "accounts").Logger(),
	}
}

// Create provisions an account with a fresh secret key.
// An empty plan selects the default tier; an unknown plan is rejected.
func (s *AccountService) Create(ctx context.Context, p account.CreateParams) (account.Account, error) {
	// 1. Validate input (PURE)
	name, err := account.NormalizeName(p.Name)
	if err != nil {
		return account.Account{}, gate.InvalidInput(err.Error())
	}
	email, err := account.NormalizeEmail(p.Email)
	if err != nil {
		return account.Account{}, gate.InvalidInput(err.Error())
	}
	planID, err := s.planID(p.PlanID)
	if err != nil {
		return account.Account{}, err
	}

	// 2. Insert with a generated key, retrying on key collision (I/O)
	acct := account.Account{
		ID:        s.idGen.New(),
		Name:      name,
		Email:     email,
		PlanID:    planID,
		CreatedAt: s.clock.Now(),
	}
	for attempt := 1; ; attempt++ {
		key, err := s.newKey()
		if err != nil {
			return account.Account{}, err
		}
		acct.SecretKey = key

		err = s.accounts.Create(ctx, acct)
		switch {
		case err == nil:
			s.logger.Info().
				Str("account_id", acct.ID).
				Str("email", acct.Email).
				Str("plan_id", acct.PlanID).
				Msg("account created")
			return acct, nil
		case errors.Is(err, ports.ErrDuplicateContact):
			return account.Account{}, gate.DuplicateContact(email)
		case errors.Is(err, ports.ErrDuplicateKey) && attempt < maxKeyAttempts:
			continue
		default:
			return account.Account{}, gate.StorageUnavailable(fmt.Errorf("create account: %w", err))
		}
	}
}

// ResetKey replaces the account's secret key. The old key stops working
// when this returns.
func (s *AccountService) ResetKey(ctx context.Context, id string) (account.Account, error) {
	acct, err := s.Get(ctx, id)
	if err != nil {
		return account.Account{}, err
	}

	for attempt := 1; ; attempt++ {
		key, err := s.newKey()
		if err != nil {
			return account.Account{}, err
		}

		err = s.accounts.UpdateKey(ctx, acct.ID, key)
		switch {
		case err == nil:
			acct = acct.WithKey(key)
			s.logger.Info().Str("account_id", acct.ID).Msg("secret key reset")
			s.notifier.OnKeyReset(ctx, acct, key)
			return acct, nil
		case errors.Is(err, ports.ErrNotFound):
			return account.Account{}, gate.NotFound("Account not found")
		case errors.Is(err, ports.ErrDuplicateKey) && attempt < maxKeyAttempts:
			continue
		default:
			return account.Account{}, gate.StorageUnavailable(fmt.Errorf("update key: %w", err))
		}
	}
}

// ChangePlan moves the account to planID, which must be a known plan.
func (s *AccountService) ChangePlan(ctx context.Context, id, planID string) (account.Account, error) {
	p, ok := s.plans.Lookup(planID)
	if !ok {
		return account.Account{}, gate.InvalidInput(unknownPlanMessage(planID, s.plans.IDs()))
	}

	acct, err := s.Get(ctx, id)
	if err != nil {
		return account.Account{}, err
	}
	if err := s.accounts.UpdatePlan(ctx, id, p.ID); err != nil {
		return account.Account{}, storeError(err, "update plan")
	}
	s.logger.Info().
		Str("account_id", id).
		Str("from_plan", acct.PlanID).
		Str("plan_id", p.ID).
		Msg("plan changed")

	return acct.WithPlan(p.ID), nil
}

// Get returns the account with the given ID.
func (s *AccountService) Get(ctx context.Context, id string) (account.Account, error) {
	acct, err := s.accounts.Get(ctx, id)
	if err != nil {
		return account.Account{}, storeError(err, "get account")
	}
	return acct, nil
}

// GetByEmail returns the account with the given contact address.
func (s *AccountService) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	acct, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return account.Account{}, storeError(err, "get account by email")
	}
	return acct, nil
}

// Find resolves an account by ID or, when ref looks like an address, by email.
func (s *AccountService) Find(ctx context.Context, ref string) (account.Account, error) {
	if strings.Contains(ref, "@") {
		return s.GetByEmail(ctx, ref)
	}
	return s.Get(ctx, ref)
}

// List returns a page of accounts and the total count.
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]account.Account, int, error) {
	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, storeError(err, "list accounts")
	}
	total, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, 0, storeError(err, "count accounts")
	}
	return accounts, total, nil
}

func (s *AccountService) planID(id string) (string, error) {
	if id == "" {
		return s.plans.Default().ID, nil
	}
	if !s.plans.Has(id) {
		return "", gate.InvalidInput(unknownPlanMessage(id, s.plans.IDs()))
	}
	return id, nil
}

func (s *AccountService) newKey() (string, error) {
	key, err := s.random.Hex(account.KeyLength / 2)
	if err != nil {
		return "", gate.Internal(fmt.Errorf("generate key: %w", err))
	}
	return key, nil
}

func unknownPlanMessage(id string, known []string) string {
	return fmt.Sprintf("Invalid plan %q. Must be one of: %s", id, strings.Join(known, ", "))
}

func storeError(err error, op string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return gate.NotFound("Account not found")
	}
	return gate.StorageUnavailable(fmt.Errorf("%s: %w", op, err))
}
