// Package memory provides in-memory implementations of storage ports.
// Used in tests and for the "memory" database driver.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/ports"
)

// AccountStore is an in-memory implementation of ports.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]account.Account // by ID
	byKey    map[string]string          // secret key -> ID
	byEmail  map[string]string          // email -> ID
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]account.Account),
		byKey:    make(map[string]string),
		byEmail:  make(map[string]string),
	}
}

// Create stores a new account.
func (s *AccountStore) Create(ctx context.Context, a account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(a.Email)
	if _, exists := s.byEmail[email]; exists {
		return ports.ErrDuplicateContact
	}
	if _, exists := s.byKey[a.SecretKey]; exists {
		return ports.ErrDuplicateKey
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	s.accounts[a.ID] = a
	s.byKey[a.SecretKey] = a.ID
	s.byEmail[email] = a.ID
	return nil
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return account.Account{}, ports.ErrNotFound
	}
	return a, nil
}

// GetByKey retrieves an account by secret key.
func (s *AccountStore) GetByKey(ctx context.Context, secretKey string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[secretKey]
	if !ok {
		return account.Account{}, ports.ErrNotFound
	}
	return s.accounts[id], nil
}

// GetByEmail retrieves an account by contact address.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return account.Account{}, ports.ErrNotFound
	}
	return s.accounts[id], nil
}

// List returns accounts oldest first with pagination.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]account.Account, error) {
	s.mu.RLock()
	all := make([]account.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, a)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Count returns total account count.
func (s *AccountStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// TouchLastSeen updates the last-seen timestamp.
func (s *AccountStore) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return s.modify(id, func(a *account.Account) error {
		a.LastSeenAt = at
		return nil
	})
}

// UpdateKey replaces the secret key and re-indexes it.
func (s *AccountStore) UpdateKey(ctx context.Context, id, secretKey string) error {
	return s.modify(id, func(a *account.Account) error {
		if owner, exists := s.byKey[secretKey]; exists && owner != id {
			return ports.ErrDuplicateKey
		}
		delete(s.byKey, a.SecretKey)
		a.SecretKey = secretKey
		s.byKey[secretKey] = id
		return nil
	})
}

// UpdatePlan replaces the plan identifier.
func (s *AccountStore) UpdatePlan(ctx context.Context, id, planID string) error {
	return s.modify(id, func(a *account.Account) error {
		a.PlanID = planID
		return nil
	})
}

func (s *AccountStore) modify(id string, fn func(a *account.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	if err := fn(&a); err != nil {
		return err
	}
	s.accounts[id] = a
	return nil
}

// Ensure interface compliance.
var _ ports.AccountStore = (*AccountStore)(nil)
