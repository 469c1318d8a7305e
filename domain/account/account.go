// Package account provides account value types and pure validation functions.
// This package has NO dependencies on I/O.
package account

import (
	"time"
)

// KeyLength is the fixed length of a secret key in lowercase hex characters.
const KeyLength = 64

// Account represents a provisioned API consumer (value type).
type Account struct {
	ID         string
	Name       string
	Email      string // unique contact address, lower-cased
	PlanID     string // resolved through the plan registry at read time
	SecretKey  string // unique, KeyLength lowercase hex chars
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// CreateParams contains parameters for provisioning an account.
type CreateParams struct {
	Name   string
	Email  string
	PlanID string
}

// WithKey returns a copy of the account with SecretKey replaced.
func (a Account) WithKey(key string) Account {
	a.SecretKey = key
	return a
}

// WithPlan returns a copy of the account with PlanID replaced.
func (a Account) WithPlan(planID string) Account {
	a.PlanID = planID
	return a
}

// MaskedKey returns the key with all but the last four characters hidden.
// Used for log lines and listings.
func (a Account) MaskedKey() string {
	return MaskKey(a.SecretKey)
}

// MaskKey hides all but the last four characters of a key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
