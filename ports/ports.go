// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/audit"
	"github.com/artpar/quotagate/domain/plan"
	"github.com/artpar/quotagate/domain/quota"
)

// Storage sentinels. Adapters wrap or return these so callers can match
// them with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateContact = errors.New("duplicate contact address")
	ErrDuplicateKey     = errors.New("duplicate secret key")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Random abstracts randomness for testability.
type Random interface {
	// Bytes generates n random bytes.
	Bytes(n int) ([]byte, error)
	// Hex generates n random bytes encoded as 2n lowercase hex characters.
	Hex(n int) (string, error)
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides token hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// AccountStore persists accounts (the credential store).
type AccountStore interface {
	// Create stores a new account. Returns ErrDuplicateContact when the
	// email is taken and ErrDuplicateKey when the secret key is taken.
	Create(ctx context.Context, a account.Account) error

	// Get retrieves an account by ID.
	Get(ctx context.Context, id string) (account.Account, error)

	// GetByKey retrieves an account by exact secret key match.
	GetByKey(ctx context.Context, secretKey string) (account.Account, error)

	// GetByEmail retrieves an account by contact address.
	GetByEmail(ctx context.Context, email string) (account.Account, error)

	// List returns accounts ordered by creation time with pagination.
	List(ctx context.Context, limit, offset int) ([]account.Account, error)

	// Count returns the total account count.
	Count(ctx context.Context) (int, error)

	// TouchLastSeen sets the last-seen timestamp. Lost updates are tolerated.
	TouchLastSeen(ctx context.Context, id string, at time.Time) error

	// UpdateKey replaces the secret key. The old key stops resolving once
	// this returns.
	UpdateKey(ctx context.Context, id, secretKey string) error

	// UpdatePlan replaces the plan identifier.
	UpdatePlan(ctx context.Context, id, planID string) error
}

// UsageLedger persists per-account, per-day request counters.
type UsageLedger interface {
	// TryConsume atomically admits one request for key when the counter is
	// below limit and increments it. A negative limit always admits.
	// used is the counter value after the call (unchanged on rejection).
	TryConsume(ctx context.Context, key quota.Key, limit int64) (used int64, admitted bool, err error)

	// Increment adds one to the counter unconditionally and returns the new value.
	Increment(ctx context.Context, key quota.Key) (int64, error)

	// Count returns the current counter value (0 when absent).
	Count(ctx context.Context, key quota.Key) (int64, error)

	// Prune removes counters for days strictly before day.
	// Returns the number of counters removed.
	Prune(ctx context.Context, beforeDay string) (int64, error)
}

// AuditStore persists audit records. Append-only.
type AuditStore interface {
	// Append stores a record. Returns only after the store accepts the write.
	Append(ctx context.Context, r audit.Record) error

	// DailyCount returns the number of records for accountID with
	// timestamps in [start, end].
	DailyCount(ctx context.Context, accountID string, start, end time.Time) (int64, error)

	// TotalCount returns the number of records for accountID.
	TotalCount(ctx context.Context, accountID string) (int64, error)

	// TopSubjects returns the n most requested non-empty subjects.
	TopSubjects(ctx context.Context, accountID string, n int) ([]audit.SubjectCount, error)

	// Recent returns the newest records for accountID, newest first.
	Recent(ctx context.Context, accountID string, limit int) ([]audit.Record, error)
}

// -----------------------------------------------------------------------------
// Collaborator Ports
// -----------------------------------------------------------------------------

// PayloadRequest is what the gate hands the payload producer after admission.
type PayloadRequest struct {
	Account account.Account
	Subject string
	Fields  plan.FieldSet
}

// PayloadProducer builds the response body for an admitted request.
// Returning an error that gate.As maps to KindNotFound signals an unknown subject.
type PayloadProducer interface {
	Produce(ctx context.Context, req PayloadRequest) (map[string]any, error)
}

// PayloadProducerFunc adapts a function to PayloadProducer.
type PayloadProducerFunc func(ctx context.Context, req PayloadRequest) (map[string]any, error)

// Produce calls f.
func (f PayloadProducerFunc) Produce(ctx context.Context, req PayloadRequest) (map[string]any, error) {
	return f(ctx, req)
}

// Notifier receives usage and lifecycle signals. Calls are fire-and-forget;
// implementations must not block the request path.
type Notifier interface {
	OnThresholdCrossed(ctx context.Context, a account.Account, used, limit int64)
	OnKeyReset(ctx context.Context, a account.Account, newKey string)
}

// -----------------------------------------------------------------------------
// Email Ports
// -----------------------------------------------------------------------------

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// EmailSender sends emails.
type EmailSender interface {
	// Send sends an email.
	Send(ctx context.Context, msg EmailMessage) error

	// SendUsageAlert tells an account holder they are close to the daily quota.
	SendUsageAlert(ctx context.Context, to, name string, used, limit int64) error

	// SendKeyReset delivers a newly issued secret key.
	SendKeyReset(ctx context.Context, to, name, newKey string) error
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// Metrics records gate outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	AuthFailure(reason string)
	QuotaRejected(planID string)
	Admitted(planID string)
	AuditWriteFailed()
}
