// Package redis provides a Redis-backed usage ledger for deployments that
// run several gateway instances against one set of counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
	"github.com/redis/go-redis/v9"
)

const keyUsage = "quotagate:usage:%s:%s" // account id, day

// DefaultTTL keeps a day's counter around long enough for stats queries
// issued from any timezone before it expires.
const DefaultTTL = 48 * time.Hour

// consumeScript checks and increments in one server-side step.
// KEYS[1] counter key; ARGV[1] limit (-1 = unlimited); ARGV[2] ttl seconds.
// Returns {admitted, used}.
var consumeScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if limit >= 0 and cur >= limit then
  return {0, cur}
end
cur = redis.call('INCR', KEYS[1])
if cur == 1 then
  redis.call('EXPIRE', KEYS[1], ttl)
end
return {1, cur}
`)

// Ledger implements ports.UsageLedger using Redis.
type Ledger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLedger creates a Redis-backed ledger.
func NewLedger(client *redis.Client, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{client: client, ttl: ttl}
}

// NewLedgerFromURL parses redisURL, connects and pings.
func NewLedgerFromURL(redisURL string, ttl time.Duration) (*Ledger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewLedger(client, ttl), nil
}

func counterKey(k quota.Key) string {
	return fmt.Sprintf(keyUsage, k.AccountID, k.Day)
}

// TryConsume admits one request when the counter is below limit.
func (l *Ledger) TryConsume(ctx context.Context, key quota.Key, limit int64) (int64, bool, error) {
	if limit < 0 {
		limit = -1
	}
	res, err := consumeScript.Run(ctx, l.client, []string{counterKey(key)}, limit, int64(l.ttl.Seconds())).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("consume quota: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("consume quota: unexpected reply %v", res)
	}
	return res[1], res[0] == 1, nil
}

// Increment adds one unconditionally.
func (l *Ledger) Increment(ctx context.Context, key quota.Key) (int64, error) {
	used, _, err := l.TryConsume(ctx, key, -1)
	return used, err
}

// Count returns the current counter value.
func (l *Ledger) Count(ctx context.Context, key quota.Key) (int64, error) {
	n, err := l.client.Get(ctx, counterKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return n, nil
}

// Prune is a no-op: counters expire through their TTL.
func (l *Ledger) Prune(ctx context.Context, beforeDay string) (int64, error) {
	return 0, nil
}

// Ping checks connectivity.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *Ledger) Close() error {
	return l.client.Close()
}

// Ensure interface compliance.
var _ ports.UsageLedger = (*Ledger)(nil)
