package memory

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
)

// ledgerShard is a single shard of the usage ledger.
type ledgerShard struct {
	mu       sync.Mutex
	counters map[quota.Key]int64
}

// Ledger is a sharded in-memory usage ledger.
// Each (account, day) counter lives in exactly one shard, and its shard lock
// makes check-and-increment atomic.
type Ledger struct {
	shards    []*ledgerShard
	numShards int
}

// NewLedger creates a ledger with numShards shards (default 32).
func NewLedger(numShards int) *Ledger {
	if numShards <= 0 {
		numShards = 32
	}
	l := &Ledger{
		shards:    make([]*ledgerShard, numShards),
		numShards: numShards,
	}
	for i := range l.shards {
		l.shards[i] = &ledgerShard{counters: make(map[quota.Key]int64)}
	}
	return l
}

// getShard returns the shard owning an account's counters.
func (l *Ledger) getShard(accountID string) *ledgerShard {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return l.shards[h.Sum32()%uint32(l.numShards)]
}

// TryConsume admits one request when the counter is below limit.
func (l *Ledger) TryConsume(ctx context.Context, key quota.Key, limit int64) (int64, bool, error) {
	shard := l.getShard(key.AccountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	used := shard.counters[key]
	if !quota.Decide(used, limit) {
		return used, false, nil
	}
	used++
	shard.counters[key] = used
	return used, true, nil
}

// Increment adds one unconditionally.
func (l *Ledger) Increment(ctx context.Context, key quota.Key) (int64, error) {
	shard := l.getShard(key.AccountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.counters[key]++
	return shard.counters[key], nil
}

// Count returns the current counter value.
func (l *Ledger) Count(ctx context.Context, key quota.Key) (int64, error) {
	shard := l.getShard(key.AccountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return shard.counters[key], nil
}

// Prune removes counters for days before beforeDay.
func (l *Ledger) Prune(ctx context.Context, beforeDay string) (int64, error) {
	var removed int64
	for _, shard := range l.shards {
		shard.mu.Lock()
		for k := range shard.counters {
			if k.Day < beforeDay {
				delete(shard.counters, k)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed, nil
}

// Ensure interface compliance.
var _ ports.UsageLedger = (*Ledger)(nil)
