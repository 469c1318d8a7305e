package redis_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qredis "github.com/artpar/quotagate/adapters/redis"
	"github.com/artpar/quotagate/domain/quota"
)

// setupLedger connects to QUOTAGATE_TEST_REDIS_URL or skips.
func setupLedger(t *testing.T) *qredis.Ledger {
	t.Helper()

	url := os.Getenv("QUOTAGATE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("QUOTAGATE_TEST_REDIS_URL not set")
	}
	l, err := qredis.NewLedgerFromURL(url, time.Minute)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func uniqueKey(t *testing.T) quota.Key {
	return quota.Key{
		AccountID: fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano()),
		Day:       "2024-06-01",
	}
}

func TestLedger_TryConsume(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	key := uniqueKey(t)

	for i := int64(1); i <= 2; i++ {
		used, ok, err := l.TryConsume(ctx, key, 2)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if !ok || used != i {
			t.Errorf("consume %d = (%d, %v)", i, used, ok)
		}
	}

	used, ok, err := l.TryConsume(ctx, key, 2)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok || used != 2 {
		t.Errorf("over limit = (%d, %v), want (2, false)", used, ok)
	}

	if n, _ := l.Count(ctx, key); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestLedger_ConcurrentAdmissions(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	key := uniqueKey(t)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := l.TryConsume(ctx, key, 10); err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 10 {
		t.Errorf("admitted = %d, want 10", got)
	}
}

func TestLedger_Unlimited(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	key := uniqueKey(t)

	for i := 0; i < 5; i++ {
		if _, ok, err := l.TryConsume(ctx, key, -1); !ok || err != nil {
			t.Fatalf("unlimited rejected: %v", err)
		}
	}
	if n, _ := l.Increment(ctx, key); n != 6 {
		t.Errorf("Increment = %d, want 6", n)
	}
}
