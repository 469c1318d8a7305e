package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/quotagate/adapters/clock"
	"github.com/artpar/quotagate/adapters/sqlite"
	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/audit"
	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
)

func setupTestDB(t *testing.T) (*sqlite.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "quotagate-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(path)
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")
	}

	return db, cleanup
}

func testKey(n int) string {
	return fmt.Sprintf("%064x", n)
}

func testAccount(n int) account.Account {
	return account.Account{
		ID:        fmt.Sprintf("acct-%d", n),
		Name:      fmt.Sprintf("User %d", n),
		Email:     fmt.Sprintf("user%d@example.com", n),
		PlanID:    "free",
		SecretKey: testKey(n),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, n, 0, time.UTC),
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

// -----------------------------------------------------------------------------
// AccountStore Tests
// -----------------------------------------------------------------------------

func TestAccountStore_CreateAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewAccountStore(db)
	ctx := context.Background()
	a := testAccount(1)

	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	byID, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if byID.Email != a.Email || byID.SecretKey != a.SecretKey || byID.PlanID != "free" {
		t.Errorf("Get = %+v", byID)
	}
	if !byID.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", byID.CreatedAt, a.CreatedAt)
	}
	if !byID.LastSeenAt.IsZero() {
		t.Errorf("LastSeenAt = %v, want zero", byID.LastSeenAt)
	}

	byKey, err := store.GetByKey(ctx, a.SecretKey)
	if err != nil || byKey.ID != a.ID {
		t.Errorf("GetByKey = %+v, %v", byKey, err)
	}

	byEmail, err := store.GetByEmail(ctx, strings.ToUpper(a.Email))
	if err != nil || byEmail.ID != a.ID {
		t.Errorf("GetByEmail = %+v, %v", byEmail, err)
	}
}

func TestAccountStore_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewAccountStore(db)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetByKey(ctx, testKey(99)); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("GetByKey err = %v, want ErrNotFound", err)
	}
	if err := store.UpdatePlan(ctx, "missing", "basic"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("UpdatePlan err = %v, want ErrNotFound", err)
	}
}

func TestAccountStore_Duplicates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewAccountStore(db)
	ctx := context.Background()

	if err := store.Create(ctx, testAccount(1)); err != nil {
		t.Fatalf("create: %v", err)
	}

	sameEmail := testAccount(2)
	sameEmail.Email = testAccount(1).Email
	if err := store.Create(ctx, sameEmail); !errors.Is(err, ports.ErrDuplicateContact) {
		t.Errorf("duplicate email err = %v, want ErrDuplicateContact", err)
	}

	sameKey := testAccount(3)
	sameKey.SecretKey = testAccount(1).SecretKey
	if err := store.Create(ctx, sameKey); !errors.Is(err, ports.ErrDuplicateKey) {
		t.Errorf("duplicate key err = %v, want ErrDuplicateKey", err)
	}
}

func TestAccountStore_Updates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewAccountStore(db)
	ctx := context.Background()
	a := testAccount(1)
	store.Create(ctx, a)

	seen := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	if err := store.TouchLastSeen(ctx, a.ID, seen); err != nil {
		t.Fatalf("touch: %v", err)
	}

	newKey := testKey(42)
	if err := store.UpdateKey(ctx, a.ID, newKey); err != nil {
		t.Fatalf("update key: %v", err)
	}
	if _, err := store.GetByKey(ctx, a.SecretKey); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("old key should stop resolving, err = %v", err)
	}

	if err := store.UpdatePlan(ctx, a.ID, "premium"); err != nil {
		t.Fatalf("update plan: %v", err)
	}

	got, err := store.GetByKey(ctx, newKey)
	if err != nil {
		t.Fatalf("get by new key: %v", err)
	}
	if got.PlanID != "premium" {
		t.Errorf("PlanID = %s, want premium", got.PlanID)
	}
	if !got.LastSeenAt.Equal(seen) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, seen)
	}
}

func TestAccountStore_ListAndCount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewAccountStore(db)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		store.Create(ctx, testAccount(i))
	}

	page, err := store.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != "acct-2" || page[1].ID != "acct-3" {
		t.Errorf("List(2, 1) = %v", page)
	}

	all, _ := store.List(ctx, 0, 0)
	if len(all) != 5 {
		t.Errorf("List(0, 0) len = %d, want 5", len(all))
	}

	n, err := store.Count(ctx)
	if err != nil || n != 5 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

// -----------------------------------------------------------------------------
// Ledger Tests
// -----------------------------------------------------------------------------

var ledgerNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func TestLedger_TryConsume(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := sqlite.NewLedger(db, clock.NewFake(ledgerNow))
	ctx := context.Background()
	key := quota.Key{AccountID: "acct-1", Day: "2024-06-01"}

	for i := int64(1); i <= 3; i++ {
		used, ok, err := ledger.TryConsume(ctx, key, 3)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !ok || used != i {
			t.Errorf("consume %d = (%d, %v), want (%d, true)", i, used, ok, i)
		}
	}

	used, ok, err := ledger.TryConsume(ctx, key, 3)
	if err != nil {
		t.Fatalf("consume over limit: %v", err)
	}
	if ok || used != 3 {
		t.Errorf("over limit = (%d, %v), want (3, false)", used, ok)
	}

	other := quota.Key{AccountID: "acct-1", Day: "2024-06-02"}
	if _, ok, _ := ledger.TryConsume(ctx, other, 3); !ok {
		t.Error("new day should admit")
	}
}

func TestLedger_ZeroAndUnlimited(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := sqlite.NewLedger(db, clock.NewFake(ledgerNow))
	ctx := context.Background()
	key := quota.Key{AccountID: "acct-1", Day: "2024-06-01"}

	if used, ok, _ := ledger.TryConsume(ctx, key, 0); ok || used != 0 {
		t.Errorf("zero quota = (%d, %v), want (0, false)", used, ok)
	}

	for i := 0; i < 5; i++ {
		if _, ok, err := ledger.TryConsume(ctx, key, -1); !ok || err != nil {
			t.Fatalf("unlimited rejected: %v", err)
		}
	}
	if n, _ := ledger.Count(ctx, key); n != 5 {
		t.Errorf("Count = %d, want 5", n)
	}
}

func TestLedger_ConcurrentAdmissions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := sqlite.NewLedger(db, clock.NewFake(ledgerNow))
	ctx := context.Background()
	key := quota.Key{AccountID: "acct-1", Day: "2024-06-01"}

	const limit, prior, callers = 10, 4, 40
	for i := 0; i < prior; i++ {
		ledger.Increment(ctx, key)
	}

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := ledger.TryConsume(ctx, key, limit)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != limit-prior {
		t.Errorf("admitted = %d, want %d", got, limit-prior)
	}
	if n, _ := ledger.Count(ctx, key); n != limit {
		t.Errorf("Count = %d, want %d", n, limit)
	}
}

func TestLedger_Prune(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := sqlite.NewLedger(db, clock.NewFake(ledgerNow))
	ctx := context.Background()
	for _, day := range []string{"2024-05-30", "2024-05-31", "2024-06-01"} {
		ledger.Increment(ctx, quota.Key{AccountID: "a", Day: day})
	}

	n, err := ledger.Prune(ctx, "2024-06-01")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	if c, _ := ledger.Count(ctx, quota.Key{AccountID: "a", Day: "2024-06-01"}); c != 1 {
		t.Errorf("kept counter = %d, want 1", c)
	}
}

// -----------------------------------------------------------------------------
// AuditStore Tests
// -----------------------------------------------------------------------------

func TestAuditStore_AppendAndQuery(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewAuditStore(db)
	ctx := context.Background()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	subjects := []string{"AAPL", "AAPL", "MSFT", "", "AAPL", "GOOG", "MSFT"}
	for i, subj := range subjects {
		ts := day.Add(time.Duration(i) * time.Hour)
		if i == 0 {
			ts = day.Add(-time.Hour) // yesterday
		}
		err := store.Append(ctx, audit.Record{
			ID:         fmt.Sprintf("rec-%d", i),
			AccountID:  "acct-1",
			SecretKey:  testKey(1),
			Endpoint:   "/analysis",
			Subject:    subj,
			Timestamp:  ts,
			StatusCode: 200,
			LatencyMs:  int64(i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	store.Append(ctx, audit.Record{ID: "other", AccountID: "acct-2", Endpoint: "/analysis", Timestamp: day, StatusCode: 200})

	total, _ := store.TotalCount(ctx, "acct-1")
	if total != 7 {
		t.Errorf("TotalCount = %d, want 7", total)
	}

	start, end := quota.DayBounds(day, time.UTC)
	today, _ := store.DailyCount(ctx, "acct-1", start, end)
	if today != 6 {
		t.Errorf("DailyCount = %d, want 6", today)
	}

	top, err := store.TopSubjects(ctx, "acct-1", 2)
	if err != nil {
		t.Fatalf("top subjects: %v", err)
	}
	if len(top) != 2 || top[0] != (audit.SubjectCount{Subject: "AAPL", Count: 3}) || top[1] != (audit.SubjectCount{Subject: "MSFT", Count: 2}) {
		t.Errorf("TopSubjects = %v", top)
	}

	recent, err := store.Recent(ctx, "acct-1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "rec-6" || recent[1].ID != "rec-5" {
		t.Errorf("Recent = %v", recent)
	}
	if !recent[0].Timestamp.Equal(day.Add(6 * time.Hour)) {
		t.Errorf("Recent[0].Timestamp = %v", recent[0].Timestamp)
	}
}

func TestLedger_StampsWithClock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := sqlite.NewLedger(db, clock.NewFake(ledgerNow))
	ctx := context.Background()
	key := quota.Key{AccountID: "acct-1", Day: "2024-06-01"}

	if _, _, err := ledger.TryConsume(ctx, key, 5); err != nil {
		t.Fatalf("TryConsume: %v", err)
	}

	var updated time.Time
	err := db.QueryRowContext(ctx,
		`SELECT updated_at FROM usage_counters WHERE account_id = ? AND day = ?`,
		key.AccountID, key.Day).Scan(&updated)
	if err != nil {
		t.Fatalf("read updated_at: %v", err)
	}
	if !updated.Equal(ledgerNow) {
		t.Errorf("updated_at = %v, want %v", updated, ledgerNow)
	}
}

func TestLedger_CancelledContext(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := sqlite.NewLedger(db, clock.NewFake(ledgerNow))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ledger.TryConsume(ctx, quota.Key{AccountID: "acct-1", Day: "2024-06-01"}, 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("TryConsume error = %v, want context.Canceled", err)
	}
	if err != nil && strings.Count(err.Error(), "consume quota") != 1 {
		t.Errorf("error prefix repeated: %v", err)
	}
}
