package app_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/artpar/quotagate/adapters/clock"
	"github.com/artpar/quotagate/adapters/idgen"
	"github.com/artpar/quotagate/adapters/memory"
	"github.com/artpar/quotagate/adapters/random"
	"github.com/artpar/quotagate/app"
	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/domain/plan"
	"github.com/rs/zerolog"
)

func TestAccountService_Create(t *testing.T) {
	tests := []struct {
		name     string
		params   account.CreateParams
		wantKind gate.Kind
		wantPlan string
	}{
		{"default plan", account.CreateParams{Name: "Ada", Email: "Ada@Example.com"}, "", "free"},
		{"explicit plan", account.CreateParams{Name: "Ada", Email: "ada@example.com", PlanID: "premium"}, "", "premium"},
		{"unknown plan", account.CreateParams{Name: "Ada", Email: "ada@example.com", PlanID: "gold"}, gate.KindInvalidInput, ""},
		{"missing name", account.CreateParams{Email: "ada@example.com"}, gate.KindInvalidInput, ""},
		{"bad email", account.CreateParams{Name: "Ada", Email: "ada@"}, gate.KindInvalidInput, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			acct, err := h.service.Create(context.Background(), tt.params)
			if gate.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %q, want %q (err %v)", gate.KindOf(err), tt.wantKind, err)
			}
			if err != nil {
				return
			}
			if acct.PlanID != tt.wantPlan {
				t.Errorf("PlanID = %q, want %q", acct.PlanID, tt.wantPlan)
			}
			if !account.ValidKeyFormat(acct.SecretKey) {
				t.Errorf("SecretKey %q is not a valid key", acct.SecretKey)
			}
			if acct.Email != "ada@example.com" {
				t.Errorf("Email = %q, want lower-cased", acct.Email)
			}
			if !acct.CreatedAt.Equal(testNow) {
				t.Errorf("CreatedAt = %v, want %v", acct.CreatedAt, testNow)
			}
		})
	}
}

func TestAccountService_CreateDuplicateContact(t *testing.T) {
	h := newHarness(t)
	h.createAccount(t, "ada@example.com", "")

	_, err := h.service.Create(context.Background(), account.CreateParams{Name: "Other", Email: "ADA@example.com"})
	ge := gate.As(err)
	if ge == nil || ge.Kind != gate.KindDuplicateContact {
		t.Fatalf("err = %v, want duplicate contact", err)
	}
	if ge.Status() != 409 {
		t.Errorf("status = %d, want 409", ge.Status())
	}
}

func TestAccountService_CreateRetriesKeyCollision(t *testing.T) {
	plans, _ := plan.NewRegistry(plan.Defaults(), plan.DefaultID)
	same := bytes.Repeat([]byte{0xab}, 32)
	svc := app.NewAccountService(app.AccountDeps{
		Accounts: memory.NewAccountStore(),
		Plans:    plans,
		Random:   random.NewFake().WithValues(same, same),
		IDGen:    idgen.NewSequential("acct_"),
		Clock:    clock.NewFake(testNow),
		Logger:   zerolog.Nop(),
	})

	first, err := svc.Create(context.Background(), account.CreateParams{Name: "A", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := svc.Create(context.Background(), account.CreateParams{Name: "B", Email: "b@example.com"})
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if first.SecretKey == second.SecretKey {
		t.Error("colliding key was not regenerated")
	}
}

func TestAccountService_ResetKey(t *testing.T) {
	h := newHarness(t)
	acct := h.createAccount(t, "ada@example.com", "basic")
	ctx := context.Background()

	updated, err := h.service.ResetKey(ctx, acct.ID)
	if err != nil {
		t.Fatalf("ResetKey: %v", err)
	}
	if updated.SecretKey == acct.SecretKey {
		t.Fatal("key unchanged")
	}

	if _, err := h.auth.Authenticate(ctx, acct.SecretKey); gate.KindOf(err) != gate.KindUnauthorized {
		t.Errorf("old key kind = %q, want unauthorized", gate.KindOf(err))
	}
	if got, err := h.auth.Authenticate(ctx, updated.SecretKey); err != nil || got.ID != acct.ID {
		t.Errorf("new key: account %q err %v", got.ID, err)
	}

	if h.notifier.resets[acct.ID] != updated.SecretKey {
		t.Error("notifier was not told about the new key")
	}

	if _, err := h.service.ResetKey(ctx, "missing"); gate.KindOf(err) != gate.KindNotFound {
		t.Errorf("missing account kind = %q, want not found", gate.KindOf(err))
	}
}

func TestAccountService_ChangePlan(t *testing.T) {
	h := newHarness(t)
	acct := h.createAccount(t, "ada@example.com", "")
	ctx := context.Background()

	updated, err := h.service.ChangePlan(ctx, acct.ID, "premium")
	if err != nil {
		t.Fatalf("ChangePlan: %v", err)
	}
	if updated.PlanID != "premium" {
		t.Errorf("PlanID = %q, want premium", updated.PlanID)
	}
	if stored, _ := h.service.Get(ctx, acct.ID); stored.PlanID != "premium" {
		t.Errorf("stored PlanID = %q, want premium", stored.PlanID)
	}

	if _, err := h.service.ChangePlan(ctx, acct.ID, "platinum"); gate.KindOf(err) != gate.KindInvalidInput {
		t.Errorf("unknown plan kind = %q, want invalid input", gate.KindOf(err))
	}
	if _, err := h.service.ChangePlan(ctx, "missing", "basic"); gate.KindOf(err) != gate.KindNotFound {
		t.Errorf("missing account kind = %q, want not found", gate.KindOf(err))
	}
}

func TestAccountService_FindAndList(t *testing.T) {
	h := newHarness(t)
	a := h.createAccount(t, "ada@example.com", "")
	h.createAccount(t, "bob@example.com", "")
	ctx := context.Background()

	byEmail, err := h.service.Find(ctx, "ADA@example.com")
	if err != nil || byEmail.ID != a.ID {
		t.Errorf("Find by email = %q, %v", byEmail.ID, err)
	}
	byID, err := h.service.Find(ctx, a.ID)
	if err != nil || byID.Email != a.Email {
		t.Errorf("Find by id = %q, %v", byID.Email, err)
	}

	list, total, err := h.service.List(ctx, 1, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || total != 2 {
		t.Errorf("List = %d items, total %d; want 1, 2", len(list), total)
	}
}
