package plan_test

import (
	"reflect"
	"testing"

	"github.com/artpar/quotagate/domain/plan"
)

func newDefaultRegistry(t *testing.T) *plan.Registry {
	t.Helper()
	r, err := plan.NewRegistry(plan.Defaults(), plan.DefaultID)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry_Resolve(t *testing.T) {
	r := newDefaultRegistry(t)

	tests := []struct {
		name   string
		id     string
		wantID string
	}{
		{"known plan", "basic", "basic"},
		{"unlimited plan", "enterprise", "enterprise"},
		{"empty id falls back", "", "free"},
		{"unknown id falls back", "admin", "free"},
		{"case sensitive", "BASIC", "free"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.id)
			if got.ID != tt.wantID {
				t.Errorf("Resolve(%q).ID = %s, want %s", tt.id, got.ID, tt.wantID)
			}
		})
	}
}

func TestRegistry_QuotaFor(t *testing.T) {
	r := newDefaultRegistry(t)

	tests := []struct {
		id   string
		want int64
	}{
		{"free", 10},
		{"basic", 100},
		{"premium", 1000},
		{"enterprise", plan.Unlimited},
		{"nope", 10},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := r.QuotaFor(tt.id); got != tt.want {
				t.Errorf("QuotaFor(%q) = %d, want %d", tt.id, got, tt.want)
			}
		})
	}
}

func TestRegistry_FieldsFor(t *testing.T) {
	r := newDefaultRegistry(t)

	basic := r.FieldsFor("basic")
	want := []string{"short_term", "medium_term", "long_term", "fund_score"}
	if !reflect.DeepEqual(basic.Tokens(), want) {
		t.Errorf("basic tokens = %v, want %v", basic.Tokens(), want)
	}
	if basic.Allows(plan.FieldPriceData) {
		t.Error("basic should not allow price_data")
	}

	ent := r.FieldsFor("enterprise")
	if !ent.IsAll() {
		t.Error("enterprise should be the wildcard set")
	}
	if !ent.Allows("anything") {
		t.Error("wildcard should allow any field")
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name      string
		plans     []plan.Plan
		defaultID string
	}{
		{"no plans", nil, "free"},
		{"missing default", []plan.Plan{{ID: "basic", RequestsPerDay: 5}}, "free"},
		{"duplicate id", []plan.Plan{{ID: "a"}, {ID: "a"}}, "a"},
		{"empty id", []plan.Plan{{ID: ""}}, ""},
		{"bad quota", []plan.Plan{{ID: "a", RequestsPerDay: -2}}, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := plan.NewRegistry(tt.plans, tt.defaultID); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewFieldSet(t *testing.T) {
	fs := plan.NewFieldSet("a", "b", "a", "", "c")
	if got := fs.Tokens(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Tokens() = %v", got)
	}

	wild := plan.NewFieldSet("a", plan.FieldAll)
	if !wild.IsAll() {
		t.Error("a set containing \"all\" should be the wildcard")
	}
	if got := wild.Tokens(); !reflect.DeepEqual(got, []string{"all"}) {
		t.Errorf("wildcard Tokens() = %v", got)
	}

	var empty plan.FieldSet
	if empty.Allows("a") {
		t.Error("zero FieldSet should allow nothing")
	}
}

func TestRegistry_ListKeepsOrder(t *testing.T) {
	r := newDefaultRegistry(t)
	var ids []string
	for _, p := range r.List() {
		ids = append(ids, p.ID)
	}
	want := []string{"free", "basic", "premium", "enterprise"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List ids = %v, want %v", ids, want)
	}
}

func TestPlan_IsUnlimited(t *testing.T) {
	if !(plan.Plan{RequestsPerDay: plan.Unlimited}).IsUnlimited() {
		t.Error("-1 should be unlimited")
	}
	if (plan.Plan{RequestsPerDay: 0}).IsUnlimited() {
		t.Error("0 is a zero quota, not unlimited")
	}
}
