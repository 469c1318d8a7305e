// Package plan provides plan value types and the immutable plan registry.
// This package has NO dependencies on I/O.
package plan

import (
	"fmt"
	"sort"
)

// Unlimited is the daily quota sentinel for plans without a request cap.
const Unlimited int64 = -1

// FieldAll is the wildcard capability token granting every response field.
const FieldAll = "all"

// Known capability tokens for analysis payloads.
const (
	FieldShortTerm  = "short_term"
	FieldMediumTerm = "medium_term"
	FieldLongTerm   = "long_term"
	FieldFundScore  = "fund_score"
	FieldPriceData  = "price_data"
)

// Plan represents a subscription tier (immutable value type).
type Plan struct {
	ID             string
	Name           string
	Description    string
	RequestsPerDay int64 // Unlimited (-1) = no cap
	Fields         FieldSet
	PriceMonthly   int64 // cents, advisory only
}

// IsUnlimited reports whether the plan has no daily cap.
func (p Plan) IsUnlimited() bool {
	return p.RequestsPerDay < 0
}

// FieldSet is an ordered set of capability tokens, or the "all" wildcard.
type FieldSet struct {
	all    bool
	fields []string
}

// NewFieldSet builds a FieldSet from tokens. A FieldAll token anywhere
// makes the set a wildcard. Duplicates are dropped, order is kept.
func NewFieldSet(tokens ...string) FieldSet {
	fs := FieldSet{}
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if t == FieldAll {
			return FieldSet{all: true}
		}
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		fs.fields = append(fs.fields, t)
	}
	return fs
}

// AllFields returns the wildcard set.
func AllFields() FieldSet {
	return FieldSet{all: true}
}

// IsAll reports whether the set is the wildcard.
func (fs FieldSet) IsAll() bool {
	return fs.all
}

// Allows reports whether the field is visible under this set.
func (fs FieldSet) Allows(field string) bool {
	if fs.all {
		return true
	}
	for _, f := range fs.fields {
		if f == field {
			return true
		}
	}
	return false
}

// Tokens returns the set's tokens. The wildcard is returned as ["all"].
func (fs FieldSet) Tokens() []string {
	if fs.all {
		return []string{FieldAll}
	}
	out := make([]string, len(fs.fields))
	copy(out, fs.fields)
	return out
}

// Registry is an immutable lookup table from plan ID to Plan.
// Built once at startup; safe for concurrent use.
type Registry struct {
	plans     map[string]Plan
	order     []string
	defaultID string
}

// NewRegistry builds a registry. defaultID must name one of the plans.
func NewRegistry(plans []Plan, defaultID string) (*Registry, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("at least one plan is required")
	}

	r := &Registry{
		plans:     make(map[string]Plan, len(plans)),
		defaultID: defaultID,
	}
	for _, p := range plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan id is required")
		}
		if _, dup := r.plans[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		if p.RequestsPerDay < Unlimited {
			return nil, fmt.Errorf("plan %q: requests_per_day must be >= -1", p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		r.plans[p.ID] = p
		r.order = append(r.order, p.ID)
	}

	if _, ok := r.plans[defaultID]; !ok {
		return nil, fmt.Errorf("default plan %q is not defined", defaultID)
	}
	return r, nil
}

// Resolve returns the plan for id, falling back to the default tier when id
// is empty or unknown.
func (r *Registry) Resolve(id string) Plan {
	if p, ok := r.plans[id]; ok {
		return p
	}
	return r.plans[r.defaultID]
}

// Lookup returns the plan for id without falling back.
func (r *Registry) Lookup(id string) (Plan, bool) {
	p, ok := r.plans[id]
	return p, ok
}

// Has reports whether id names a defined plan.
func (r *Registry) Has(id string) bool {
	_, ok := r.plans[id]
	return ok
}

// Default returns the default tier.
func (r *Registry) Default() Plan {
	return r.plans[r.defaultID]
}

// FieldsFor returns the capability set of the plan resolved from id.
func (r *Registry) FieldsFor(id string) FieldSet {
	return r.Resolve(id).Fields
}

// QuotaFor returns the daily quota of the plan resolved from id.
// Unlimited plans return Unlimited.
func (r *Registry) QuotaFor(id string) int64 {
	return r.Resolve(id).RequestsPerDay
}

// List returns all plans in definition order.
func (r *Registry) List() []Plan {
	out := make([]Plan, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plans[id])
	}
	return out
}

// IDs returns the sorted plan IDs.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.Strings(ids)
	return ids
}

// Defaults returns the built-in tiers.
func Defaults() []Plan {
	base := []string{FieldShortTerm, FieldMediumTerm, FieldLongTerm}
	return []Plan{
		{
			ID:             "free",
			Name:           "Free",
			Description:    "Short, medium and long term classifications",
			RequestsPerDay: 10,
			Fields:         NewFieldSet(base...),
		},
		{
			ID:             "basic",
			Name:           "Basic",
			Description:    "Adds the fundamental score",
			RequestsPerDay: 100,
			Fields:         NewFieldSet(append(base, FieldFundScore)...),
			PriceMonthly:   900,
		},
		{
			ID:             "premium",
			Name:           "Premium",
			Description:    "Adds price data",
			RequestsPerDay: 1000,
			Fields:         NewFieldSet(append(base, FieldFundScore, FieldPriceData)...),
			PriceMonthly:   2900,
		},
		{
			ID:             "enterprise",
			Name:           "Enterprise",
			Description:    "Unlimited requests, every field",
			RequestsPerDay: Unlimited,
			Fields:         AllFields(),
			PriceMonthly:   19900,
		},
	}
}

// DefaultID is the built-in default tier.
const DefaultID = "free"
