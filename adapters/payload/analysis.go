// Package payload provides PayloadProducer implementations serving
// per-symbol analysis records, filtered by the caller's plan fields.
package payload

import (
	"time"

	"github.com/artpar/quotagate/domain/plan"
)

// Analysis is one analysis snapshot for a symbol (value type).
type Analysis struct {
	Symbol      string    `json:"symbol"`
	Timestamp   time.Time `json:"timestamp"`
	Price       float64   `json:"price"`
	ShortTerm   string    `json:"short_term"`
	ShortScore  float64   `json:"short_score"`
	MediumTerm  string    `json:"medium_term"`
	MediumScore float64   `json:"medium_score"`
	LongTerm    string    `json:"long_term"`
	LongScore   float64   `json:"long_score"`
	FundScore   float64   `json:"fund_score"`
}

// Format renders a into the response body, keeping only the parts fields
// allows.
// This is a PURE function.
func Format(a Analysis, fields plan.FieldSet) map[string]any {
	classifications := make(map[string]any, 3)
	horizons := []struct {
		field string
		class string
		score float64
	}{
		{plan.FieldShortTerm, a.ShortTerm, a.ShortScore},
		{plan.FieldMediumTerm, a.MediumTerm, a.MediumScore},
		{plan.FieldLongTerm, a.LongTerm, a.LongScore},
	}
	for _, h := range horizons {
		if fields.Allows(h.field) {
			classifications[h.field] = map[string]any{
				"classification": h.class,
				"score":          h.score,
			}
		}
	}

	out := map[string]any{
		"symbol":          a.Symbol,
		"timestamp":       a.Timestamp.UTC().Format(time.RFC3339),
		"classifications": classifications,
	}
	if fields.Allows(plan.FieldFundScore) {
		out["fundamental_score"] = a.FundScore
	}
	if fields.Allows(plan.FieldPriceData) {
		out["price"] = a.Price
	}
	return out
}
