package http

import (
	"time"

	"github.com/artpar/quotagate/app"
	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/domain/audit"
	"github.com/artpar/quotagate/domain/plan"
	"github.com/artpar/quotagate/pkg/jsonapi"
)

// accountResource renders an account. The full key is shown only when
// reveal is set (creation and key reset).
func accountResource(a account.Account, reveal bool) jsonapi.Resource {
	b := jsonapi.NewResource("accounts", a.ID).
		Attr("name", a.Name).
		Attr("email", a.Email).
		Attr("plan", a.PlanID).
		Attr("created_at", a.CreatedAt.UTC().Format(time.RFC3339)).
		AttrIf(!a.LastSeenAt.IsZero(), "last_seen_at", a.LastSeenAt.UTC().Format(time.RFC3339))

	if reveal {
		b.Attr("api_key", a.SecretKey)
	} else {
		b.Attr("api_key", a.MaskedKey())
	}
	return b.Build()
}

func planAttributes(p plan.Plan) map[string]any {
	return map[string]any{
		"name":             p.Name,
		"description":      p.Description,
		"requests_per_day": p.RequestsPerDay,
		"unlimited":        p.IsUnlimited(),
		"available_fields": p.Fields.Tokens(),
		"price_monthly":    p.PriceMonthly,
	}
}

func planResource(p plan.Plan) jsonapi.Resource {
	return jsonapi.Resource{Type: "plans", ID: p.ID, Attributes: planAttributes(p)}
}

func statsAttributes(s app.AccountStats) map[string]any {
	top := make([]map[string]any, 0, len(s.TopSubjects))
	for _, sc := range s.TopSubjects {
		top = append(top, map[string]any{"symbol": sc.Subject, "count": sc.Count})
	}

	var remaining any = s.Remaining
	if s.Unlimited() {
		remaining = "unlimited"
	}

	planAttrs := planAttributes(s.Plan)
	planAttrs["id"] = s.Plan.ID

	attrs := map[string]any{
		"day":             s.Day,
		"today":           s.UsedToday,
		"requests_today":  s.AuditedToday,
		"total_requests":  s.TotalRequests,
		"top_symbols":     top,
		"remaining_today": remaining,
		"plan":            planAttrs,
	}
	if !s.LastSeenAt.IsZero() {
		attrs["last_seen_at"] = s.LastSeenAt.UTC().Format(time.RFC3339)
	}
	return attrs
}

// requestResource renders an audit record with the key masked.
func requestResource(r audit.Record) jsonapi.Resource {
	return jsonapi.NewResource("requests", r.ID).
		Attr("endpoint", r.Endpoint).
		AttrIf(r.Subject != "", "symbol", r.Subject).
		Attr("status", r.StatusCode).
		Attr("latency_ms", r.LatencyMs).
		Attr("ip", r.RemoteIP).
		Attr("user_agent", r.UserAgent).
		Attr("api_key", account.MaskKey(r.SecretKey)).
		Attr("timestamp", r.Timestamp.UTC().Format(time.RFC3339)).
		Build()
}

func summaryMeta(s audit.Summary) jsonapi.Meta {
	return jsonapi.Meta{
		"count":          s.Total,
		"today":          s.Today,
		"errors":         s.ErrorCount,
		"avg_latency_ms": s.AvgLatencyMs,
	}
}
