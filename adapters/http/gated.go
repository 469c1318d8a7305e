package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/app"
	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/pkg/jsonapi"
	"github.com/artpar/quotagate/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Endpoint names used in audit records and metrics.
const (
	EndpointAnalysis = "analysis"
	EndpointUserInfo = "user_info"
	EndpointResetKey = "reset_api_key"
)

// GatedHandler serves the endpoints that require an API key and count
// against the daily quota.
type GatedHandler struct {
	gate     *app.Gate
	analysis ports.PayloadProducer
	stats    *app.StatsService
	accounts *app.AccountService
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// GatedDeps contains dependencies for GatedHandler.
type GatedDeps struct {
	Gate     *app.Gate
	Analysis ports.PayloadProducer
	Stats    *app.StatsService
	Accounts *app.AccountService
	Metrics  *metrics.Collector // optional
	Logger   zerolog.Logger
}

// NewGatedHandler creates a new gated handler.
func NewGatedHandler(deps GatedDeps) *GatedHandler {
	return &GatedHandler{
		gate:     deps.Gate,
		analysis: deps.Analysis,
		stats:    deps.Stats,
		accounts: deps.Accounts,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "http").Logger(),
	}
}

// RegisterRoutes mounts the gated endpoints on r.
func (h *GatedHandler) RegisterRoutes(r chi.Router) {
	r.Get("/analysis/{symbol}", h.Analysis)
	r.Get("/user/info", h.UserInfo)
	r.Post("/user/reset-api-key", h.ResetKey)
}

// Analysis serves GET /analysis/{symbol}.
func (h *GatedHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, endpoint{
		name:           EndpointAnalysis,
		resourceType:   "analysis",
		subject:        chi.URLParam(r, "symbol"),
		requireSubject: true,
	}, h.analysis)
}

// UserInfo serves GET /user/info: the caller's plan and usage.
func (h *GatedHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, endpoint{name: EndpointUserInfo, resourceType: "accounts"},
		ports.PayloadProducerFunc(func(ctx context.Context, req ports.PayloadRequest) (map[string]any, error) {
			stats, err := h.stats.AccountStats(ctx, req.Account)
			if err != nil {
				return nil, err
			}
			attrs := statsAttributes(stats)
			attrs["name"] = req.Account.Name
			attrs["email"] = req.Account.Email
			return attrs, nil
		}))
}

// ResetKey serves POST /user/reset-api-key: rotates the caller's key.
// The new key is returned once and the old key stops working immediately.
func (h *GatedHandler) ResetKey(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, endpoint{name: EndpointResetKey, resourceType: "accounts"},
		ports.PayloadProducerFunc(func(ctx context.Context, req ports.PayloadRequest) (map[string]any, error) {
			acct, err := h.accounts.ResetKey(ctx, req.Account.ID)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"api_key": acct.SecretKey,
				"message": "API key reset. The previous key no longer works.",
			}, nil
		}))
}

type endpoint struct {
	name           string
	resourceType   string
	subject        string
	requireSubject bool
}

func (h *GatedHandler) serve(w http.ResponseWriter, r *http.Request, ep endpoint, producer ports.PayloadProducer) {
	start := time.Now()

	res := h.gate.Handle(r.Context(), gate.Request{
		RawKey:         extractAPIKey(r),
		Endpoint:       r.URL.Path,
		Subject:        ep.subject,
		RequireSubject: ep.requireSubject,
		RemoteIP:       extractIP(r),
		UserAgent:      r.UserAgent(),
		Received:       start,
	}, producer)

	if res.Decision.Admission.Admitted {
		writeRateHeaders(w, res.Decision.Admission)
	}

	if res.Err != nil {
		writeGateError(w, res.Err)
	} else {
		id := res.Account.ID
		if ep.subject != "" {
			id = strings.ToUpper(ep.subject)
		}
		jsonapi.WriteResource(w, http.StatusOK, jsonapi.Resource{
			Type:       ep.resourceType,
			ID:         id,
			Attributes: res.Body,
			Meta:       jsonapi.Meta{"plan": res.Decision.Plan.ID},
		})
	}

	elapsed := time.Since(start)
	planID := res.Decision.Plan.ID
	h.metrics.ObserveRequest(ep.name, res.Status, planID, elapsed)

	h.logger.Info().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("endpoint", ep.name).
		Str("account_id", res.Account.ID).
		Str("plan_id", planID).
		Int("status", res.Status).
		Str("stage", res.Stage.String()).
		Dur("latency", elapsed).
		Msg("gated request")
}
