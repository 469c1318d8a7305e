package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/artpar/quotagate/domain/plan"
	"github.com/artpar/quotagate/pkg/jsonapi"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// PublicHandler serves unauthenticated endpoints.
type PublicHandler struct {
	plans   *plan.Registry
	checks  map[string]HealthCheck
	version string
}

// NewPublicHandler creates a new public handler.
func NewPublicHandler(plans *plan.Registry, checks map[string]HealthCheck, version string) *PublicHandler {
	return &PublicHandler{plans: plans, checks: checks, version: version}
}

// Plans lists the plan catalogue in configuration order.
func (h *PublicHandler) Plans(w http.ResponseWriter, r *http.Request) {
	list := h.plans.List()
	resources := make([]jsonapi.Resource, 0, len(list))
	for _, p := range list {
		resources = append(resources, planResource(p))
	}
	jsonapi.WriteCollection(w, resources, nil)
}

// Health runs the dependency checks. 503 when any of them fails.
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			results[name] = "ok"
		}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	jsonapi.WriteMeta(w, status, jsonapi.Meta{"status": overall, "checks": results})
}

// Version reports the build version.
func (h *PublicHandler) Version(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"service": "quotagate", "version": h.version})
}
