// Package http provides the HTTP surface: gated endpoints, admin API and
// public endpoints on a chi router.
package http

import (
	"net/http"

	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/pkg/jsonapi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig contains the handlers and options for NewRouter.
type RouterConfig struct {
	Gated  *GatedHandler
	Admin  *AdminHandler // optional; admin API disabled when nil
	Public *PublicHandler

	Metrics     *metrics.Collector // optional
	MetricsPath string             // defaults to /metrics
	BodyLimit   int64              // defaults to DefaultBodyLimit

	// RequireHTTPS rejects plain HTTP with 403, except /health.
	RequireHTTPS bool

	Logger zerolog.Logger
}

// NewRouter creates the main HTTP router.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.BodyLimit == 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors)
	if cfg.RequireHTTPS {
		r.Use(requireHTTPS(cfg.Logger, "/health"))
	}
	r.Use(bodyLimit(cfg.BodyLimit))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("No route for "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteError(w, jsonapi.ErrMethodNotAllowed(r.Method))
	})

	// Public endpoints (no auth required)
	r.Get("/health", cfg.Public.Health)
	r.Get("/version", cfg.Public.Version)
	r.Get("/plans", cfg.Public.Plans)
	if cfg.Metrics != nil {
		r.Handle(cfg.MetricsPath, cfg.Metrics.Handler())
	}

	// API key + quota
	cfg.Gated.RegisterRoutes(r)

	// Admin API (if enabled)
	if cfg.Admin != nil {
		r.Mount("/admin", cfg.Admin.Router())
	}

	return r
}
