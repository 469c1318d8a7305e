package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/artpar/quotagate/adapters/hasher"
	"github.com/artpar/quotagate/app"
	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/pkg/jsonapi"
	"github.com/artpar/quotagate/ports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AdminHandler serves account provisioning and inspection.
// Every route requires a bearer token matching one of the configured hashes.
type AdminHandler struct {
	accounts    *app.AccountService
	stats       *app.StatsService
	hash        ports.Hasher
	tokenHashes [][]byte
	logger      zerolog.Logger
}

// AdminDeps contains dependencies for AdminHandler.
type AdminDeps struct {
	Accounts    *app.AccountService
	Stats       *app.StatsService
	Hasher      ports.Hasher
	TokenHashes [][]byte
	Logger      zerolog.Logger
}

// NewAdminHandler creates a new admin API handler.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{
		accounts:    deps.Accounts,
		stats:       deps.Stats,
		hash:        deps.Hasher,
		tokenHashes: deps.TokenHashes,
		logger:      deps.Logger.With().Str("component", "admin").Logger(),
	}
}

// Router returns the admin API router.
func (h *AdminHandler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(h.AuthMiddleware)

	r.Get("/users", h.ListAccounts)
	r.Post("/users", h.CreateAccount)
	r.Get("/users/{id}", h.GetAccount)
	r.Post("/users/{id}/reset-key", h.ResetKey)
	r.Put("/users/{id}/plan", h.ChangePlan)
	r.Get("/users/{id}/stats", h.AccountStats)
	r.Get("/users/{id}/requests", h.RecentRequests)

	return r
}

// AuthMiddleware answers 401 without a bearer token and 403 when the token
// is not an admin token.
func (h *AdminHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			jsonapi.WriteError(w, jsonapi.ErrUnauthorized("Admin token required"))
			return
		}
		if !hasher.MatchAny(h.hash, h.tokenHashes, token) {
			h.logger.Warn().Str("ip", extractIP(r)).Msg("rejected admin token")
			jsonapi.WriteError(w, jsonapi.ErrForbidden("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateAccountRequest is the body of POST /admin/users.
type CreateAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

// ChangePlanRequest is the body of PUT /admin/users/{id}/plan.
type ChangePlanRequest struct {
	Plan string `json:"plan"`
}

// CreateAccount provisions an account and returns it with its full key.
func (h *AdminHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := h.accounts.Create(r.Context(), account.CreateParams{
		Name:   req.Name,
		Email:  req.Email,
		PlanID: req.Plan,
	})
	if err != nil {
		writeGateError(w, err)
		return
	}

	jsonapi.WriteCreated(w, accountResource(acct, true), "/admin/users/"+acct.ID)
}

// ListAccounts returns a page of accounts with masked keys.
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, offset := jsonapi.ParsePaginationParams(r.URL.Query(), 20, 100)

	accounts, total, err := h.accounts.List(r.Context(), limit, offset)
	if err != nil {
		writeGateError(w, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(accounts))
	for _, a := range accounts {
		resources = append(resources, accountResource(a, false))
	}
	jsonapi.WriteCollection(w, resources, &jsonapi.Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		BaseURL: r.URL.Path,
	})
}

// GetAccount returns one account by ID or email.
func (h *AdminHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeGateError(w, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, accountResource(acct, false))
}

// ResetKey issues a new key for an account.
func (h *AdminHandler) ResetKey(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.ResetKey(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeGateError(w, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, accountResource(acct, true))
}

// ChangePlan moves an account to another plan.
func (h *AdminHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req ChangePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := h.accounts.ChangePlan(r.Context(), chi.URLParam(r, "id"), req.Plan)
	if err != nil {
		writeGateError(w, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, accountResource(acct, false))
}

// AccountStats returns the usage summary for an account.
func (h *AdminHandler) AccountStats(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeGateError(w, err)
		return
	}

	stats, err := h.stats.AccountStats(r.Context(), acct)
	if err != nil {
		writeGateError(w, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, jsonapi.Resource{
		Type:       "usage",
		ID:         acct.ID,
		Attributes: statsAttributes(stats),
	})
}

// RecentRequests returns an account's newest audit records.
func (h *AdminHandler) RecentRequests(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeGateError(w, err)
		return
	}

	limit, _ := jsonapi.ParsePaginationParams(r.URL.Query(), app.DefaultRecentRequests, 100)
	recent, err := h.stats.RecentRequests(r.Context(), acct, limit)
	if err != nil {
		writeGateError(w, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(recent.Records))
	for _, rec := range recent.Records {
		resources = append(resources, requestResource(rec))
	}
	jsonapi.WriteDocument(w, http.StatusOK, jsonapi.Document{
		Data: resources,
		Meta: summaryMeta(recent.Summary),
	})
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			jsonapi.WriteError(w, jsonapi.NewError(http.StatusRequestEntityTooLarge, "request_too_large").
				Detail("Request body too large").Build())
		case errors.Is(err, io.EOF):
			jsonapi.WriteError(w, jsonapi.ErrBadRequest("No data provided"))
		default:
			jsonapi.WriteError(w, jsonapi.ErrBadRequest("Invalid JSON body"))
		}
		return false
	}
	return true
}
