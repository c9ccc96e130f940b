// Package httpapi is the HTTP boundary: routing, authentication middleware
// and the JSON handlers over the token, RBAC and user services.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatekeep.org/internal/obs"
	"gatekeep.org/internal/rbac"
	"gatekeep.org/internal/token"
	"gatekeep.org/internal/user"
)

// ReadyProbe reports backend readiness, typically a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Tokens     *token.Service
	RBAC       *rbac.Service
	Users      *user.Service
	TokenCfg   token.Config
	ReadyProbe ReadyProbe
	Version    string
}

// API is the HTTP layer.
type API struct {
	router   *chi.Mux
	tokens   *token.Service
	rbac     *rbac.Service
	users    *user.Service
	tokenCfg token.Config
	ready    ReadyProbe
	version  string
}

func New(deps Deps) *API {
	a := &API{
		router:   chi.NewRouter(),
		tokens:   deps.Tokens,
		rbac:     deps.RBAC,
		users:    deps.Users,
		tokenCfg: deps.TokenCfg,
		ready:    deps.ReadyProbe,
		version:  deps.Version,
	}

	r := a.router
	r.Use(RequestID)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReady)
	r.Get("/v1/info", a.handleInfo)
	r.Handle("/metrics", obs.Handler())

	// Token lifecycle. The refresh and revoke endpoints carry the opaque
	// refresh token as the bearer credential, so they stay outside the
	// access-token middleware.
	r.Post("/v1/tokens", a.handleCreateTokenPair)
	r.Post("/v1/tokens/refresh", a.handleRefreshAccessToken)
	r.Delete("/v1/tokens", a.handleRevokeToken)
	r.Post("/v1/tokens/me", a.handleTokenMe)

	// Self-service registration is public.
	r.Post("/v1/users", a.handleRegister)

	// Everything below requires a valid access token.
	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)

		r.Route("/v1/roles", func(r chi.Router) {
			r.With(a.requireAdmin).Get("/", a.handleListRoles)
			r.With(a.requireAdminWrite).Post("/", a.handleCreateRole)
			r.With(a.requireAdmin).Get("/{roleID}", a.handleGetRole)
			r.With(a.requireAdminWrite).Delete("/{roleID}", a.handleDeleteRole)
			r.With(a.requireAdminWrite).Put("/{roleID}/permissions", a.handleAssignPermission)
			r.With(a.requireAdminWrite).Delete("/{roleID}/permissions", a.handleRemovePermission)
		})

		r.With(a.requireAdmin).Get("/v1/users", a.handleQueryUsers)
		r.With(a.requireAdminWrite).Post("/v1/users/admin", a.handleAdminCreateUser)

		r.Route("/v1/users/{userID}", func(r chi.Router) {
			r.Get("/profile", a.handleGetProfile)
			r.Patch("/profile", a.handleUpdateProfile)
			r.Post("/password", a.handleChangePassword)
			r.With(a.requireAdminWrite).Delete("/", a.handleDeleteUser)

			r.With(a.requireAdminWrite).Post("/roles", a.handleAssignRole)
			r.With(a.requireAdminWrite).Delete("/roles/{roleID}", a.handleRevokeRole)
			r.With(a.requireAdminWrite).Post("/prohibitions", a.handleProhibitPermission)
			r.With(a.requireAdminWrite).Delete("/prohibitions", a.handleAllowPermission)
		})
	})

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gatekeep-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "gatekeep-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
