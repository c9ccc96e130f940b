package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gatekeep.org/internal/access"
	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth decodes the bearer access token statelessly and puts the resulting
// actor on the context. No database is touched here.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		actor, err := access.ActorFromToken(raw, a.tokenCfg)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrExpiredToken):
				writeError(w, r, http.StatusUnauthorized, "token expired")
			case errors.Is(err, token.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := access.ContextWithActor(r.Context(), actor)
		ctx = access.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin admits actors holding the user-management read scope or wider.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return requireScopes(next, access.ScopeUsers, access.ScopeUsersWrite)
}

// requireAdminWrite admits only the user-management write scope.
func (a *API) requireAdminWrite(next http.Handler) http.Handler {
	return requireScopes(next, access.ScopeUsersWrite)
}

// requireScopes admits the request when the actor holds at least one of the
// required scopes.
func requireScopes(next http.Handler, required ...access.Scope) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := access.ActorFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if !actor.HasAnyScope(required...) {
			writeError(w, r, http.StatusForbidden, "insufficient scope")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// selfOrScopes admits the actor when it is acting on its own account and
// holds one of selfScopes, or when it holds one of adminScopes regardless of
// the target. It reports whether the request may proceed.
func (a *API) selfOrScopes(w http.ResponseWriter, r *http.Request, target identity.UserID, selfScopes, adminScopes []access.Scope) bool {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return false
	}
	if actor.HasAnyScope(adminScopes...) {
		return true
	}
	if actor.UserID == target && actor.HasAnyScope(selfScopes...) {
		return true
	}
	writeError(w, r, http.StatusForbidden, "insufficient scope")
	return false
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	raw := strings.TrimSpace(header[len(bearer):])
	if raw == "" {
		return "", errors.New("missing bearer token")
	}
	return raw, nil
}
