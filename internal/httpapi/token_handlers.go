package httpapi

import (
	"net/http"
	"time"

	"gatekeep.org/internal/audit"
	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/obs"
)

type createTokenPairRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPayload struct {
	Token      string    `json:"token"`
	TokenType  string    `json:"token_type"`
	Expiration time.Time `json:"expiration"`
}

type tokenPairResponse struct {
	RefreshToken tokenPayload `json:"refresh_token"`
	AccessToken  tokenPayload `json:"access_token"`
}

type tokenMeResponse struct {
	ID     identity.UserID `json:"id"`
	Scopes []string        `json:"scopes"`
}

func (a *API) handleCreateTokenPair(w http.ResponseWriter, r *http.Request) {
	var req createTokenPairRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	refresh, acc, err := a.tokens.CreateTokenPair(r.Context(), req.Email, req.Password, time.Now())
	obs.CountTokenOp("create_pair", err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "token.pair.issued", map[string]any{
		"user_id":            refresh.UserID.String(),
		"refresh_token_id":   refresh.ID.String(),
		"refresh_expiration": refresh.Expiration.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenPairResponse{
		RefreshToken: tokenPayload{
			Token:      refresh.Token,
			TokenType:  refresh.TokenType,
			Expiration: refresh.Expiration,
		},
		AccessToken: tokenPayload{
			Token:      acc.Token,
			TokenType:  acc.TokenType,
			Expiration: acc.Expiration,
		},
	})
}

// handleTokenMe resolves the bearer access token back to its user through the
// refresh-token back-reference, so a revoked session fails here even before
// the access token expires.
func (a *API) handleTokenMe(w http.ResponseWriter, r *http.Request) {
	raw, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	user, err := a.tokens.GetUserFromAccessToken(r.Context(), raw)
	obs.CountTokenOp("resolve_access", err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenMeResponse{
		ID:     user.ID,
		Scopes: user.Scopes,
	})
}

// handleRefreshAccessToken mints a fresh access token from a bearer refresh
// token. The refresh token itself is not rotated.
func (a *API) handleRefreshAccessToken(w http.ResponseWriter, r *http.Request) {
	raw, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	refresh, err := a.tokens.GetRefreshToken(r.Context(), raw)
	if err != nil {
		obs.CountTokenOp("refresh", err)
		handleServiceError(w, r, err)
		return
	}
	user, err := a.tokens.GetUserFromRefreshToken(r.Context(), raw)
	if err != nil {
		obs.CountTokenOp("refresh", err)
		handleServiceError(w, r, err)
		return
	}

	acc, err := a.tokens.CreateAccessToken(user, refresh, time.Now())
	obs.CountTokenOp("refresh", err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenPayload{
		Token:      acc.Token,
		TokenType:  acc.TokenType,
		Expiration: acc.Expiration,
	})
}

// handleRevokeToken deletes the bearer refresh token. Revoking an unknown
// token is a hard 400, never silently ignored.
func (a *API) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	raw, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	err = a.tokens.RevokeRefreshToken(r.Context(), raw)
	obs.CountTokenOp("revoke", err)
	if err != nil {
		if isNotFound(err) {
			writeError(w, r, http.StatusBadRequest, "unknown refresh token")
			return
		}
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "token.revoked", nil)
	w.WriteHeader(http.StatusNoContent)
}
