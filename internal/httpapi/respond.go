package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gatekeep.org/internal/access"
	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/obs"
	"gatekeep.org/internal/token"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, identity.ErrNotFound)
}

// handleServiceError maps the shared error taxonomy onto HTTP statuses.
// Storage causes are logged and reported opaquely.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, token.ErrAuthentication):
		writeError(w, r, http.StatusBadRequest, token.ErrAuthentication.Error())
	case errors.Is(err, token.ErrExpiredToken):
		writeError(w, r, http.StatusUnauthorized, "token expired")
	case errors.Is(err, token.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "insufficient scope")
	case errors.Is(err, identity.ErrStorage):
		obs.LogRequest(map[string]any{
			"level":      "error",
			"msg":        "storage error",
			"error":      err.Error(),
			"request_id": RequestIDFromContext(r.Context()),
		})
		writeError(w, r, http.StatusInternalServerError, "storage error")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
