package access

import (
	"errors"
	"time"

	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/token"
)

// ErrForbidden indicates a valid identity with insufficient scopes. It is
// distinct from the token package's authentication errors.
var ErrForbidden = errors.New("access: insufficient scope")

// Actor is the runtime representation of an authenticated caller, built fresh
// per request from a validated access token payload.
type Actor struct {
	UserID identity.UserID
	Scopes []Scope
}

// NewActor builds an actor from a subject id and its granted scope strings.
func NewActor(userID identity.UserID, scopes []string) Actor {
	return Actor{UserID: userID, Scopes: ScopesFromStrings(scopes)}
}

// ActorFromToken decodes and verifies a raw access token without touching any
// store. Scope changes made after issuance are not visible until the token is
// refreshed; that staleness is the price of zero-I/O authorization.
func ActorFromToken(raw string, cfg token.Config) (Actor, error) {
	claims, err := token.ParseAccessToken(raw, cfg, time.Now())
	if err != nil {
		return Actor{}, err
	}
	userID, err := identity.ParseUserID(claims.Subject)
	if err != nil {
		return Actor{}, token.ErrInvalidToken
	}
	return NewActor(userID, claims.Scopes), nil
}

// HasScope is an exact membership test.
func (a Actor) HasScope(scope Scope) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether the actor's granted scopes intersect the
// required set. Admission is OR-of-required, never AND: holding any one of
// the listed scopes is enough.
func (a Actor) HasAnyScope(required ...Scope) bool {
	for _, r := range required {
		if a.HasScope(r) {
			return true
		}
	}
	return false
}
