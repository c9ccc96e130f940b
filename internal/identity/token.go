package identity

import (
	"time"

	"gatekeep.org/internal/password"
)

// Token type discriminators carried on issued credentials.
const (
	TokenTypeRefresh = "refresh"
	TokenTypeAccess  = "access"
)

// TokenUser is the read-side projection the token engine works with: just
// enough identity to authenticate and to snapshot scopes into an access token.
// It is re-fetched from the store per operation, never mutated in place.
type TokenUser struct {
	ID           UserID   `json:"id"`
	PasswordHash string   `json:"-"`
	Scopes       []string `json:"scopes"`
}

// VerifyPassword checks plain against the stored hash.
func (u *TokenUser) VerifyPassword(plain string) bool {
	return password.Verify(u.PasswordHash, plain) == nil
}

// RefreshToken is the long-lived, server-tracked opaque credential. Created
// once, immutable, deleted on revocation.
type RefreshToken struct {
	ID         RefreshTokenID `json:"id"`
	Token      string         `json:"token"`
	TokenType  string         `json:"token_type"`
	Expiration time.Time      `json:"expiration"`
	UserID     UserID         `json:"user_id"`
}

// AccessToken is the short-lived, stateless signed credential. It is never
// persisted; signature plus unexpired exp is the sole proof of validity.
type AccessToken struct {
	Token      string    `json:"token"`
	TokenType  string    `json:"token_type"`
	Expiration time.Time `json:"expiration"`
}
