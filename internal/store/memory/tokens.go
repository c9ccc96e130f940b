package memory

import (
	"context"
	"time"

	"gatekeep.org/internal/identity"
)

// FindByToken looks up a stored refresh token by its opaque string.
func (s *Store) FindByToken(_ context.Context, refreshToken string) (*identity.RefreshToken, error) {
	v, ok := s.tokens.Get(tokenDigest(refreshToken))
	if !ok {
		return nil, notFound("find refresh token")
	}
	tok := v.(identity.RefreshToken)
	return &tok, nil
}

// SaveRefreshToken stores a freshly minted refresh token under both its
// digest and its id. The cache TTL tracks the token's own expiration.
func (s *Store) SaveRefreshToken(_ context.Context, tok *identity.RefreshToken) error {
	ttl := time.Until(tok.Expiration)
	s.tokens.Set(tokenDigest(tok.Token), *tok, ttl)
	s.tokensByID.Set(string(tok.ID), *tok, ttl)
	return nil
}

// RemoveRefreshToken deletes the specific (user, token) pair. A missing pair
// is reported as not found, never swallowed.
func (s *Store) RemoveRefreshToken(_ context.Context, userID identity.UserID, refreshToken string) error {
	key := tokenDigest(refreshToken)
	v, ok := s.tokens.Get(key)
	if !ok {
		return notFound("remove refresh token")
	}
	tok := v.(identity.RefreshToken)
	if tok.UserID != userID {
		return notFound("remove refresh token")
	}
	s.tokens.Delete(key)
	s.tokensByID.Delete(string(tok.ID))
	return nil
}

// FindTokenUserByEmail loads the token-side user projection by email.
func (s *Store) FindTokenUserByEmail(_ context.Context, email string) (*identity.TokenUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByMail[email]
	if !ok {
		return nil, notFound("find user by email")
	}
	return s.tokenUserLocked(id)
}

// FindTokenUserByRefreshToken resolves the owning user of an opaque refresh
// token.
func (s *Store) FindTokenUserByRefreshToken(ctx context.Context, refreshToken string) (*identity.TokenUser, error) {
	tok, err := s.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, notFound("find user by refresh token")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenUserLocked(tok.UserID)
}

// FindTokenUserByRefreshTokenID resolves the owning user by the refresh
// token's id, the back-reference carried inside access tokens.
func (s *Store) FindTokenUserByRefreshTokenID(_ context.Context, id identity.RefreshTokenID) (*identity.TokenUser, error) {
	v, ok := s.tokensByID.Get(string(id))
	if !ok {
		return nil, notFound("find user by refresh token id")
	}
	tok := v.(identity.RefreshToken)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenUserLocked(tok.UserID)
}

func (s *Store) tokenUserLocked(id identity.UserID) (*identity.TokenUser, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("find user")
	}
	return &identity.TokenUser{
		ID:           u.ID,
		PasswordHash: u.PasswordHash,
		Scopes:       u.Scopes(),
	}, nil
}
