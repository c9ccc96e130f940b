package token

import (
	"context"

	"gatekeep.org/internal/identity"
)

// Repository is the persistence port consumed by the token engine. Lookups
// return identity.ErrNotFound when the record is absent; storage failures are
// wrapped so they carry identity.ErrStorage.
type Repository interface {
	FindByToken(ctx context.Context, refreshToken string) (*identity.RefreshToken, error)
	SaveRefreshToken(ctx context.Context, tok *identity.RefreshToken) error
	RemoveRefreshToken(ctx context.Context, userID identity.UserID, refreshToken string) error

	FindTokenUserByEmail(ctx context.Context, email string) (*identity.TokenUser, error)
	FindTokenUserByRefreshToken(ctx context.Context, refreshToken string) (*identity.TokenUser, error)
	FindTokenUserByRefreshTokenID(ctx context.Context, id identity.RefreshTokenID) (*identity.TokenUser, error)
}
