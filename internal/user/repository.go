package user

import (
	"context"

	"gatekeep.org/internal/identity"
)

// Query narrows and pages an admin user listing.
type Query struct {
	Email  string
	Limit  int
	Offset int
}

// Repository is the persistence port for user and profile management.
type Repository interface {
	FindUserByID(ctx context.Context, id identity.UserID) (*identity.User, error)
	FindUserByEmail(ctx context.Context, email string) (*identity.User, error)
	SaveUser(ctx context.Context, u *identity.User) error
	DeleteUser(ctx context.Context, id identity.UserID) error

	FindProfileByID(ctx context.Context, userID identity.UserID) (*identity.Profile, error)
	SaveProfile(ctx context.Context, p *identity.Profile) error
	DeleteProfile(ctx context.Context, userID identity.UserID) error
	QueryProfiles(ctx context.Context, q Query) ([]*identity.Profile, int, error)

	FindDefaultRole(ctx context.Context) (*identity.Role, error)
	FindRoleByID(ctx context.Context, id identity.RoleID) (*identity.Role, error)
}
