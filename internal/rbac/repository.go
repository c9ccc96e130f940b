package rbac

import (
	"context"

	"gatekeep.org/internal/identity"
)

// RoleRepository is the persistence port for roles and the shared permission
// catalog. Lookups return identity.ErrNotFound when the record is absent.
type RoleRepository interface {
	FindByID(ctx context.Context, id identity.RoleID) (*identity.Role, error)
	FindAll(ctx context.Context) ([]*identity.Role, error)
	Save(ctx context.Context, role *identity.Role) error
	Delete(ctx context.Context, role *identity.Role) error

	FindPermission(ctx context.Context, namespace, name string) (*identity.Permission, error)
	EnsurePermissionExists(ctx context.Context, p identity.Permission) (identity.Permission, error)
	EnsurePermissionDeleted(ctx context.Context, p identity.Permission) error
	AnyRoleUsesPermission(ctx context.Context, p identity.Permission) (bool, error)
}

// UserRepository is the slice of user persistence the RBAC engine needs for
// role assignment and prohibited-permission overrides.
type UserRepository interface {
	FindUserByID(ctx context.Context, id identity.UserID) (*identity.User, error)
	SaveUser(ctx context.Context, user *identity.User) error
}
