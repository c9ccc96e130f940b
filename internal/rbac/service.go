package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gatekeep.org/internal/identity"
)

// Service manages roles and the shared permission catalog.
type Service struct {
	roles RoleRepository
	users UserRepository
}

// NewService constructs the RBAC management engine.
func NewService(roles RoleRepository, users UserRepository) (*Service, error) {
	if roles == nil {
		return nil, errors.New("rbac: role repository is required")
	}
	if users == nil {
		return nil, errors.New("rbac: user repository is required")
	}
	return &Service{roles: roles, users: users}, nil
}

// CreateRole assembles a role from "namespace.name" permission strings,
// reusing catalog permissions where they already exist and creating the rest.
// The resulting permission set is deduplicated by (namespace, name).
func (s *Service) CreateRole(ctx context.Context, name string, permissionNames []string) (*identity.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", identity.ErrInvalidInput)
	}

	role := &identity.Role{ID: identity.NewRoleID(), Name: name}
	for _, raw := range permissionNames {
		perm, err := identity.ParsePermission(raw)
		if err != nil {
			return nil, err
		}
		existing, err := s.roles.FindPermission(ctx, perm.Namespace, perm.Name)
		switch {
		case err == nil:
			role.AddPermission(*existing)
		case errors.Is(err, identity.ErrNotFound):
			created, err := s.roles.EnsurePermissionExists(ctx, perm)
			if err != nil {
				return nil, err
			}
			role.AddPermission(created)
		default:
			return nil, err
		}
	}

	if err := s.roles.Save(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// GetRole retrieves a role by id.
func (s *Service) GetRole(ctx context.Context, id identity.RoleID) (*identity.Role, error) {
	return s.roles.FindByID(ctx, id)
}

// ListRoles returns every role.
func (s *Service) ListRoles(ctx context.Context) ([]*identity.Role, error) {
	return s.roles.FindAll(ctx)
}

// DeleteRole removes a role. It reports false when the role does not exist.
// Permissions are independently owned and survive the role.
func (s *Service) DeleteRole(ctx context.Context, id identity.RoleID) (bool, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.roles.Delete(ctx, role); err != nil {
		return false, err
	}
	return true, nil
}

// AssignPermissionToRole ensures the permission exists in the catalog and adds
// it to the role. Adding an already-assigned permission is a no-op; the call
// reports false only when the role is missing.
func (s *Service) AssignPermissionToRole(ctx context.Context, roleID identity.RoleID, perm identity.Permission) (bool, error) {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	canonical, err := s.roles.EnsurePermissionExists(ctx, perm)
	if err != nil {
		return false, err
	}
	role.AddPermission(canonical)
	if err := s.roles.Save(ctx, role); err != nil {
		return false, err
	}
	return true, nil
}

// RemovePermissionFromRole detaches the permission and deletes it from the
// catalog when no other role still references it. The reference check is a
// live scan at removal time, acceptable on this low-frequency write path.
func (s *Service) RemovePermissionFromRole(ctx context.Context, roleID identity.RoleID, perm identity.Permission) (bool, error) {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !role.RemovePermission(perm) {
		return false, nil
	}
	if err := s.roles.Save(ctx, role); err != nil {
		return false, err
	}

	inUse, err := s.roles.AnyRoleUsesPermission(ctx, perm)
	if err != nil {
		return false, err
	}
	if !inUse {
		if err := s.roles.EnsurePermissionDeleted(ctx, perm); err != nil {
			return false, err
		}
	}
	return true, nil
}
