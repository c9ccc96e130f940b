package rbac

import (
	"context"
	"errors"

	"gatekeep.org/internal/identity"
)

// AssignRoleToUser attaches the role to the user's role list. Idempotent.
// Reports false when either the user or the role is missing.
func (s *Service) AssignRoleToUser(ctx context.Context, userID identity.UserID, roleID identity.RoleID) (bool, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	user.AssignRole(*role)
	if err := s.users.SaveUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// RevokeRoleFromUser detaches the role. Reports false when the user is
// missing or the role was not assigned.
func (s *Service) RevokeRoleFromUser(ctx context.Context, userID identity.UserID, roleID identity.RoleID) (bool, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !user.RemoveRole(roleID) {
		return false, nil
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// ProhibitPermissionOnUser records a per-user deny override. A prohibited
// permission beats any role-granted permission of the same name. Idempotent.
func (s *Service) ProhibitPermissionOnUser(ctx context.Context, userID identity.UserID, perm identity.Permission) (bool, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	user.AddProhibitedPermission(perm)
	if err := s.users.SaveUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// AllowPermissionOnUser lifts a deny override. Reports false when the user is
// missing or no such prohibition was recorded.
func (s *Service) AllowPermissionOnUser(ctx context.Context, userID identity.UserID, perm identity.Permission) (bool, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !user.RemoveProhibitedPermission(perm) {
		return false, nil
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}
