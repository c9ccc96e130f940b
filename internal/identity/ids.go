package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UserID identifies a user account.
type UserID string

// RoleID identifies a role.
type RoleID string

// PermissionID identifies a stored permission record.
type PermissionID string

// RefreshTokenID identifies a persisted refresh token.
type RefreshTokenID string

// NewUserID returns a fresh random user identifier.
func NewUserID() UserID { return UserID(uuid.NewString()) }

// NewRoleID returns a fresh random role identifier.
func NewRoleID() RoleID { return RoleID(uuid.NewString()) }

// NewPermissionID returns a fresh random permission identifier.
func NewPermissionID() PermissionID { return PermissionID(uuid.NewString()) }

// NewRefreshTokenID returns a fresh random refresh token identifier.
func NewRefreshTokenID() RefreshTokenID { return RefreshTokenID(uuid.NewString()) }

func parseID(raw, kind string) (string, error) {
	raw = strings.TrimSpace(raw)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed %s id %q", ErrInvalidInput, kind, raw)
	}
	return id.String(), nil
}

// ParseUserID validates raw as a UUID and returns it in canonical form.
func ParseUserID(raw string) (UserID, error) {
	id, err := parseID(raw, "user")
	return UserID(id), err
}

// ParseRoleID validates raw as a UUID and returns it in canonical form.
func ParseRoleID(raw string) (RoleID, error) {
	id, err := parseID(raw, "role")
	return RoleID(id), err
}

// ParseRefreshTokenID validates raw as a UUID and returns it in canonical form.
func ParseRefreshTokenID(raw string) (RefreshTokenID, error) {
	id, err := parseID(raw, "refresh token")
	return RefreshTokenID(id), err
}

func (id UserID) String() string         { return string(id) }
func (id RoleID) String() string         { return string(id) }
func (id PermissionID) String() string   { return string(id) }
func (id RefreshTokenID) String() string { return string(id) }
