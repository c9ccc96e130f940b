package identity

import (
	"sort"
	"time"
)

// User is the management-side view of an account: credentials, assigned roles
// and per-user prohibited permissions (deny overrides).
type User struct {
	ID           UserID    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	Roles []Role `json:"roles"`
	// ProhibitedPermissions lists permission full names explicitly denied for
	// this user. A prohibition beats any role-granted permission of the same
	// name.
	ProhibitedPermissions []string `json:"prohibited_permissions"`
}

// AssignRole adds role to the user unless a role with the same id is already
// assigned.
func (u *User) AssignRole(role Role) {
	for _, r := range u.Roles {
		if r.ID == role.ID {
			return
		}
	}
	u.Roles = append(u.Roles, role)
}

// RemoveRole drops the role with the given id. It reports whether the role was
// assigned.
func (u *User) RemoveRole(roleID RoleID) bool {
	for i, r := range u.Roles {
		if r.ID == roleID {
			u.Roles = append(u.Roles[:i], u.Roles[i+1:]...)
			return true
		}
	}
	return false
}

// AddProhibitedPermission denies the permission for this user. Idempotent.
func (u *User) AddProhibitedPermission(p Permission) {
	name := p.FullName()
	for _, existing := range u.ProhibitedPermissions {
		if existing == name {
			return
		}
	}
	u.ProhibitedPermissions = append(u.ProhibitedPermissions, name)
}

// RemoveProhibitedPermission lifts a previously recorded denial. It reports
// whether the denial existed.
func (u *User) RemoveProhibitedPermission(p Permission) bool {
	name := p.FullName()
	for i, existing := range u.ProhibitedPermissions {
		if existing == name {
			u.ProhibitedPermissions = append(u.ProhibitedPermissions[:i], u.ProhibitedPermissions[i+1:]...)
			return true
		}
	}
	return false
}

// Scopes returns the sorted union of permission full names across all assigned
// roles. Prohibitions are not subtracted here; they apply in HasPermission.
func (u *User) Scopes() []string {
	set := make(map[string]struct{})
	for _, role := range u.Roles {
		for _, p := range role.Permissions {
			set[p.FullName()] = struct{}{}
		}
	}
	scopes := make([]string, 0, len(set))
	for s := range set {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes
}

// HasPermission evaluates deny-wins: an explicit prohibition short-circuits to
// false before any role is consulted.
func (u *User) HasPermission(p Permission) bool {
	name := p.FullName()
	for _, prohibited := range u.ProhibitedPermissions {
		if prohibited == name {
			return false
		}
	}
	for _, role := range u.Roles {
		if role.HasPermission(p) {
			return true
		}
	}
	return false
}
