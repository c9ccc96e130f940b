package identity

// Role is a named bundle of permissions assignable to users. The permission
// slice keeps set semantics: membership is decided by (namespace, name).
type Role struct {
	ID          RoleID       `json:"id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// HasPermission reports whether the role already carries p.
func (r *Role) HasPermission(p Permission) bool {
	for _, existing := range r.Permissions {
		if existing.Equal(p) {
			return true
		}
	}
	return false
}

// AddPermission appends p unless an equal permission is already present.
// Adding twice is a no-op, not a duplicate.
func (r *Role) AddPermission(p Permission) {
	if r.HasPermission(p) {
		return
	}
	r.Permissions = append(r.Permissions, p)
}

// RemovePermission drops p from the role. It reports whether p was assigned.
func (r *Role) RemovePermission(p Permission) bool {
	for i, existing := range r.Permissions {
		if existing.Equal(p) {
			r.Permissions = append(r.Permissions[:i], r.Permissions[i+1:]...)
			return true
		}
	}
	return false
}

// PermissionNames returns the flattened full names of all role permissions.
func (r *Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.FullName())
	}
	return names
}
