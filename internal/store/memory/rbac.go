package memory

import (
	"context"
	"sort"

	"gatekeep.org/internal/identity"
)

// FindByID loads a role with its permission set.
func (s *Store) FindByID(_ context.Context, id identity.RoleID) (*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, notFound("find role")
	}
	return copyRole(role), nil
}

// FindAll loads every role, ordered by name.
func (s *Store) FindAll(_ context.Context) ([]*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]*identity.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, copyRole(role))
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// Save stores the role, replacing any previous version.
func (s *Store) Save(_ context.Context, role *identity.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.ID] = copyRole(role)
	return nil
}

// Delete removes the role and strips it from every user holding it.
func (s *Store) Delete(_ context.Context, role *identity.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, role.ID)
	for _, u := range s.users {
		u.RemoveRole(role.ID)
	}
	return nil
}

// FindPermission looks up a catalog permission by its identity pair.
func (s *Store) FindPermission(_ context.Context, namespace, name string) (*identity.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permissionKey(namespace, name)]
	if !ok {
		return nil, notFound("find permission")
	}
	return &p, nil
}

// EnsurePermissionExists creates the catalog record when missing and returns
// the canonical permission either way.
func (s *Store) EnsurePermissionExists(_ context.Context, p identity.Permission) (identity.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := permissionKey(p.Namespace, p.Name)
	if existing, ok := s.permissions[key]; ok {
		return existing, nil
	}
	s.permissions[key] = p
	return p, nil
}

// EnsurePermissionDeleted removes the catalog record if present.
func (s *Store) EnsurePermissionDeleted(_ context.Context, p identity.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.permissions, permissionKey(p.Namespace, p.Name))
	return nil
}

// AnyRoleUsesPermission reports whether any role still links the permission.
func (s *Store) AnyRoleUsesPermission(_ context.Context, p identity.Permission) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.roles {
		if role.HasPermission(p) {
			return true, nil
		}
	}
	return false, nil
}
