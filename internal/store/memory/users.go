package memory

import (
	"context"
	"sort"
	"strings"

	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/user"
)

// FindUserByID loads the management-side user with roles and prohibitions.
func (s *Store) FindUserByID(_ context.Context, id identity.UserID) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("find user")
	}
	return copyUser(u), nil
}

// FindUserByEmail loads the management-side user by email.
func (s *Store) FindUserByEmail(_ context.Context, email string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByMail[email]
	if !ok {
		return nil, notFound("find user by email")
	}
	return copyUser(s.users[id]), nil
}

// SaveUser stores the account, replacing any previous version. Email changes
// move the email index along with the record.
func (s *Store) SaveUser(_ context.Context, u *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.users[u.ID]; ok && prev.Email != u.Email {
		delete(s.usersByMail, prev.Email)
	}
	s.users[u.ID] = copyUser(u)
	s.usersByMail[u.Email] = u.ID
	return nil
}

// DeleteUser removes the account and its email index entry.
func (s *Store) DeleteUser(_ context.Context, id identity.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("delete user")
	}
	delete(s.usersByMail, u.Email)
	delete(s.users, id)
	return nil
}

// FindProfileByID loads the profile attached to a user account.
func (s *Store) FindProfileByID(_ context.Context, userID identity.UserID) (*identity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, notFound("find profile")
	}
	return copyProfile(p), nil
}

// SaveProfile stores the profile, replacing any previous version.
func (s *Store) SaveProfile(_ context.Context, p *identity.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = copyProfile(p)
	return nil
}

// DeleteProfile removes the profile. Absent profiles are not an error.
func (s *Store) DeleteProfile(_ context.Context, userID identity.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

// QueryProfiles pages the profile listing, optionally narrowed by email
// substring. The second return is the total match count before paging.
func (s *Store) QueryProfiles(_ context.Context, q user.Query) ([]*identity.Profile, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*identity.Profile
	needle := strings.ToLower(q.Email)
	for _, p := range s.profiles {
		if needle != "" && !strings.Contains(strings.ToLower(p.Email), needle) {
			continue
		}
		matched = append(matched, copyProfile(p))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })

	total := len(matched)
	if q.Offset >= total {
		return nil, total, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

// FindDefaultRole loads the role attached to self-registered accounts.
func (s *Store) FindDefaultRole(_ context.Context) (*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.roles {
		if role.Name == DefaultRoleName {
			return copyRole(role), nil
		}
	}
	return nil, notFound("find default role")
}

// FindRoleByID is the user-management view of role lookup.
func (s *Store) FindRoleByID(ctx context.Context, id identity.RoleID) (*identity.Role, error) {
	return s.FindByID(ctx, id)
}
