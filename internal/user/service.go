package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/password"
)

// ErrIncorrectPassword is returned by ChangePassword when the current
// password does not verify.
var ErrIncorrectPassword = errors.New("user: incorrect password")

// Registration carries the input for self-service account creation.
type Registration struct {
	Email    string
	Password string
	Profile  identity.Profile
}

// AdminCreate carries the input for an admin-created account with explicit
// role assignments.
type AdminCreate struct {
	Registration
	RoleIDs []identity.RoleID
}

// ProfileUpdate applies partial changes to a profile. Nil fields are left
// untouched.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Address     *string
	City        *string
	State       *string
	ZipCode     *string
	Country     *string
	Avatar      *string
	Bio         *string
	Website     *string
	BirthDate   *string
}

// Service manages accounts and profiles.
type Service struct {
	repo Repository
	now  func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the user management service.
func NewService(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("user: repository is required")
	}
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a new account with the default role and its profile.
func (s *Service) Register(ctx context.Context, input Registration) (*identity.User, error) {
	u, err := s.newUser(ctx, input)
	if err != nil {
		return nil, err
	}
	role, err := s.repo.FindDefaultRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("find default role: %w", err)
	}
	u.AssignRole(*role)
	return u, s.persistNew(ctx, u, input.Profile)
}

// AdminCreateUser creates an account with explicit roles. Unknown role ids are
// skipped rather than failing the whole creation.
func (s *Service) AdminCreateUser(ctx context.Context, input AdminCreate) (*identity.User, error) {
	u, err := s.newUser(ctx, input.Registration)
	if err != nil {
		return nil, err
	}
	for _, roleID := range input.RoleIDs {
		role, err := s.repo.FindRoleByID(ctx, roleID)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				continue
			}
			return nil, err
		}
		u.AssignRole(*role)
	}
	return u, s.persistNew(ctx, u, input.Profile)
}

func (s *Service) newUser(ctx context.Context, input Registration) (*identity.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", identity.ErrInvalidInput)
	}
	if _, err := s.repo.FindUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", identity.ErrConflict)
	} else if !errors.Is(err, identity.ErrNotFound) {
		return nil, err
	}
	if err := identity.ValidatePasswordStrength(input.Password); err != nil {
		return nil, err
	}
	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	return &identity.User{
		ID:           identity.NewUserID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}, nil
}

func (s *Service) persistNew(ctx context.Context, u *identity.User, profile identity.Profile) error {
	if err := s.repo.SaveUser(ctx, u); err != nil {
		return err
	}
	profile.UserID = u.ID
	profile.Email = u.Email
	return s.repo.SaveProfile(ctx, &profile)
}

// GetProfile fetches a user's profile.
func (s *Service) GetProfile(ctx context.Context, userID identity.UserID) (*identity.Profile, error) {
	return s.repo.FindProfileByID(ctx, userID)
}

// QueryProfiles pages through profiles for an admin listing.
func (s *Service) QueryProfiles(ctx context.Context, q Query) ([]*identity.Profile, int, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.repo.QueryProfiles(ctx, q)
}

// UpdateProfile applies a partial update and returns the stored result.
func (s *Service) UpdateProfile(ctx context.Context, userID identity.UserID, upd ProfileUpdate) (*identity.Profile, error) {
	profile, err := s.repo.FindProfileByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&profile.FirstName, upd.FirstName)
	apply(&profile.LastName, upd.LastName)
	apply(&profile.PhoneNumber, upd.PhoneNumber)
	apply(&profile.Address, upd.Address)
	apply(&profile.City, upd.City)
	apply(&profile.State, upd.State)
	apply(&profile.ZipCode, upd.ZipCode)
	apply(&profile.Country, upd.Country)
	apply(&profile.Avatar, upd.Avatar)
	apply(&profile.Bio, upd.Bio)
	apply(&profile.Website, upd.Website)
	apply(&profile.BirthDate, upd.BirthDate)
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ChangePassword verifies the current password, strength-checks the new one
// and stores its hash.
func (s *Service) ChangePassword(ctx context.Context, userID identity.UserID, current, next string) error {
	u, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if password.Verify(u.PasswordHash, current) != nil {
		return ErrIncorrectPassword
	}
	if err := identity.ValidatePasswordStrength(next); err != nil {
		return err
	}
	hash, err := password.Hash(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.repo.SaveUser(ctx, u)
}

// AssignRoles attaches the given roles to the user; unknown role ids are
// skipped.
func (s *Service) AssignRoles(ctx context.Context, userID identity.UserID, roleIDs []identity.RoleID) error {
	u, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		role, err := s.repo.FindRoleByID(ctx, roleID)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				continue
			}
			return err
		}
		u.AssignRole(*role)
	}
	return s.repo.SaveUser(ctx, u)
}

// RemoveRoles detaches the given roles from the user.
func (s *Service) RemoveRoles(ctx context.Context, userID identity.UserID, roleIDs []identity.RoleID) error {
	u, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		u.RemoveRole(roleID)
	}
	return s.repo.SaveUser(ctx, u)
}

// DeleteUser removes the account and its profile.
func (s *Service) DeleteUser(ctx context.Context, userID identity.UserID) error {
	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.DeleteProfile(ctx, userID)
}
