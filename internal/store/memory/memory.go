// Package memory implements the persistence ports in process memory. It backs
// tests and single-node development setups where PostgreSQL is overkill.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/rbac"
	"gatekeep.org/internal/token"
	"gatekeep.org/internal/user"
)

var (
	_ token.Repository    = (*Store)(nil)
	_ rbac.RoleRepository = (*Store)(nil)
	_ rbac.UserRepository = (*Store)(nil)
	_ user.Repository     = (*Store)(nil)
)

// DefaultRoleName is the role attached to self-registered accounts.
const DefaultRoleName = "member"

// Store keeps every record in maps guarded by a single mutex. Refresh tokens
// live in a TTL cache so expired entries fall out without a sweeper of our
// own.
type Store struct {
	mu          sync.RWMutex
	users       map[identity.UserID]*identity.User
	usersByMail map[string]identity.UserID
	roles       map[identity.RoleID]*identity.Role
	permissions map[string]identity.Permission
	profiles    map[identity.UserID]*identity.Profile

	tokens     *cache.Cache
	tokensByID *cache.Cache
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[identity.UserID]*identity.User),
		usersByMail: make(map[string]identity.UserID),
		roles:       make(map[identity.RoleID]*identity.Role),
		permissions: make(map[string]identity.Permission),
		profiles:    make(map[identity.UserID]*identity.Profile),
		tokens:      cache.New(cache.NoExpiration, 10*time.Minute),
		tokensByID:  cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, identity.ErrNotFound)
}

// tokenDigest keys the token cache. Raw refresh tokens are long; the digest
// also keeps the stored form aligned with the PostgreSQL store.
func tokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func permissionKey(namespace, name string) string {
	return namespace + "\x00" + name
}

func copyUser(u *identity.User) *identity.User {
	cp := *u
	cp.Roles = make([]identity.Role, len(u.Roles))
	for i, r := range u.Roles {
		cp.Roles[i] = copyRoleValue(r)
	}
	cp.ProhibitedPermissions = append([]string(nil), u.ProhibitedPermissions...)
	return &cp
}

func copyRole(r *identity.Role) *identity.Role {
	cp := copyRoleValue(*r)
	return &cp
}

func copyRoleValue(r identity.Role) identity.Role {
	r.Permissions = append([]identity.Permission(nil), r.Permissions...)
	return r
}

func copyProfile(p *identity.Profile) *identity.Profile {
	cp := *p
	return &cp
}
