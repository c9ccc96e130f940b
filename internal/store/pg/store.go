// Package pg implements the persistence ports over PostgreSQL using
// database/sql with the pgx stdlib driver.
package pg

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/rbac"
	"gatekeep.org/internal/token"
	"gatekeep.org/internal/user"
)

var (
	_ token.Repository   = (*Store)(nil)
	_ rbac.RoleRepository = (*Store)(nil)
	_ rbac.UserRepository = (*Store)(nil)
	_ user.Repository    = (*Store)(nil)
)

// DefaultRoleName is the role attached to self-registered accounts.
const DefaultRoleName = "member"

// Store provides all persistence ports backed by a single PostgreSQL
// database.
type Store struct {
	db *sql.DB
}

// New constructs a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// storeErr translates low-level storage errors into the shared taxonomy:
// sql.ErrNoRows becomes identity.ErrNotFound, anything else is wrapped with
// operation context and identity.ErrStorage. The original cause stays in the
// message for logs but is never surfaced verbatim to clients.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, identity.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return fmt.Errorf("%s: %w", op, identity.ErrConflict)
	}
	return fmt.Errorf("%s: %v: %w", op, err, identity.ErrStorage)
}

const pgErrUniqueViolation = "23505"

// tokenDigest is the stored form of an opaque refresh token. Only the SHA-256
// of the token ever reaches the database.
func tokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
