package pg

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"gatekeep.org/internal/identity"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func TestFindByTokenQueriesByDigest(t *testing.T) {
	store, mock := newStore(t)
	userID := identity.NewUserID()
	tokenID := identity.NewRefreshTokenID()
	expires := time.Now().Add(time.Hour).UTC()

	mock.ExpectQuery("select id, user_id, expires_at from refresh_tokens").
		WithArgs(digest("opaque-token")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at"}).
			AddRow(tokenID.String(), userID.String(), expires))

	tok, err := store.FindByToken(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if tok.ID != tokenID || tok.UserID != userID {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if tok.Token != "opaque-token" {
		t.Fatalf("raw token not preserved: %q", tok.Token)
	}
	if tok.TokenType != identity.TokenTypeRefresh {
		t.Fatalf("unexpected token type: %q", tok.TokenType)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByTokenMissingMapsToNotFound(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery("select id, user_id, expires_at from refresh_tokens").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at"}))

	_, err := store.FindByToken(context.Background(), "never-stored")
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSaveRefreshTokenStoresDigestOnly(t *testing.T) {
	store, mock := newStore(t)
	tok := &identity.RefreshToken{
		ID:         identity.NewRefreshTokenID(),
		Token:      "raw-opaque",
		TokenType:  identity.TokenTypeRefresh,
		Expiration: time.Now().Add(time.Hour),
		UserID:     identity.NewUserID(),
	}

	mock.ExpectExec("insert into refresh_tokens").
		WithArgs(tok.ID.String(), tok.UserID.String(), digest("raw-opaque"), tok.Expiration).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SaveRefreshToken(context.Background(), tok); err != nil {
		t.Fatalf("SaveRefreshToken: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRemoveRefreshTokenZeroRowsIsNotFound(t *testing.T) {
	store, mock := newStore(t)
	userID := identity.NewUserID()

	mock.ExpectExec("delete from refresh_tokens").
		WithArgs(userID.String(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RemoveRefreshToken(context.Background(), userID, "unknown")
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestStoreErrWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := storeErr("find user", cause)
	if !errors.Is(err, identity.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if got := err.Error(); got != "find user: connection refused: "+identity.ErrStorage.Error() {
		t.Fatalf("unexpected message: %q", got)
	}

	if storeErr("noop", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestStoreErrTranslatesUniqueViolation(t *testing.T) {
	err := storeErr("save user", &pgconn.PgError{Code: "23505"})
	if !errors.Is(err, identity.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestFindTokenUserByEmailLoadsScopes(t *testing.T) {
	store, mock := newStore(t)
	userID := identity.NewUserID()

	mock.ExpectQuery("select id, password_hash from users").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).
			AddRow(userID.String(), "$2a$10$hash"))
	mock.ExpectQuery("select distinct p.namespace, p.name from permissions").
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"namespace", "name"}).
			AddRow("users", "").
			AddRow("users", "write"))

	u, err := store.FindTokenUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("FindTokenUserByEmail: %v", err)
	}
	if u.ID != userID {
		t.Fatalf("unexpected user id: %v", u.ID)
	}
	if len(u.Scopes) != 2 || u.Scopes[0] != "users" || u.Scopes[1] != "users.write" {
		t.Fatalf("unexpected scopes: %v", u.Scopes)
	}
}

func TestSaveUserSyncsAssignmentsInTx(t *testing.T) {
	store, mock := newStore(t)
	role := identity.Role{ID: identity.NewRoleID(), Name: "ops"}
	u := &identity.User{
		ID:                    identity.NewUserID(),
		Email:                 "ops@example.com",
		PasswordHash:          "$2a$10$hash",
		CreatedAt:             time.Now(),
		Roles:                 []identity.Role{role},
		ProhibitedPermissions: []string{"users.write"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("insert into users").
		WithArgs(u.ID.String(), u.Email, u.PasswordHash, u.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from user_roles").
		WithArgs(u.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into user_roles").
		WithArgs(u.ID.String(), role.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from prohibited_permissions").
		WithArgs(u.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into prohibited_permissions").
		WithArgs(u.ID.String(), "users.write").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
