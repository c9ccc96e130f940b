package token_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/password"
	"gatekeep.org/internal/store/memory"
	"gatekeep.org/internal/token"
)

var testConfig = token.Config{
	Secret:     "test-secret",
	RefreshTTL: 7 * 24 * time.Hour,
	AccessTTL:  time.Hour,
}

func seedUser(t *testing.T, store *memory.Store, email, plain string, scopes ...string) identity.UserID {
	t.Helper()
	hash, err := password.Hash(plain)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	role := identity.Role{ID: identity.NewRoleID(), Name: "tester"}
	for _, s := range scopes {
		perm, err := identity.ParsePermission(s)
		if err != nil {
			t.Fatalf("parse permission %q: %v", s, err)
		}
		role.AddPermission(perm)
	}
	u := &identity.User{
		ID:           identity.NewUserID(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []identity.Role{role},
	}
	if err := store.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u.ID
}

func newService(t *testing.T, store *memory.Store, now time.Time) *token.Service {
	t.Helper()
	svc, err := token.NewService(store, testConfig, token.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateTokenPairRoundTrip(t *testing.T) {
	store := memory.New()
	userID := seedUser(t, store, "alice@example.com", "Sup3r$ecret", "users", "users.write")

	validFrom := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := newService(t, store, validFrom)

	refresh, acc, err := svc.CreateTokenPair(context.Background(), "Alice@Example.com ", "Sup3r$ecret", validFrom)
	if err != nil {
		t.Fatalf("create token pair: %v", err)
	}

	if refresh.TokenType != identity.TokenTypeRefresh {
		t.Fatalf("refresh token type = %q", refresh.TokenType)
	}
	if want := validFrom.Add(7 * 24 * time.Hour); !refresh.Expiration.Equal(want) {
		t.Fatalf("refresh expiration = %v, want %v", refresh.Expiration, want)
	}
	if acc.TokenType != identity.TokenTypeAccess {
		t.Fatalf("access token type = %q", acc.TokenType)
	}
	if want := validFrom.Add(time.Hour); !acc.Expiration.Equal(want) {
		t.Fatalf("access expiration = %v, want %v", acc.Expiration, want)
	}

	claims, err := svc.ParseAccessToken(acc.Token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Subject != userID.String() {
		t.Fatalf("subject = %q, want %q", claims.Subject, userID)
	}
	if claims.RefreshTokenID != refresh.ID.String() {
		t.Fatalf("rtk = %q, want %q", claims.RefreshTokenID, refresh.ID)
	}
	if len(claims.Scopes) != 2 || claims.Scopes[0] != "users" || claims.Scopes[1] != "users.write" {
		t.Fatalf("scopes = %v", claims.Scopes)
	}

	stored, err := svc.GetRefreshToken(context.Background(), refresh.Token)
	if err != nil {
		t.Fatalf("get refresh token: %v", err)
	}
	if stored.ID != refresh.ID || stored.UserID != userID {
		t.Fatalf("stored token mismatch: %+v", stored)
	}
}

func TestCreateTokenPairAuthenticationFailures(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "bob@example.com", "Sup3r$ecret")
	svc := newService(t, store, time.Now())

	_, _, unknownErr := svc.CreateTokenPair(context.Background(), "nobody@example.com", "Sup3r$ecret", time.Now())
	if !errors.Is(unknownErr, token.ErrAuthentication) {
		t.Fatalf("unknown email: got %v, want ErrAuthentication", unknownErr)
	}

	_, _, wrongErr := svc.CreateTokenPair(context.Background(), "bob@example.com", "wrong-password", time.Now())
	if !errors.Is(wrongErr, token.ErrAuthentication) {
		t.Fatalf("wrong password: got %v, want ErrAuthentication", wrongErr)
	}

	// An attacker must not be able to distinguish the two cases.
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("error messages differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestParseAccessTokenExpiryBoundary(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "carol@example.com", "Sup3r$ecret", "users")

	validFrom := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, store, validFrom)
	_, acc, err := svc.CreateTokenPair(context.Background(), "carol@example.com", "Sup3r$ecret", validFrom)
	if err != nil {
		t.Fatalf("create token pair: %v", err)
	}

	exp := validFrom.Add(time.Hour)

	if _, err := token.ParseAccessToken(acc.Token, testConfig, exp.Add(-time.Second)); err != nil {
		t.Fatalf("one second before expiry: %v", err)
	}
	// exp == now is already expired, not still valid.
	if _, err := token.ParseAccessToken(acc.Token, testConfig, exp); !errors.Is(err, token.ErrExpiredToken) {
		t.Fatalf("at expiry instant: got %v, want ErrExpiredToken", err)
	}
	if _, err := token.ParseAccessToken(acc.Token, testConfig, exp.Add(time.Second)); !errors.Is(err, token.ErrExpiredToken) {
		t.Fatalf("after expiry: got %v, want ErrExpiredToken", err)
	}
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "dave@example.com", "Sup3r$ecret", "users")

	now := time.Now()
	svc := newService(t, store, now)
	_, acc, err := svc.CreateTokenPair(context.Background(), "dave@example.com", "Sup3r$ecret", now)
	if err != nil {
		t.Fatalf("create token pair: %v", err)
	}

	if _, err := token.ParseAccessToken(acc.Token+"x", testConfig, now); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("tampered token: got %v, want ErrInvalidToken", err)
	}

	otherCfg := testConfig
	otherCfg.Secret = "different-secret"
	if _, err := token.ParseAccessToken(acc.Token, otherCfg, now); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("wrong secret: got %v, want ErrInvalidToken", err)
	}

	if _, err := token.ParseAccessToken("not-a-jwt", testConfig, now); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("garbage token: got %v, want ErrInvalidToken", err)
	}
}

func TestRevocationInvalidatesAccessTokenResolution(t *testing.T) {
	store := memory.New()
	userID := seedUser(t, store, "erin@example.com", "Sup3r$ecret", "users")

	now := time.Now()
	svc := newService(t, store, now)
	refresh, acc, err := svc.CreateTokenPair(context.Background(), "erin@example.com", "Sup3r$ecret", now)
	if err != nil {
		t.Fatalf("create token pair: %v", err)
	}

	resolved, err := svc.GetUserFromAccessToken(context.Background(), acc.Token)
	if err != nil {
		t.Fatalf("resolve before revoke: %v", err)
	}
	if resolved.ID != userID {
		t.Fatalf("resolved user = %v, want %v", resolved.ID, userID)
	}

	if err := svc.RevokeRefreshToken(context.Background(), refresh.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// The signature is still valid but the back-reference is gone.
	if _, err := svc.ParseAccessToken(acc.Token); err != nil {
		t.Fatalf("stateless parse after revoke: %v", err)
	}
	if _, err := svc.GetUserFromAccessToken(context.Background(), acc.Token); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("resolve after revoke: got %v, want ErrNotFound", err)
	}
}

func TestRevokeUnknownTokenFails(t *testing.T) {
	store := memory.New()
	svc := newService(t, store, time.Now())

	err := svc.RevokeRefreshToken(context.Background(), "never-issued")
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("revoke unknown: got %v, want ErrNotFound", err)
	}
}

// failingRepo rejects every write so the no-token-on-failure contract can be
// checked.
type failingRepo struct {
	token.Repository
}

func (failingRepo) SaveRefreshToken(context.Context, *identity.RefreshToken) error {
	return identity.ErrStorage
}

func TestCreateRefreshTokenStoreFailureReturnsNoToken(t *testing.T) {
	svc, err := token.NewService(failingRepo{Repository: memory.New()}, testConfig)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	user := &identity.TokenUser{ID: identity.NewUserID()}
	tok, err := svc.CreateRefreshToken(context.Background(), user, time.Now())
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if tok != nil {
		t.Fatalf("token returned despite write failure: %+v", tok)
	}
}

func TestRefreshTokensAreUniqueAndOpaque(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "frank@example.com", "Sup3r$ecret")
	now := time.Now()
	svc := newService(t, store, now)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		refresh, _, err := svc.CreateTokenPair(context.Background(), "frank@example.com", "Sup3r$ecret", now)
		if err != nil {
			t.Fatalf("create token pair: %v", err)
		}
		if seen[refresh.Token] {
			t.Fatal("duplicate refresh token issued")
		}
		seen[refresh.Token] = true
		if len(refresh.Token) < 128 {
			t.Fatalf("refresh token suspiciously short: %d chars", len(refresh.Token))
		}
	}
}
