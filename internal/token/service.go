package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatekeep.org/internal/identity"
)

const (
	defaultAlgorithm  = "HS256"
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultAccessTTL  = time.Hour

	// Entropy of the opaque refresh token string before encoding.
	refreshTokenBytes = 128
)

// Config is the immutable signing and lifetime configuration of the engine.
// It is injected at construction and never mutated afterwards.
type Config struct {
	Secret     string
	Algorithm  string
	RefreshTTL time.Duration
	AccessTTL  time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Algorithm) == "" {
		c.Algorithm = defaultAlgorithm
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = defaultRefreshTTL
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = defaultAccessTTL
	}
	return c
}

// Claims is the signed payload of an access token: the subject user id, the
// originating refresh token id, and the scope snapshot taken at minting time.
type Claims struct {
	RefreshTokenID string   `json:"rtk"`
	Scopes         []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Service issues, validates and revokes token pairs.
type Service struct {
	repo Repository
	cfg  Config
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

// NewService constructs the token engine with its persistence port and
// configuration.
func NewService(repo Repository, cfg Config, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("token: repository is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	cfg = cfg.withDefaults()
	if jwt.GetSigningMethod(cfg.Algorithm) == nil {
		return nil, fmt.Errorf("token: unsupported signing algorithm %q", cfg.Algorithm)
	}
	s := &Service{repo: repo, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateRefreshToken mints and persists a new opaque refresh token for user.
// When the store write fails no token is returned.
func (s *Service) CreateRefreshToken(ctx context.Context, user *identity.TokenUser, validFrom time.Time) (*identity.RefreshToken, error) {
	opaque, err := generateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	tok := &identity.RefreshToken{
		ID:         identity.NewRefreshTokenID(),
		Token:      opaque,
		TokenType:  identity.TokenTypeRefresh,
		Expiration: validFrom.Add(s.cfg.RefreshTTL),
		UserID:     user.ID,
	}
	if err := s.repo.SaveRefreshToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	return tok, nil
}

// CreateAccessToken signs a stateless access token bound to the given refresh
// token. Pure computation: it never touches the persistence layer, which is
// why it is split from CreateRefreshToken.
func (s *Service) CreateAccessToken(user *identity.TokenUser, refresh *identity.RefreshToken, validFrom time.Time) (*identity.AccessToken, error) {
	expiration := validFrom.Add(s.cfg.AccessTTL)
	claims := Claims{
		RefreshTokenID: refresh.ID.String(),
		Scopes:         user.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(validFrom),
			ExpiresAt: jwt.NewNumericDate(expiration),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.GetSigningMethod(s.cfg.Algorithm), claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &identity.AccessToken{
		Token:      signed,
		TokenType:  identity.TokenTypeAccess,
		Expiration: expiration,
	}, nil
}

// CreateTokenPair authenticates the credentials and issues a refresh/access
// pair. Unknown email and wrong password produce the identical error.
func (s *Service) CreateTokenPair(ctx context.Context, email, plainPassword string, validFrom time.Time) (*identity.RefreshToken, *identity.AccessToken, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.repo.FindTokenUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, nil, ErrAuthentication
		}
		return nil, nil, err
	}
	if !user.VerifyPassword(plainPassword) {
		return nil, nil, ErrAuthentication
	}
	refresh, err := s.CreateRefreshToken(ctx, user, validFrom)
	if err != nil {
		return nil, nil, err
	}
	access, err := s.CreateAccessToken(user, refresh, validFrom)
	if err != nil {
		return nil, nil, err
	}
	return refresh, access, nil
}

// GetRefreshToken looks up the stored refresh token record itself.
func (s *Service) GetRefreshToken(ctx context.Context, refreshToken string) (*identity.RefreshToken, error) {
	tok, err := s.repo.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// GetUserFromRefreshToken resolves the owning user of an opaque refresh token.
func (s *Service) GetUserFromRefreshToken(ctx context.Context, refreshToken string) (*identity.TokenUser, error) {
	return s.repo.FindTokenUserByRefreshToken(ctx, refreshToken)
}

// ParseAccessToken verifies the signature and expiry of a raw access token and
// returns its claims. Bad signature or malformed structure yields
// ErrInvalidToken; a token whose exp is at or before the current instant
// yields ErrExpiredToken.
func (s *Service) ParseAccessToken(raw string) (*Claims, error) {
	return ParseAccessToken(raw, s.cfg, s.now())
}

// GetUserFromAccessToken fully re-resolves the owning user of an access token
// through its rtk back-reference. Revoking the parent refresh token therefore
// invalidates this path immediately: the lookup returns not-found once the
// refresh token row is gone.
func (s *Service) GetUserFromAccessToken(ctx context.Context, accessToken string) (*identity.TokenUser, error) {
	claims, err := s.ParseAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	rtk, err := identity.ParseRefreshTokenID(claims.RefreshTokenID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.repo.FindTokenUserByRefreshTokenID(ctx, rtk)
}

// RevokeRefreshToken removes the (user, token) pair from the store. Revoking a
// token unknown to the store is a hard failure, never a silent success.
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	user, err := s.repo.FindTokenUserByRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	return s.repo.RemoveRefreshToken(ctx, user.ID, refreshToken)
}

// ParseAccessToken is the stateless decode used both by the engine and by the
// request boundary: no store round-trip, just signature and expiry checks.
func ParseAccessToken(raw string, cfg Config, now time.Time) (*Claims, error) {
	cfg = cfg.withDefaults()
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{cfg.Algorithm}),
		// Expiry is checked below against the injected clock so that the
		// boundary condition exp == now fails deterministically.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		return nil, ErrExpiredToken
	}
	if strings.TrimSpace(claims.RefreshTokenID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
