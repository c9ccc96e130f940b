package pg

import (
	"context"
	"database/sql"
	"fmt"

	"gatekeep.org/internal/identity"
)

// FindByToken looks up a stored refresh token by its opaque string.
func (s *Store) FindByToken(ctx context.Context, refreshToken string) (*identity.RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, expires_at from refresh_tokens where token_hash=$1`,
		tokenDigest(refreshToken),
	)
	tok := identity.RefreshToken{Token: refreshToken, TokenType: identity.TokenTypeRefresh}
	if err := row.Scan(&tok.ID, &tok.UserID, &tok.Expiration); err != nil {
		return nil, storeErr("find refresh token", err)
	}
	return &tok, nil
}

// SaveRefreshToken persists a freshly minted refresh token.
func (s *Store) SaveRefreshToken(ctx context.Context, tok *identity.RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token_hash, expires_at) values($1,$2,$3,$4)`,
		tok.ID, tok.UserID, tokenDigest(tok.Token), tok.Expiration,
	)
	return storeErr("save refresh token", err)
}

// RemoveRefreshToken deletes the specific (user, token) pair. A missing pair
// is reported as not found, never swallowed.
func (s *Store) RemoveRefreshToken(ctx context.Context, userID identity.UserID, refreshToken string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where user_id=$1 and token_hash=$2`,
		userID, tokenDigest(refreshToken),
	)
	if err != nil {
		return storeErr("remove refresh token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("remove refresh token", err)
	}
	if n == 0 {
		return fmt.Errorf("remove refresh token: %w", identity.ErrNotFound)
	}
	return nil
}

// FindTokenUserByEmail loads the token-side user projection by email.
func (s *Store) FindTokenUserByEmail(ctx context.Context, email string) (*identity.TokenUser, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, password_hash from users where email=$1`, email)
	var u identity.TokenUser
	if err := row.Scan(&u.ID, &u.PasswordHash); err != nil {
		return nil, storeErr("find user by email", err)
	}
	scopes, err := s.userScopes(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Scopes = scopes
	return &u, nil
}

// FindTokenUserByRefreshToken resolves the owning user of an opaque refresh token.
func (s *Store) FindTokenUserByRefreshToken(ctx context.Context, refreshToken string) (*identity.TokenUser, error) {
	row := s.db.QueryRowContext(ctx,
		`select u.id, u.password_hash from users u
		 join refresh_tokens rt on rt.user_id=u.id
		 where rt.token_hash=$1`, tokenDigest(refreshToken))
	return s.scanTokenUser(ctx, row, "find user by refresh token")
}

// FindTokenUserByRefreshTokenID resolves the owning user by the refresh token's id,
// the rtk back-reference carried inside access tokens.
func (s *Store) FindTokenUserByRefreshTokenID(ctx context.Context, id identity.RefreshTokenID) (*identity.TokenUser, error) {
	row := s.db.QueryRowContext(ctx,
		`select u.id, u.password_hash from users u
		 join refresh_tokens rt on rt.user_id=u.id
		 where rt.id=$1`, id)
	return s.scanTokenUser(ctx, row, "find user by refresh token id")
}

func (s *Store) scanTokenUser(ctx context.Context, row *sql.Row, op string) (*identity.TokenUser, error) {
	var u identity.TokenUser
	if err := row.Scan(&u.ID, &u.PasswordHash); err != nil {
		return nil, storeErr(op, err)
	}
	scopes, err := s.userScopes(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Scopes = scopes
	return &u, nil
}

// userScopes flattens the user's role permissions into "namespace.name"
// scope strings.
func (s *Store) userScopes(ctx context.Context, userID identity.UserID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct p.namespace, p.name from permissions p
		 join role_permissions rp on rp.permission_id=p.id
		 join user_roles ur on ur.role_id=rp.role_id
		 where ur.user_id=$1
		 order by p.namespace, p.name`, userID)
	if err != nil {
		return nil, storeErr("load user scopes", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var p identity.Permission
		if err := rows.Scan(&p.Namespace, &p.Name); err != nil {
			return nil, storeErr("load user scopes", err)
		}
		scopes = append(scopes, p.FullName())
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load user scopes", err)
	}
	return scopes, nil
}

// DeleteExpiredRefreshTokens prunes tokens whose expiration has passed. Run
// from the maintenance path, not the request path.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from refresh_tokens where expires_at <= now()`)
	if err != nil {
		return 0, storeErr("delete expired refresh tokens", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("delete expired refresh tokens", err)
	}
	return n, nil
}
