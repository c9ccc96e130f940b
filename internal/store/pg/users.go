package pg

import (
	"context"
	"database/sql"

	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/user"
)

// FindUserByID loads the management-side user with roles and prohibitions.
func (s *Store) FindUserByID(ctx context.Context, id identity.UserID) (*identity.User, error) {
	return s.findUser(ctx,
		`select id, email, password_hash, created_at from users where id=$1`, id)
}

// FindUserByEmail loads the management-side user by email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return s.findUser(ctx,
		`select id, email, password_hash, created_at from users where email=$1`, email)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var u identity.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, storeErr("find user", err)
	}
	roles, err := s.userRoles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	prohibited, err := s.userProhibitions(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.ProhibitedPermissions = prohibited
	return &u, nil
}

// SaveUser upserts the account row and rewrites role assignments and
// prohibited permissions to mirror the in-memory user.
func (s *Store) SaveUser(ctx context.Context, u *identity.User) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`insert into users(id, email, password_hash, created_at)
			 values($1,$2,$3,$4)
			 on conflict (id) do update
			 set email=excluded.email, password_hash=excluded.password_hash`,
			u.ID, u.Email, u.PasswordHash, u.CreatedAt,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`delete from user_roles where user_id=$1`, u.ID); err != nil {
			return err
		}
		for _, role := range u.Roles {
			if _, err := tx.ExecContext(ctx,
				`insert into user_roles(user_id, role_id) values($1,$2)`,
				u.ID, role.ID,
			); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`delete from prohibited_permissions where user_id=$1`, u.ID); err != nil {
			return err
		}
		for _, name := range u.ProhibitedPermissions {
			if _, err := tx.ExecContext(ctx,
				`insert into prohibited_permissions(user_id, permission) values($1,$2)`,
				u.ID, name,
			); err != nil {
				return err
			}
		}
		return nil
	})
	return storeErr("save user", err)
}

// DeleteUser removes the account and everything hanging off it. Deleting an
// absent user returns identity.ErrNotFound.
func (s *Store) DeleteUser(ctx context.Context, id identity.UserID) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`delete from refresh_tokens where user_id=$1`,
			`delete from user_roles where user_id=$1`,
			`delete from prohibited_permissions where user_id=$1`,
			`delete from profiles where user_id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `delete from users where id=$1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	return storeErr("delete user", err)
}

const profileColumns = `user_id, email, first_name, last_name, phone_number,
	address, city, state, zip_code, country, avatar, bio, website, birth_date`

// FindProfileByID loads the profile attached to a user account.
func (s *Store) FindProfileByID(ctx context.Context, userID identity.UserID) (*identity.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from profiles where user_id=$1`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return nil, storeErr("find profile", err)
	}
	return p, nil
}

// SaveProfile upserts the profile row.
func (s *Store) SaveProfile(ctx context.Context, p *identity.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`insert into profiles(`+profileColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 on conflict (user_id) do update set
		   email=excluded.email, first_name=excluded.first_name,
		   last_name=excluded.last_name, phone_number=excluded.phone_number,
		   address=excluded.address, city=excluded.city, state=excluded.state,
		   zip_code=excluded.zip_code, country=excluded.country,
		   avatar=excluded.avatar, bio=excluded.bio,
		   website=excluded.website, birth_date=excluded.birth_date`,
		p.UserID, p.Email, p.FirstName, p.LastName, p.PhoneNumber,
		p.Address, p.City, p.State, p.ZipCode, p.Country,
		p.Avatar, p.Bio, p.Website, p.BirthDate,
	)
	return storeErr("save profile", err)
}

// DeleteProfile removes the profile row. Absent profiles are not an error so
// account deletion stays idempotent on this leg.
func (s *Store) DeleteProfile(ctx context.Context, userID identity.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`delete from profiles where user_id=$1`, userID)
	return storeErr("delete profile", err)
}

// QueryProfiles pages the profile listing, optionally narrowed by email
// substring. The second return is the total match count before paging.
func (s *Store) QueryProfiles(ctx context.Context, q user.Query) ([]*identity.Profile, int, error) {
	pattern := "%" + q.Email + "%"
	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from profiles where email ilike $1`, pattern,
	).Scan(&total); err != nil {
		return nil, 0, storeErr("count profiles", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`select `+profileColumns+` from profiles
		 where email ilike $1
		 order by email limit $2 offset $3`,
		pattern, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, storeErr("query profiles", err)
	}
	defer rows.Close()

	var profiles []*identity.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, storeErr("query profiles", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("query profiles", err)
	}
	return profiles, total, nil
}

// FindDefaultRole loads the role attached to self-registered accounts.
func (s *Store) FindDefaultRole(ctx context.Context) (*identity.Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name from roles where name=$1`, DefaultRoleName)
	var role identity.Role
	if err := row.Scan(&role.ID, &role.Name); err != nil {
		return nil, storeErr("find default role", err)
	}
	perms, err := s.rolePermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

// FindRoleByID is the user-management view of role lookup.
func (s *Store) FindRoleByID(ctx context.Context, id identity.RoleID) (*identity.Role, error) {
	return s.FindByID(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*identity.Profile, error) {
	var p identity.Profile
	err := row.Scan(
		&p.UserID, &p.Email, &p.FirstName, &p.LastName, &p.PhoneNumber,
		&p.Address, &p.City, &p.State, &p.ZipCode, &p.Country,
		&p.Avatar, &p.Bio, &p.Website, &p.BirthDate,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) userRoles(ctx context.Context, userID identity.UserID) ([]identity.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.name from roles r
		 join user_roles ur on ur.role_id=r.id
		 where ur.user_id=$1
		 order by r.name`, userID)
	if err != nil {
		return nil, storeErr("load user roles", err)
	}
	defer rows.Close()

	var roles []identity.Role
	for rows.Next() {
		var role identity.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, storeErr("load user roles", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load user roles", err)
	}
	for i := range roles {
		perms, err := s.rolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (s *Store) userProhibitions(ctx context.Context, userID identity.UserID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select permission from prohibited_permissions
		 where user_id=$1 order by permission`, userID)
	if err != nil {
		return nil, storeErr("load prohibited permissions", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storeErr("load prohibited permissions", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load prohibited permissions", err)
	}
	return names, nil
}
