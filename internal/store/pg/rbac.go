package pg

import (
	"context"
	"database/sql"

	"gatekeep.org/internal/identity"
)

// FindByID loads a role with its permission set.
func (s *Store) FindByID(ctx context.Context, id identity.RoleID) (*identity.Role, error) {
	row := s.db.QueryRowContext(ctx, `select id, name from roles where id=$1`, id)
	var role identity.Role
	if err := row.Scan(&role.ID, &role.Name); err != nil {
		return nil, storeErr("find role", err)
	}
	perms, err := s.rolePermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

// FindAll loads every role with its permissions, ordered by name.
func (s *Store) FindAll(ctx context.Context) ([]*identity.Role, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name from roles order by name`)
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	defer rows.Close()

	var roles []*identity.Role
	for rows.Next() {
		var role identity.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, storeErr("list roles", err)
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list roles", err)
	}
	for _, role := range roles {
		perms, err := s.rolePermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	return roles, nil
}

// Save upserts the role row and rewrites its permission links so the stored
// set mirrors role.Permissions exactly.
func (s *Store) Save(ctx context.Context, role *identity.Role) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`insert into roles(id, name) values($1,$2)
			 on conflict (id) do update set name=excluded.name`,
			role.ID, role.Name,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`delete from role_permissions where role_id=$1`, role.ID); err != nil {
			return err
		}
		for _, p := range role.Permissions {
			if _, err := tx.ExecContext(ctx,
				`insert into role_permissions(role_id, permission_id)
				 select $1, id from permissions where namespace=$2 and name=$3`,
				role.ID, p.Namespace, p.Name,
			); err != nil {
				return err
			}
		}
		return nil
	})
	return storeErr("save role", err)
}

// Delete removes the role, its permission links and its user grants.
// Permission records are independently owned and stay behind.
func (s *Store) Delete(ctx context.Context, role *identity.Role) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`delete from role_permissions where role_id=$1`, role.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`delete from user_roles where role_id=$1`, role.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `delete from roles where id=$1`, role.ID)
		return err
	})
	return storeErr("delete role", err)
}

// FindPermission looks up a catalog permission by its identity pair.
func (s *Store) FindPermission(ctx context.Context, namespace, name string) (*identity.Permission, error) {
	row := s.db.QueryRowContext(ctx,
		`select namespace, name from permissions where namespace=$1 and name=$2`,
		namespace, name)
	var p identity.Permission
	if err := row.Scan(&p.Namespace, &p.Name); err != nil {
		return nil, storeErr("find permission", err)
	}
	return &p, nil
}

// EnsurePermissionExists creates the catalog record when missing and returns
// the canonical permission either way.
func (s *Store) EnsurePermissionExists(ctx context.Context, p identity.Permission) (identity.Permission, error) {
	_, err := s.db.ExecContext(ctx,
		`insert into permissions(id, namespace, name) values($1,$2,$3)
		 on conflict (namespace, name) do nothing`,
		identity.NewPermissionID(), p.Namespace, p.Name,
	)
	if err != nil {
		return identity.Permission{}, storeErr("ensure permission", err)
	}
	return identity.Permission{Namespace: p.Namespace, Name: p.Name}, nil
}

// EnsurePermissionDeleted removes the catalog record if present. Deleting an
// absent permission is not an error.
func (s *Store) EnsurePermissionDeleted(ctx context.Context, p identity.Permission) error {
	_, err := s.db.ExecContext(ctx,
		`delete from permissions where namespace=$1 and name=$2`,
		p.Namespace, p.Name,
	)
	return storeErr("delete permission", err)
}

// AnyRoleUsesPermission reports whether any role still links the permission.
func (s *Store) AnyRoleUsesPermission(ctx context.Context, p identity.Permission) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`select exists(
			 select 1 from role_permissions rp
			 join permissions pm on pm.id=rp.permission_id
			 where pm.namespace=$1 and pm.name=$2)`,
		p.Namespace, p.Name)
	var inUse bool
	if err := row.Scan(&inUse); err != nil {
		return false, storeErr("check permission usage", err)
	}
	return inUse, nil
}

func (s *Store) rolePermissions(ctx context.Context, roleID identity.RoleID) ([]identity.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.namespace, p.name from permissions p
		 join role_permissions rp on rp.permission_id=p.id
		 where rp.role_id=$1
		 order by p.namespace, p.name`, roleID)
	if err != nil {
		return nil, storeErr("load role permissions", err)
	}
	defer rows.Close()

	var perms []identity.Permission
	for rows.Next() {
		var p identity.Permission
		if err := rows.Scan(&p.Namespace, &p.Name); err != nil {
			return nil, storeErr("load role permissions", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load role permissions", err)
	}
	return perms, nil
}
