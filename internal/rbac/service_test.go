package rbac_test

import (
	"context"
	"errors"
	"testing"

	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/rbac"
	"gatekeep.org/internal/store/memory"
)

func newService(t *testing.T) (*rbac.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := rbac.NewService(store, store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func seedBareUser(t *testing.T, store *memory.Store) identity.UserID {
	t.Helper()
	u := &identity.User{ID: identity.NewUserID(), Email: "user@example.com"}
	if err := store.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u.ID
}

func TestCreateRoleReusesAndDedupesPermissions(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	first, err := svc.CreateRole(ctx, "editors", []string{"users", "users.write", "users.write"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if len(first.Permissions) != 2 {
		t.Fatalf("expected deduped permissions, got %v", first.Permissions)
	}

	// A second role naming the same permission reuses the catalog record.
	second, err := svc.CreateRole(ctx, "auditors", []string{"users"})
	if err != nil {
		t.Fatalf("create second role: %v", err)
	}
	if len(second.Permissions) != 1 {
		t.Fatalf("unexpected permissions: %v", second.Permissions)
	}
	if _, err := store.FindPermission(ctx, "users", ""); err != nil {
		t.Fatalf("catalog permission missing: %v", err)
	}
}

func TestCreateRoleRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.CreateRole(context.Background(), "  ", nil); !errors.Is(err, identity.ErrInvalidInput) {
		t.Fatalf("blank name: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CreateRole(context.Background(), "ops", []string{""}); !errors.Is(err, identity.ErrInvalidInput) {
		t.Fatalf("blank permission: got %v, want ErrInvalidInput", err)
	}
}

func TestDeleteRoleAbsentReportsFalse(t *testing.T) {
	svc, _ := newService(t)
	deleted, err := svc.DeleteRole(context.Background(), identity.NewRoleID())
	if err != nil {
		t.Fatalf("delete role: %v", err)
	}
	if deleted {
		t.Fatal("deleting an absent role must report false")
	}
}

func TestDeleteRoleKeepsPermissions(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "ops", []string{"users.write"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	deleted, err := svc.DeleteRole(ctx, role.ID)
	if err != nil || !deleted {
		t.Fatalf("delete role: %v %v", deleted, err)
	}

	// Role deletion never cascades into the catalog.
	if _, err := store.FindPermission(ctx, "users", "write"); err != nil {
		t.Fatalf("permission should survive role deletion: %v", err)
	}
}

func TestAssignPermissionToRoleIsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "ops", nil)
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	perm := identity.Permission{Namespace: "users", Name: "write"}
	for i := 0; i < 2; i++ {
		ok, err := svc.AssignPermissionToRole(ctx, role.ID, perm)
		if err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("assign %d reported missing role", i)
		}
	}

	got, err := svc.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if len(got.Permissions) != 1 {
		t.Fatalf("expected one permission after double assign, got %v", got.Permissions)
	}

	ok, err := svc.AssignPermissionToRole(ctx, identity.NewRoleID(), perm)
	if err != nil {
		t.Fatalf("assign to missing role: %v", err)
	}
	if ok {
		t.Fatal("assigning to a missing role must report false")
	}
}

func TestRemovePermissionFromRoleCleansOrphans(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	perm := identity.Permission{Namespace: "users", Name: "write"}

	only, err := svc.CreateRole(ctx, "ops", []string{"users.write"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	removed, err := svc.RemovePermissionFromRole(ctx, only.ID, perm)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	// Last reference gone, catalog record deleted.
	if _, err := store.FindPermission(ctx, "users", "write"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected orphan cleanup, got %v", err)
	}
}

func TestRemovePermissionKeepsSharedRecord(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	perm := identity.Permission{Namespace: "users", Name: "write"}

	a, err := svc.CreateRole(ctx, "ops", []string{"users.write"})
	if err != nil {
		t.Fatalf("create role a: %v", err)
	}
	if _, err := svc.CreateRole(ctx, "admins", []string{"users.write"}); err != nil {
		t.Fatalf("create role b: %v", err)
	}

	removed, err := svc.RemovePermissionFromRole(ctx, a.ID, perm)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	// Still referenced by the other role, so the record stays.
	if _, err := store.FindPermission(ctx, "users", "write"); err != nil {
		t.Fatalf("shared permission must survive: %v", err)
	}
}

func TestRemovePermissionFromRoleReportsFalse(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	perm := identity.Permission{Namespace: "users", Name: "write"}

	if removed, err := svc.RemovePermissionFromRole(ctx, identity.NewRoleID(), perm); err != nil || removed {
		t.Fatalf("missing role: %v %v", removed, err)
	}

	role, err := svc.CreateRole(ctx, "ops", nil)
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if removed, err := svc.RemovePermissionFromRole(ctx, role.ID, perm); err != nil || removed {
		t.Fatalf("unassigned permission: %v %v", removed, err)
	}
}

func TestUserRoleAssignmentLifecycle(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	userID := seedBareUser(t, store)

	role, err := svc.CreateRole(ctx, "ops", []string{"users.write"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := svc.AssignRoleToUser(ctx, userID, role.ID)
		if err != nil || !ok {
			t.Fatalf("assign %d: %v %v", i, ok, err)
		}
	}
	u, err := store.FindUserByID(ctx, userID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if len(u.Roles) != 1 {
		t.Fatalf("expected single role on user, got %d", len(u.Roles))
	}

	ok, err := svc.RevokeRoleFromUser(ctx, userID, role.ID)
	if err != nil || !ok {
		t.Fatalf("revoke: %v %v", ok, err)
	}
	ok, err = svc.RevokeRoleFromUser(ctx, userID, role.ID)
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if ok {
		t.Fatal("revoking an unassigned role must report false")
	}

	if ok, err := svc.AssignRoleToUser(ctx, identity.NewUserID(), role.ID); err != nil || ok {
		t.Fatalf("assign to missing user: %v %v", ok, err)
	}
}

func TestProhibitAndAllowPermissionOnUser(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	userID := seedBareUser(t, store)
	perm := identity.Permission{Namespace: "users", Name: "write"}

	ok, err := svc.ProhibitPermissionOnUser(ctx, userID, perm)
	if err != nil || !ok {
		t.Fatalf("prohibit: %v %v", ok, err)
	}
	u, _ := store.FindUserByID(ctx, userID)
	if len(u.ProhibitedPermissions) != 1 || u.ProhibitedPermissions[0] != "users.write" {
		t.Fatalf("prohibition not recorded: %v", u.ProhibitedPermissions)
	}

	ok, err = svc.AllowPermissionOnUser(ctx, userID, perm)
	if err != nil || !ok {
		t.Fatalf("allow: %v %v", ok, err)
	}
	u, _ = store.FindUserByID(ctx, userID)
	if len(u.ProhibitedPermissions) != 0 {
		t.Fatalf("prohibition not lifted: %v", u.ProhibitedPermissions)
	}

	if ok, err := svc.ProhibitPermissionOnUser(ctx, identity.NewUserID(), perm); err != nil || ok {
		t.Fatalf("prohibit on missing user: %v %v", ok, err)
	}
}
