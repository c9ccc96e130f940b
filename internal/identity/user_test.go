package identity

import (
	"reflect"
	"testing"
)

func perm(ns, name string) Permission {
	return Permission{Namespace: ns, Name: name}
}

func TestScopesIsSortedUnion(t *testing.T) {
	u := &User{ID: NewUserID()}
	u.AssignRole(Role{ID: NewRoleID(), Name: "reader", Permissions: []Permission{
		perm("users", ""), perm("users:self", ""),
	}})
	u.AssignRole(Role{ID: NewRoleID(), Name: "writer", Permissions: []Permission{
		perm("users", "write"), perm("users", ""),
	}})

	got := u.Scopes()
	want := []string{"users", "users.write", "users:self"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("scopes = %v, want %v", got, want)
	}
}

func TestHasPermissionDenyWins(t *testing.T) {
	u := &User{ID: NewUserID()}
	u.AssignRole(Role{ID: NewRoleID(), Name: "admin", Permissions: []Permission{
		perm("users", "write"),
	}})

	if !u.HasPermission(perm("users", "write")) {
		t.Fatal("expected grant from role")
	}

	u.AddProhibitedPermission(perm("users", "write"))
	if u.HasPermission(perm("users", "write")) {
		t.Fatal("prohibition must beat the role grant")
	}

	// Lifting the denial restores the grant.
	if !u.RemoveProhibitedPermission(perm("users", "write")) {
		t.Fatal("expected recorded denial to be removed")
	}
	if !u.HasPermission(perm("users", "write")) {
		t.Fatal("expected grant after denial lifted")
	}
}

func TestAssignAndRemoveRoleIdempotent(t *testing.T) {
	u := &User{ID: NewUserID()}
	role := Role{ID: NewRoleID(), Name: "member"}

	u.AssignRole(role)
	u.AssignRole(role)
	if len(u.Roles) != 1 {
		t.Fatalf("expected single role, got %d", len(u.Roles))
	}

	if !u.RemoveRole(role.ID) {
		t.Fatal("expected removal of assigned role")
	}
	if u.RemoveRole(role.ID) {
		t.Fatal("second removal must report false")
	}
}

func TestAddProhibitedPermissionIdempotent(t *testing.T) {
	u := &User{ID: NewUserID()}
	u.AddProhibitedPermission(perm("users", ""))
	u.AddProhibitedPermission(perm("users", ""))
	if len(u.ProhibitedPermissions) != 1 {
		t.Fatalf("expected single prohibition, got %v", u.ProhibitedPermissions)
	}
}
