package identity

import (
	"errors"
	"testing"
)

func TestParsePermission(t *testing.T) {
	cases := []struct {
		raw       string
		namespace string
		name      string
		full      string
	}{
		{"users.write", "users", "write", "users.write"},
		{"users", "users", "", "users"},
		{"users:self", "users:self", "", "users:self"},
		{"users:self.write", "users:self", "write", "users:self.write"},
		{"ledger.entries.read", "ledger", "entries.read", "ledger.entries.read"},
	}
	for _, tc := range cases {
		p, err := ParsePermission(tc.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if p.Namespace != tc.namespace || p.Name != tc.name {
			t.Fatalf("parse %q = (%q,%q), want (%q,%q)", tc.raw, p.Namespace, p.Name, tc.namespace, tc.name)
		}
		if p.FullName() != tc.full {
			t.Fatalf("full name of %q = %q, want %q", tc.raw, p.FullName(), tc.full)
		}
	}
}

func TestParsePermissionRejectsEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", ".write"} {
		if _, err := ParsePermission(raw); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("parse %q: got %v, want ErrInvalidInput", raw, err)
		}
	}
}

func TestRoleAddPermissionDedupes(t *testing.T) {
	role := Role{ID: NewRoleID(), Name: "ops"}
	role.AddPermission(perm("users", "write"))
	role.AddPermission(perm("users", "write"))
	if len(role.Permissions) != 1 {
		t.Fatalf("expected single permission, got %v", role.Permissions)
	}

	if !role.RemovePermission(perm("users", "write")) {
		t.Fatal("expected removal of assigned permission")
	}
	if role.RemovePermission(perm("users", "write")) {
		t.Fatal("second removal must report false")
	}
}
