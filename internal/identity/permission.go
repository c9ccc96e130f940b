package identity

import (
	"fmt"
	"strings"
)

// Permission is a (namespace, name) capability unit. Two permissions with the
// same namespace and name are the same permission, regardless of any stored id.
type Permission struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// FullName returns the flattened "namespace.name" form used in token scopes.
// When the name is empty the namespace alone is the full name.
func (p Permission) FullName() string {
	if p.Name == "" {
		return p.Namespace
	}
	return p.Namespace + "." + p.Name
}

// Equal reports whether both permissions denote the same capability.
func (p Permission) Equal(other Permission) bool {
	return p.Namespace == other.Namespace && p.Name == other.Name
}

// ParsePermission splits a "namespace.name" string on the first dot. A string
// without a dot is a namespace-only permission.
func ParsePermission(raw string) (Permission, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Permission{}, fmt.Errorf("%w: permission is required", ErrInvalidInput)
	}
	namespace, name, _ := strings.Cut(raw, ".")
	if namespace == "" {
		return Permission{}, fmt.Errorf("%w: malformed permission %q", ErrInvalidInput, raw)
	}
	return Permission{Namespace: namespace, Name: name}, nil
}
