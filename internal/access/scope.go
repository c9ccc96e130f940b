package access

import "fmt"

// Scope is a named capability string gating an operation.
type Scope string

// The closed scope vocabulary consulted by the user-facing endpoints.
const (
	ScopeUsers          Scope = "users"           // read any user
	ScopeUsersWrite     Scope = "users.write"     // write any user
	ScopeUsersSelf      Scope = "users:self"      // read own profile
	ScopeUsersSelfWrite Scope = "users:self.write" // write own profile
)

var knownScopes = map[Scope]struct{}{
	ScopeUsers:          {},
	ScopeUsersWrite:     {},
	ScopeUsersSelf:      {},
	ScopeUsersSelfWrite: {},
}

// ParseScope validates raw against the closed vocabulary.
func ParseScope(raw string) (Scope, error) {
	s := Scope(raw)
	if _, ok := knownScopes[s]; !ok {
		return "", fmt.Errorf("unknown scope %q", raw)
	}
	return s, nil
}

// ScopesFromStrings converts a scope-string slice, silently dropping values
// outside the vocabulary. Unknown scopes in a token claim are not fatal.
func ScopesFromStrings(raw []string) []Scope {
	scopes := make([]Scope, 0, len(raw))
	for _, r := range raw {
		if s, err := ParseScope(r); err == nil {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func (s Scope) String() string { return string(s) }
