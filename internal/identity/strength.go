package identity

import (
	"fmt"
	"strings"
	"unicode"
)

const passwordSpecials = "!@#$%^&*()-_=+[]{}|;:,.<>?/~"

// ValidatePasswordStrength checks a candidate password against the account
// policy. It is independent of the hashing capability; callers compose it
// before hashing.
func ValidatePasswordStrength(plain string) error {
	switch {
	case len(plain) < 8:
		return fmt.Errorf("%w: password must be at least 8 characters long", ErrInvalidInput)
	case len(plain) > 128:
		return fmt.Errorf("%w: password must be at most 128 characters long", ErrInvalidInput)
	}
	var upper, lower, digit, special bool
	for _, c := range plain {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		case strings.ContainsRune(passwordSpecials, c):
			special = true
		}
	}
	switch {
	case !upper:
		return fmt.Errorf("%w: password must contain at least one uppercase letter", ErrInvalidInput)
	case !lower:
		return fmt.Errorf("%w: password must contain at least one lowercase letter", ErrInvalidInput)
	case !digit:
		return fmt.Errorf("%w: password must contain at least one digit", ErrInvalidInput)
	case !special:
		return fmt.Errorf("%w: password must contain at least one special character", ErrInvalidInput)
	}
	return nil
}
