// Package password is the hashing capability used by the identity core. The
// salt is embedded in the bcrypt output, so verification needs only the stored
// hash and the candidate plaintext.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hash hashes a plaintext password using bcrypt at the default adaptive cost.
func Hash(plain string) (string, error) {
	if len(plain) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares a plaintext password with a stored hash.
func Verify(hash, plain string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
