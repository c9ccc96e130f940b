package token

import "errors"

var (
	// ErrAuthentication covers both unknown email and wrong password. The two
	// cases are deliberately indistinguishable to prevent account enumeration.
	ErrAuthentication = errors.New("incorrect username or password")

	// ErrInvalidToken indicates a malformed access token or a bad signature.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates a well-formed, correctly signed access token
	// whose expiration has passed.
	ErrExpiredToken = errors.New("token expired")
)
