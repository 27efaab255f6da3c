// Package service implements the authentication flows: register, login,
// refresh with rotation, logout, current-user resolution and opaque token
// introspection. It composes the user store with one of two token issuers
// (signed JWTs or server-side opaque tokens) chosen at construction time.
package service

import "errors"

// The error taxonomy surfaced by the auth flows. Handlers translate these to
// HTTP statuses; anything not in this list is treated as an internal failure
// and reported generically.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// a caller can never learn which one failed.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserAlreadyExists is returned on registration with a taken email.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserNotFound is returned when a referenced user record is absent.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive is returned when a deactivated account authenticates.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrTokenInvalid covers malformed, forged, wrong-type and expired
	// access tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrInvalidRefreshToken is the refresh-side counterpart of
	// ErrTokenInvalid, kept distinct so clients know to fall back to a full
	// re-login instead of retrying.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

	// ErrPasswordTooShort is returned on registration when the password is
	// below the configured minimum length.
	ErrPasswordTooShort = errors.New("password is too short")
)
