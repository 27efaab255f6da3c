// Package repository persists users and tokens in MySQL through database/sql.
// This file defines sentinel error values shared across the repositories so
// higher layers can distinguish failure scenarios with errors.Is without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrEmailExists is returned by UserRepo.Create when the email column's
// UNIQUE constraint rejects a duplicate registration.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a lookup matches no usable row: the row is
// absent, revoked, or (where the repository checks expiry) expired.
var ErrNotFound = errors.New("not found")
