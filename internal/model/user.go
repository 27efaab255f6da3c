package model

import "time"

// User represents an account record as stored in the `users` table. The
// password is kept only as an irreversible bcrypt digest; handlers expose a
// separate response type so PasswordHash never leaves the service.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name.
//  Email        – unique email address (lower-cased on write).
//  Phone        – optional phone number.
//  PasswordHash – bcrypt hashed password.
//  IsActive     – whether the account may authenticate.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	Phone        string    // users.phone
	PasswordHash string    // users.password_hash
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
