package model

import "time"

// Opaque token type labels stored in opaque_tokens.token_type. The type
// partitions the namespace: an access-typed token is never accepted where a
// refresh-typed one is required, and vice versa.
const (
	OpaqueTypeAccess  = "access"
	OpaqueTypeRefresh = "refresh"
)

// RefreshToken models a row in the `refresh_tokens` table, the rotation
// ledger for JWT-mode refresh tokens. The token column holds the signed JWT
// string itself and carries a UNIQUE constraint; revocation is one-way.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  Token     – the signed refresh JWT string (unique).
//  ExpiresAt – expiration timestamp.
//  IsRevoked – monotonic false→true revocation flag.
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	Token     string    // refresh_tokens.token
	ExpiresAt time.Time // refresh_tokens.expires_at
	IsRevoked bool      // refresh_tokens.is_revoked
	CreatedAt time.Time // refresh_tokens.created_at
}

// OpaqueToken models a row in the `opaque_tokens` table: random unguessable
// strings validated purely by server-side lookup. LastUsedAt is stamped on
// each successful validation as best-effort telemetry.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – owner of the token.
//  Token      – random URL-safe string (unique).
//  TokenType  – "access" or "refresh".
//  ExpiresAt  – expiration timestamp.
//  IsRevoked  – monotonic false→true revocation flag.
//  CreatedAt  – timestamp of creation.
//  LastUsedAt – when the token last passed validation (nullable).
type OpaqueToken struct {
	ID         uint64     // opaque_tokens.id
	UserID     uint64     // opaque_tokens.user_id
	Token      string     // opaque_tokens.token
	TokenType  string     // opaque_tokens.token_type
	ExpiresAt  time.Time  // opaque_tokens.expires_at
	IsRevoked  bool       // opaque_tokens.is_revoked
	CreatedAt  time.Time  // opaque_tokens.created_at
	LastUsedAt *time.Time // opaque_tokens.last_used_at (nullable)
}
