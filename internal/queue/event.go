// Package queue defines the auth event payloads exchanged over the message
// broker, the publisher that emits them and the background consumer that
// turns them into an audit log.
package queue

// Event kinds published to the auth.events queue.
const (
	EventUserRegistered = "user.registered"
	EventTokenRevoked   = "token.revoked"
)

// AuthEvent is published when something security-relevant happens to an
// account: a registration or a credential revocation. It carries enough
// information for downstream consumers to audit or notify without querying
// the primary database.
type AuthEvent struct {
	Kind       string `json:"kind"`
	UserID     uint64 `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Mode       string `json:"mode,omitempty"` // "jwt" or "opaque"
	OccurredAt string `json:"occurred_at"`
}
