package utils // package utils provides helper functions for hashing and token generation

import (
	"crypto/rand"     // secure random number generation
	"encoding/base64" // URL-safe encoding for token strings
)

// opaqueTokenBytes is the amount of raw entropy behind every opaque token.
// 32 bytes gives 256 bits, enough to make collisions negligible; the
// database UNIQUE constraint on the token column is the backstop.
const opaqueTokenBytes = 32

// NewOpaqueToken returns a cryptographically random, URL-safe token string.
// The raw bytes are base64 raw-URL encoded (43 characters, no padding) so the
// value can travel in JSON bodies and Authorization headers unescaped.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
