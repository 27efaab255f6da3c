// Package token implements the signed-JWT half of the credential system. An
// Engine is built once at startup from the signing secret, algorithm and TTLs
// and is safe for concurrent use; it never mutates after construction.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type labels embedded in the "type" claim. Access tokens are the
// short-lived bearer credentials; refresh tokens only ever reach the
// refresh endpoint.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrInvalid is returned by Decode for any token this engine will not accept:
// bad signature, wrong algorithm, malformed structure or past expiry.
var ErrInvalid = errors.New("invalid or expired token")

// Claims is the payload carried by every token this service signs. Sub holds
// the user id as a decimal string; Email is informational and is never
// re-validated against the store on decode.
type Claims struct {
	Email string `json:"email,omitempty"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a numeric user id.
func (c *Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalid
	}
	return id, nil
}

// Engine signs and verifies JWTs with a single shared secret and a fixed
// HMAC algorithm.
type Engine struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New builds an Engine. alg must name an HMAC signing method (HS256, HS384 or
// HS512); anything else is rejected so a misconfigured service cannot come up
// with an unverifiable algorithm.
func New(secret, alg string, accessTTL, refreshTTL time.Duration) (*Engine, error) {
	method := jwt.GetSigningMethod(alg)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}
	return &Engine{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// IssueAccess mints a signed access token for the user. It returns the token
// string together with its absolute expiry (now + access TTL).
func (e *Engine) IssueAccess(userID uint64, email string) (string, time.Time, error) {
	return e.issue(userID, email, TypeAccess, e.accessTTL)
}

// IssueRefresh mints a signed refresh token with the longer refresh TTL.
func (e *Engine) IssueRefresh(userID uint64, email string) (string, time.Time, error) {
	return e.issue(userID, email, TypeRefresh, e.refreshTTL)
}

func (e *Engine) issue(userID uint64, email, typ string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(e.method, claims).SignedString(e.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode verifies the signature and expiry of a token minted by this service
// and returns its claims. The jwt library treats a past exp as a validation
// failure, so expired tokens surface here as ErrInvalid, same as forged ones.
// Decode proves only that this service signed the token and it has not
// expired; callers must re-fetch the user to confirm continued existence.
func (e *Engine) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != e.method.Alg() {
			return nil, ErrInvalid
		}
		return e.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}
