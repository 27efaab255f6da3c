package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/user-auth-service/internal/model"
)

// RefreshTokenRepo is the rotation ledger for JWT-mode refresh tokens
// (`refresh_tokens` table). The stored token string is the signed refresh JWT
// itself; a UNIQUE constraint on the column enforces global uniqueness. It is
// a separate namespace from OpaqueTokenRepo so the two authentication modes
// never cross-validate each other's credentials.
type RefreshTokenRepo struct{ DB *sql.DB }

func NewRefreshTokenRepo(db *sql.DB) *RefreshTokenRepo { return &RefreshTokenRepo{DB: db} }

// Create inserts a refresh token row for the user.
func (r *RefreshTokenRepo) Create(ctx context.Context, userID uint64, token string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (?,?,?)",
		userID, token, expiresAt)
	return err
}

// Get returns the non-revoked row for the given token string, or ErrNotFound.
// Expiry is intentionally not filtered here; the caller decides how to treat
// an expired row (the JWT flow revokes it as a side effect).
func (r *RefreshTokenRepo) Get(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token,expires_at,is_revoked,created_at FROM refresh_tokens WHERE token=? AND is_revoked=0 LIMIT 1",
		token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.IsRevoked, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	return t, err
}

// Consume atomically flips a still-active token to revoked and reports
// whether this call did the flip. Under concurrent rotation of the same token
// exactly one caller sees true; losers observe the token already revoked.
func (r *RefreshTokenRepo) Consume(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET is_revoked=1 WHERE token=? AND is_revoked=0",
		token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Revoke marks the token revoked and reports whether a row with that token
// string exists at all. Unlike Consume, the result does not depend on prior
// revocation state: revoking twice returns true both times as long as the row
// is present. Logout relies on this to stay idempotent without leaking
// whether a token was still live.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, token string) (bool, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET is_revoked=1 WHERE token=? AND is_revoked=0", token); err != nil {
		return false, err
	}
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE token=?)", token).Scan(&exists)
	return exists, err
}

// RevokeAllForUser flips every active token of the user and returns how many
// rows changed.
func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET is_revoked=1 WHERE user_id=? AND is_revoked=0",
		userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupExpired deletes rows whose expiry has passed, revoked or not. Purely
// a maintenance operation: validation already treats expired rows as dead.
func (r *RefreshTokenRepo) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
