package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/utils"
)

// OpaqueTokenRepo issues and validates server-side opaque tokens
// (`opaque_tokens` table). Tokens are random URL-safe strings with no
// embedded structure; the store lookup is the only way to validate one.
type OpaqueTokenRepo struct{ DB *sql.DB }

func NewOpaqueTokenRepo(db *sql.DB) *OpaqueTokenRepo { return &OpaqueTokenRepo{DB: db} }

// Issue generates a fresh random token of the given type and persists it with
// an expiry of now+ttl. The returned record carries the token string handed
// back to the client.
func (r *OpaqueTokenRepo) Issue(ctx context.Context, userID uint64, tokenType string, ttl time.Duration) (model.OpaqueToken, error) {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return model.OpaqueToken{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO opaque_tokens (user_id, token, token_type, expires_at) VALUES (?,?,?,?)",
		userID, raw, tokenType, exp)
	if err != nil {
		return model.OpaqueToken{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.OpaqueToken{}, err
	}
	return model.OpaqueToken{
		ID:        uint64(id),
		UserID:    userID,
		Token:     raw,
		TokenType: tokenType,
		ExpiresAt: exp,
		CreatedAt: now,
	}, nil
}

// Validate looks up a non-revoked token by exact string match, optionally
// filtered to a token type (pass "" to accept any). Expired rows count as not
// found. On success the row's last_used_at is stamped best-effort: a failure
// there is logged and ignored because the stamp is telemetry, not a
// correctness requirement.
func (r *OpaqueTokenRepo) Validate(ctx context.Context, token, tokenType string) (model.OpaqueToken, error) {
	query := "SELECT id,user_id,token,token_type,expires_at,is_revoked,created_at,last_used_at FROM opaque_tokens WHERE token=? AND is_revoked=0"
	args := []any{token}
	if tokenType != "" {
		query += " AND token_type=?"
		args = append(args, tokenType)
	}
	query += " LIMIT 1"

	var (
		t        model.OpaqueToken
		lastUsed sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, args...).
		Scan(&t.ID, &t.UserID, &t.Token, &t.TokenType, &t.ExpiresAt, &t.IsRevoked, &t.CreatedAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OpaqueToken{}, ErrNotFound
	}
	if err != nil {
		return model.OpaqueToken{}, err
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		return model.OpaqueToken{}, ErrNotFound
	}
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.Time
	}

	now := time.Now().UTC()
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE opaque_tokens SET last_used_at=? WHERE id=?", now, t.ID); err != nil {
		log.Printf("opaque tokens: last_used_at stamp failed for id=%d: %v", t.ID, err)
	} else {
		t.LastUsedAt = &now
	}
	return t, nil
}

// Consume atomically flips a still-active refresh-typed token to revoked and
// reports whether this call did the flip. The type filter keeps an access
// token from ever being consumed as a rotation credential.
func (r *OpaqueTokenRepo) Consume(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE opaque_tokens SET is_revoked=1 WHERE token=? AND token_type=? AND is_revoked=0",
		token, model.OpaqueTypeRefresh)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Revoke marks the token revoked and reports whether a row with that token
// string exists, regardless of prior revocation state. Same contract as
// RefreshTokenRepo.Revoke.
func (r *OpaqueTokenRepo) Revoke(ctx context.Context, token string) (bool, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE opaque_tokens SET is_revoked=1 WHERE token=? AND is_revoked=0", token); err != nil {
		return false, err
	}
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM opaque_tokens WHERE token=?)", token).Scan(&exists)
	return exists, err
}

// RevokeAllForUser flips every active token of the user, optionally limited
// to one token type (pass "" for both), and returns how many rows changed.
func (r *OpaqueTokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, tokenType string) (int64, error) {
	query := "UPDATE opaque_tokens SET is_revoked=1 WHERE user_id=? AND is_revoked=0"
	args := []any{userID}
	if tokenType != "" {
		query += " AND token_type=?"
		args = append(args, tokenType)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupExpired deletes rows whose expiry has passed, revoked or not.
func (r *OpaqueTokenRepo) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM opaque_tokens WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
