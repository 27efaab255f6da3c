package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/token"
)

// TokenPair is the credential bundle handed to a client after login or
// refresh. TokenType is always "bearer".
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

const tokenTypeBearer = "bearer"

// TokenIssuer is the capability shared by the two authentication modes.
// Issue mints an access+refresh pair and persists the refresh side;
// the Validate methods resolve a credential to its owning user id;
// ConsumeRefresh is the strict flip-once revocation used by rotation, while
// RevokeRefresh carries logout's row-exists idempotency. Errors from the
// Validate and Consume methods are already members of the taxonomy except
// for wrapped store failures.
type TokenIssuer interface {
	Issue(ctx context.Context, u model.User) (TokenPair, error)
	ValidateAccess(ctx context.Context, tok string) (uint64, error)
	ValidateRefresh(ctx context.Context, tok string) (uint64, error)
	ConsumeRefresh(ctx context.Context, tok string) (bool, error)
	RevokeRefresh(ctx context.Context, tok string) (bool, error)
	RevokeAllFor(ctx context.Context, userID uint64) (int64, error)
}

// RefreshLedger is the slice of the refresh token store the JWT issuer needs.
// *repository.RefreshTokenRepo satisfies it.
type RefreshLedger interface {
	Create(ctx context.Context, userID uint64, tok string, expiresAt time.Time) error
	Get(ctx context.Context, tok string) (model.RefreshToken, error)
	Consume(ctx context.Context, tok string) (bool, error)
	Revoke(ctx context.Context, tok string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint64) (int64, error)
}

// OpaqueStore is the slice of the opaque token store the opaque issuer needs.
// *repository.OpaqueTokenRepo satisfies it.
type OpaqueStore interface {
	Issue(ctx context.Context, userID uint64, tokenType string, ttl time.Duration) (model.OpaqueToken, error)
	Validate(ctx context.Context, tok, tokenType string) (model.OpaqueToken, error)
	Consume(ctx context.Context, tok string) (bool, error)
	Revoke(ctx context.Context, tok string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint64, tokenType string) (int64, error)
}

// JWTIssuer implements TokenIssuer with signed stateless tokens. Access
// tokens are verified purely by signature and expiry; refresh tokens are
// additionally checked against the rotation ledger so they stay single-use.
type JWTIssuer struct {
	engine *token.Engine
	ledger RefreshLedger
}

func NewJWTIssuer(engine *token.Engine, ledger RefreshLedger) *JWTIssuer {
	return &JWTIssuer{engine: engine, ledger: ledger}
}

func (j *JWTIssuer) Issue(ctx context.Context, u model.User) (TokenPair, error) {
	access, _, err := j.engine.IssueAccess(u.ID, u.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, exp, err := j.engine.IssueRefresh(u.ID, u.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := j.ledger.Create(ctx, u.ID, refresh, exp); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: tokenTypeBearer}, nil
}

func (j *JWTIssuer) ValidateAccess(ctx context.Context, tok string) (uint64, error) {
	claims, err := j.engine.Decode(tok)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	if claims.Type != token.TypeAccess {
		return 0, ErrTokenInvalid
	}
	uid, err := claims.UserID()
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uid, nil
}

// ValidateRefresh checks structure, signature and type, then confirms the
// token is still present and unrevoked in the ledger. An expired ledger row
// is revoked on sight before the failure is reported.
func (j *JWTIssuer) ValidateRefresh(ctx context.Context, tok string) (uint64, error) {
	claims, err := j.engine.Decode(tok)
	if err != nil {
		return 0, ErrInvalidRefreshToken
	}
	if claims.Type != token.TypeRefresh {
		return 0, ErrInvalidRefreshToken
	}
	rec, err := j.ledger.Get(ctx, tok)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrInvalidRefreshToken
	}
	if err != nil {
		return 0, fmt.Errorf("refresh token lookup: %w", err)
	}
	if time.Now().UTC().After(rec.ExpiresAt) {
		if _, err := j.ledger.Revoke(ctx, tok); err != nil {
			return 0, fmt.Errorf("revoke expired refresh token: %w", err)
		}
		return 0, ErrInvalidRefreshToken
	}
	return rec.UserID, nil
}

func (j *JWTIssuer) ConsumeRefresh(ctx context.Context, tok string) (bool, error) {
	return j.ledger.Consume(ctx, tok)
}

func (j *JWTIssuer) RevokeRefresh(ctx context.Context, tok string) (bool, error) {
	return j.ledger.Revoke(ctx, tok)
}

func (j *JWTIssuer) RevokeAllFor(ctx context.Context, userID uint64) (int64, error) {
	return j.ledger.RevokeAllForUser(ctx, userID)
}

// OpaqueIssuer implements TokenIssuer with random server-side tokens. Both
// halves of the pair live in the opaque store, partitioned by token_type.
type OpaqueIssuer struct {
	tokens     OpaqueStore
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewOpaqueIssuer(tokens OpaqueStore, accessTTL, refreshTTL time.Duration) *OpaqueIssuer {
	return &OpaqueIssuer{tokens: tokens, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (o *OpaqueIssuer) Issue(ctx context.Context, u model.User) (TokenPair, error) {
	access, err := o.tokens.Issue(ctx, u.ID, model.OpaqueTypeAccess, o.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue opaque access token: %w", err)
	}
	refresh, err := o.tokens.Issue(ctx, u.ID, model.OpaqueTypeRefresh, o.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue opaque refresh token: %w", err)
	}
	return TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token, TokenType: tokenTypeBearer}, nil
}

func (o *OpaqueIssuer) ValidateAccess(ctx context.Context, tok string) (uint64, error) {
	rec, err := o.tokens.Validate(ctx, tok, model.OpaqueTypeAccess)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrTokenInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("opaque token lookup: %w", err)
	}
	return rec.UserID, nil
}

func (o *OpaqueIssuer) ValidateRefresh(ctx context.Context, tok string) (uint64, error) {
	rec, err := o.tokens.Validate(ctx, tok, model.OpaqueTypeRefresh)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrInvalidRefreshToken
	}
	if err != nil {
		return 0, fmt.Errorf("opaque token lookup: %w", err)
	}
	return rec.UserID, nil
}

func (o *OpaqueIssuer) ConsumeRefresh(ctx context.Context, tok string) (bool, error) {
	return o.tokens.Consume(ctx, tok)
}

func (o *OpaqueIssuer) RevokeRefresh(ctx context.Context, tok string) (bool, error) {
	return o.tokens.Revoke(ctx, tok)
}

func (o *OpaqueIssuer) RevokeAllFor(ctx context.Context, userID uint64) (int64, error) {
	return o.tokens.RevokeAllForUser(ctx, userID, "")
}

// Introspect resolves a token of either type for service-to-service
// validation. The record comes back untyped so the caller can report
// token_type and expiry to the asking service.
func (o *OpaqueIssuer) Introspect(ctx context.Context, tok string) (model.OpaqueToken, error) {
	rec, err := o.tokens.Validate(ctx, tok, "")
	if errors.Is(err, repository.ErrNotFound) {
		return model.OpaqueToken{}, ErrTokenInvalid
	}
	if err != nil {
		return model.OpaqueToken{}, fmt.Errorf("opaque token lookup: %w", err)
	}
	return rec, nil
}
