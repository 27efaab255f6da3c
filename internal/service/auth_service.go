package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/utils"
)

// UserStore is the slice of the user repository the auth flows need.
// *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, name, email, phone, passwordHash string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Delete(ctx context.Context, id uint64) error
}

// Introspection is the descriptive payload returned for opaque token
// introspection: enough for a peer service to authorize a request without
// receiving the user object itself.
type Introspection struct {
	Valid     bool
	UserID    uint64
	Email     string
	TokenType string
	ExpiresAt time.Time
}

// introspector is implemented by issuers whose tokens can be looked up for
// service-to-service introspection (the opaque mode).
type introspector interface {
	Introspect(ctx context.Context, tok string) (model.OpaqueToken, error)
}

// AuthService drives one authentication mode's flows. Two instances run side
// by side in the server, one per issuer; the flow logic is identical and the
// mode never branches inside it.
type AuthService struct {
	users          UserStore
	issuer         TokenIssuer
	bcryptCost     int
	minPasswordLen int
}

// NewAuthService builds an orchestrator over the given user store and issuer.
func NewAuthService(users UserStore, issuer TokenIssuer, bcryptCost, minPasswordLen int) *AuthService {
	return &AuthService{
		users:          users,
		issuer:         issuer,
		bcryptCost:     bcryptCost,
		minPasswordLen: minPasswordLen,
	}
}

// Register creates a new account. A taken email yields ErrUserAlreadyExists;
// the stored record only ever holds the bcrypt digest of the password.
func (s *AuthService) Register(ctx context.Context, name, email, phone, password string) (model.User, error) {
	if len(password) < s.minPasswordLen {
		return model.User{}, ErrPasswordTooShort
	}
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.users.Create(ctx, name, email, phone, hash)
	if errors.Is(err, repository.ErrEmailExists) {
		return model.User{}, ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("load created user: %w", err)
	}
	return u, nil
}

// Login verifies credentials and mints a fresh token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return TokenPair{}, ErrUserInactive
	}
	return s.issuer.Issue(ctx, u)
}

// Refresh rotates a refresh credential: the old token is consumed atomically
// and a brand-new pair is issued. A refresh token is single-use; when two
// requests race on the same token, the consume step admits exactly one and
// the loser fails with ErrInvalidRefreshToken. The user record is re-fetched
// so a deleted or deactivated account cannot keep refreshing.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, err := s.issuer.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	flipped, err := s.issuer.ConsumeRefresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("consume refresh token: %w", err)
	}
	if !flipped {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	return s.issuer.Issue(ctx, u)
}

// Logout revokes the given refresh credential. It succeeds whether or not
// the token exists so the endpoint can never be used to probe token validity.
func (s *AuthService) Logout(ctx context.Context, tok string) error {
	if _, err := s.issuer.RevokeRefresh(ctx, tok); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// CurrentUser resolves an access credential to its live user record. Any
// decode/lookup failure, a wrong-type token or a vanished user all collapse
// into ErrTokenInvalid.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (model.User, error) {
	userID, err := s.issuer.ValidateAccess(ctx, accessToken)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrTokenInvalid
	}
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return model.User{}, ErrUserInactive
	}
	return u, nil
}

// Introspect validates a token of either type and returns a descriptive
// payload for service-to-service checks. Only the opaque mode supports it;
// on a JWT-mode service every token reports ErrTokenInvalid.
func (s *AuthService) Introspect(ctx context.Context, tok string) (Introspection, error) {
	in, ok := s.issuer.(introspector)
	if !ok {
		return Introspection{}, ErrTokenInvalid
	}
	rec, err := in.Introspect(ctx, tok)
	if err != nil {
		return Introspection{}, err
	}
	u, err := s.users.GetByID(ctx, rec.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return Introspection{}, ErrTokenInvalid
	}
	if err != nil {
		return Introspection{}, fmt.Errorf("lookup user: %w", err)
	}
	return Introspection{
		Valid:     true,
		UserID:    u.ID,
		Email:     u.Email,
		TokenType: rec.TokenType,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// DeleteAccount revokes every credential of the user and removes the record.
// The token tables cascade on user deletion, so the revoke pass is only there
// to kill live sessions in the same instant the account goes away.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uint64) error {
	if _, err := s.issuer.RevokeAllFor(ctx, userID); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	err := s.users.Delete(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
