// Package handler exposes the authentication flows over HTTP. Handlers stay
// thin: bind the request, call the orchestrator for the right mode, translate
// taxonomy errors to status codes.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-auth-service/internal/middleware"
	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/queue"
	"github.com/iliyamo/user-auth-service/internal/service"
)

// AuthHandler bundles the two mode orchestrators behind the auth endpoints.
// JWT drives /v1/auth/{register,login,refresh,logout}; Opaque drives the
// -opaque variants and introspection.
type AuthHandler struct {
	JWT    *service.AuthService
	Opaque *service.AuthService
}

func NewAuthHandler(jwtSvc, opaqueSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{JWT: jwtSvc, Opaque: opaqueSvc}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type opaqueTokenReq struct {
	Token string `json:"token"`
}

type userResp struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}
type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func toUserResp(u model.User) userResp {
	return userResp{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// authError maps taxonomy errors onto HTTP statuses. Anything outside the
// taxonomy is logged by echo's recover/logger chain and reported generically
// so store internals never leak to clients.
func authError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	case errors.Is(err, service.ErrTokenInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired refresh token"})
	case errors.Is(err, service.ErrUserInactive):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user account is inactive"})
	case errors.Is(err, service.ErrUserAlreadyExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, service.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, service.ErrPasswordTooShort):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password is too short"})
	default:
		c.Logger().Errorf("auth: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// publish fires an auth event without blocking the request; broker errors are
// logged inside the queue package and dropped.
func publish(ev queue.AuthEvent) {
	ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue.Publish(ctx, ev)
	}()
}

// Register creates an account. Mode-independent: both token flavors hang off
// the same user record.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email/password required"})
	}

	u, err := h.JWT.Register(c.Request().Context(), req.Name, req.Email, req.Phone, req.Password)
	if err != nil {
		return authError(c, err)
	}
	publish(queue.AuthEvent{Kind: queue.EventUserRegistered, UserID: u.ID, Email: u.Email})
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// Login exchanges credentials for a signed JWT pair.
func (h *AuthHandler) Login(c echo.Context) error {
	return h.login(c, h.JWT)
}

// LoginOpaque exchanges credentials for a server-side opaque pair.
func (h *AuthHandler) LoginOpaque(c echo.Context) error {
	return h.login(c, h.Opaque)
}

func (h *AuthHandler) login(c echo.Context, svc *service.AuthService) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	pair, err := svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, tokenResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

// Refresh rotates a JWT-mode refresh token: the old one is consumed and a new
// pair returned. A reused token fails with 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	return h.refresh(c, h.JWT, strings.TrimSpace(req.RefreshToken))
}

// RefreshOpaque is the opaque-mode rotation endpoint; the body carries
// {"token": ...} to match the opaque request shape.
func (h *AuthHandler) RefreshOpaque(c echo.Context) error {
	var req opaqueTokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	return h.refresh(c, h.Opaque, strings.TrimSpace(req.Token))
}

func (h *AuthHandler) refresh(c echo.Context, svc *service.AuthService, tok string) error {
	pair, err := svc.Refresh(c.Request().Context(), tok)
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, tokenResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

// Logout revokes a JWT-mode refresh token. It returns 204 whether or not the
// token existed so the endpoint cannot be used to probe token validity.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	return h.logout(c, h.JWT, strings.TrimSpace(req.RefreshToken), "jwt")
}

// LogoutOpaque revokes an opaque token, with the same always-204 contract.
func (h *AuthHandler) LogoutOpaque(c echo.Context) error {
	var req opaqueTokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	return h.logout(c, h.Opaque, strings.TrimSpace(req.Token), "opaque")
}

func (h *AuthHandler) logout(c echo.Context, svc *service.AuthService, tok, mode string) error {
	if err := svc.Logout(c.Request().Context(), tok); err != nil {
		return authError(c, err)
	}
	publish(queue.AuthEvent{Kind: queue.EventTokenRevoked, Mode: mode})
	return c.NoContent(http.StatusNoContent)
}

// ValidateOpaque is the service-to-service introspection endpoint: it accepts
// an opaque token of either type and returns a descriptive payload instead of
// the user object.
func (h *AuthHandler) ValidateOpaque(c echo.Context) error {
	var req opaqueTokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	in, err := h.Opaque.Introspect(c.Request().Context(), strings.TrimSpace(req.Token))
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":      in.Valid,
		"user_id":    in.UserID,
		"email":      in.Email,
		"token_type": in.TokenType,
		"expires_at": in.ExpiresAt.Format(time.RFC3339),
	})
}

// Me returns the authenticated user's public projection. The BearerAuth
// middleware has already resolved the credential.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// DeleteMe removes the authenticated account; every token the user holds is
// revoked and the rows cascade away with the user record.
func (h *AuthHandler) DeleteMe(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.JWT.DeleteAccount(c.Request().Context(), u.ID); err != nil {
		return authError(c, err)
	}
	publish(queue.AuthEvent{Kind: queue.EventTokenRevoked, UserID: u.ID, Email: u.Email, Mode: "jwt"})
	return c.NoContent(http.StatusNoContent)
}
