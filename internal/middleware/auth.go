// Package middleware provides reusable HTTP middleware: bearer credential
// resolution and Redis-backed rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/service"
)

// ContextUserKey is where BearerAuth stores the resolved user in the echo
// context. Handlers read it back with CurrentUser.
const ContextUserKey = "auth_user"

// userResolver resolves an access credential to a live user record.
// *service.AuthService satisfies it for either authentication mode, so the
// same middleware protects JWT and opaque routes.
type userResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (model.User, error)
}

// BearerAuth returns middleware that requires an `Authorization: Bearer`
// header, resolves the token through the given service and stores the user
// in the request context. Invalid or expired credentials get 401; an
// inactive account gets 403.
func BearerAuth(svc userResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			u, err := svc.CurrentUser(c.Request().Context(), raw)
			if err != nil {
				if errors.Is(err, service.ErrUserInactive) {
					return c.JSON(http.StatusForbidden, echo.Map{"error": "user account is inactive"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			c.Set(ContextUserKey, u)
			return next(c)
		}
	}
}

// CurrentUser reads the user stored by BearerAuth. The boolean is false when
// the route was not wrapped by the middleware.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ContextUserKey).(model.User)
	return u, ok
}
