// Package router wires the HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/user-auth-service/internal/config"
	"github.com/iliyamo/user-auth-service/internal/handler"
	"github.com/iliyamo/user-auth-service/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication. Currently just
// the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication surface. The open endpoints live
// under /v1/auth behind the rate limiter; bearer-protected endpoints live
// under /v1 (JWT mode) and /v1/opaque (opaque mode).
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/auth")
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))

	// JWT mode: signed stateless pairs with a persisted rotation ledger.
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	// Opaque mode: random server-side tokens, same flow shape.
	g.POST("/login-opaque", a.LoginOpaque)
	g.POST("/refresh-opaque", a.RefreshOpaque)
	g.POST("/logout-opaque", a.LogoutOpaque)
	g.POST("/validate-opaque", a.ValidateOpaque)

	// Bearer-protected groups, one per credential mode.
	jwtGroup := e.Group("/v1")
	jwtGroup.Use(middleware.BearerAuth(a.JWT))
	jwtGroup.GET("/me", a.Me)
	jwtGroup.DELETE("/me", a.DeleteMe)

	opaqueGroup := e.Group("/v1/opaque")
	opaqueGroup.Use(middleware.BearerAuth(a.Opaque))
	opaqueGroup.GET("/me", a.Me)
}
