package main

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/user-auth-service/internal/config"
	"github.com/iliyamo/user-auth-service/internal/database"
	"github.com/iliyamo/user-auth-service/internal/handler"
	"github.com/iliyamo/user-auth-service/internal/queue"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/router"
	"github.com/iliyamo/user-auth-service/internal/service"
	"github.com/iliyamo/user-auth-service/internal/token"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	accessTTL := time.Duration(cfg.AccessTTLMin) * time.Minute
	refreshTTL := time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour

	engine, err := token.New(cfg.JWTSecret, cfg.JWTAlg, accessTTL, refreshTTL)
	if err != nil {
		log.Fatalf("token engine: %v", err)
	}

	users := repository.NewUserRepo(db)
	refreshTokens := repository.NewRefreshTokenRepo(db)
	opaqueTokens := repository.NewOpaqueTokenRepo(db)

	jwtSvc := service.NewAuthService(users,
		service.NewJWTIssuer(engine, refreshTokens), cfg.BcryptCost, cfg.MinPasswordLen)
	opaqueSvc := service.NewAuthService(users,
		service.NewOpaqueIssuer(opaqueTokens, accessTTL, refreshTTL), cfg.BcryptCost, cfg.MinPasswordLen)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e)
	router.RegisterAuth(e,
		handler.NewAuthHandler(jwtSvc, opaqueSvc),
		config.LoadRateLimitConfig(),
		config.NewRedisClient())

	// Audit-log consumer for auth events; reconnects on its own.
	go func() {
		if err := queue.StartConsumer(); err != nil {
			log.Printf("auth-consumer stopped: %v", err)
		}
	}()

	// Hourly sweep of expired token rows. Lazy expiry checks already keep
	// validation correct; this only reclaims storage.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := refreshTokens.CleanupExpired(ctx); err != nil {
				log.Printf("cleanup refresh tokens: %v", err)
			} else if n > 0 {
				log.Printf("cleanup: deleted %d expired refresh tokens", n)
			}
			if n, err := opaqueTokens.CleanupExpired(ctx); err != nil {
				log.Printf("cleanup opaque tokens: %v", err)
			} else if n > 0 {
				log.Printf("cleanup: deleted %d expired opaque tokens", n)
			}
			cancel()
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
