package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"authgate/internal/config"
	"authgate/internal/database"
	"authgate/internal/middleware"
	"authgate/internal/modules/auth"
	"authgate/internal/modules/ledger"
	jwtsvc "authgate/internal/pkg/jwt"
	"authgate/internal/pkg/password"
	"authgate/internal/ratelimit"
	"authgate/internal/repository"
)

func main() {
	// .env опционален: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router, cleanup, err := buildRouter(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv, "transport", cfg.Transport)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func newLogger(cfg *config.AuthRuntimeConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// buildRouter wires config → database → stores → codec → service → gin.
// The returned cleanup releases the database and redis connections.
func buildRouter(ctx context.Context, cfg *config.AuthRuntimeConfig) (*gin.Engine, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("close failed", "error", err)
			}
		}
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, cleanup, err
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}
	if err := repository.AutoMigrate(db); err != nil {
		return nil, cleanup, err
	}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewRefreshTokenRepository(db)

	tokens, err := jwtsvc.New(jwtsvc.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		return nil, cleanup, err
	}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, cleanup, err
	}

	var provisioner auth.Provisioner
	if cfg.LedgerURL != "" {
		provisioner = ledger.New(ledger.Config{BaseURL: cfg.LedgerURL, Timeout: cfg.LedgerTimeout})
	} else {
		if cfg.IsProduction() {
			slog.Warn("LEDGER_URL is empty, accounts get locally generated keys")
		}
		provisioner = ledger.NewDevProvisioner(slog.Default())
	}

	authService := auth.NewService(userRepo, sessionRepo, tokens, hasher, provisioner, auth.Config{
		OperationTimeout:  cfg.OperationTimeout,
		ProvisionTimeout:  cfg.LedgerTimeout,
		ResetLockout:      cfg.AuthResetLockout,
		LogoutAllSessions: cfg.LogoutAllSessions,
		MaxSessions:       cfg.MaxSessions,
		SupportedLangs:    cfg.SupportedLangs,
		DefaultLang:       cfg.DefaultLang,
	}).WithLogger(slog.Default())

	if cfg.RedisURL != "" && cfg.EmailCheckLimit > 0 {
		redisClient, err := ratelimit.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, redisClient.Close)
		authService.WithRateLimiter(ratelimit.New(redisClient, ratelimit.Config{
			Limit:  cfg.EmailCheckLimit,
			Window: cfg.EmailCheckWindow,
		}))
	}

	transport := auth.NewTransport(auth.TransportMode(cfg.Transport), auth.CookieOptions{
		AccessName:  cfg.AccessCookieName,
		RefreshName: cfg.RefreshCookieName,
		Path:        cfg.CookiePath,
		Domain:      cfg.CookieDomain,
		Secure:      cfg.CookieSecure,
		SameSite:    auth.ParseSameSite(cfg.CookieSameSite),
	}, cfg.JWTAccessTTL, cfg.RefreshTTL)
	authHandler := auth.NewHandler(authService, transport)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorLogger(slog.Default()), middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler.RegisterPublicRoutes(r)

	protected := r.Group("/")
	protected.Use(middleware.RequireAuth(authService, transport))
	{
		authHandler.RegisterProtectedRoutes(protected)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuth(authService, transport), middleware.AdminOnly())
	{
		authHandler.RegisterAdminRoutes(admin)
	}

	return r, cleanup, nil
}
