package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/shailendra378/tradingqueen/docs"
	"github.com/shailendra378/tradingqueen/internal/auth"
	"github.com/shailendra378/tradingqueen/internal/cache"
	"github.com/shailendra378/tradingqueen/internal/config"
	"github.com/shailendra378/tradingqueen/internal/db"
	"github.com/shailendra378/tradingqueen/internal/handler"
	"github.com/shailendra378/tradingqueen/internal/logging"
	"github.com/shailendra378/tradingqueen/internal/ratelimit"
	"github.com/shailendra378/tradingqueen/internal/repository"
	"github.com/shailendra378/tradingqueen/internal/router"
	"github.com/shailendra378/tradingqueen/internal/service"
)

// @title Trading Queen Auth API
// @version 1.0
// @description Signup, login and session management for Trading Queen.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "error", "json").Error(ctx, "load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", "tradingqueen-auth")

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	checks := map[string]handler.HealthCheck{}

	var userRepo repository.UserRepository
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		gormDB, err := db.NewMySQL(cfg.MySQLDSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(gormDB); err != nil {
			return err
		}
		userRepo = repository.NewUserRepository(gormDB)
		checks["mysql"] = func(ctx context.Context) error { return db.Ping(ctx, gormDB) }
		defer closeDB(ctx, gormDB, logger)
	default:
		userRepo = repository.NewMemoryUserRepository()
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if cacheClient.Enabled() {
		checks["redis"] = cacheClient.Ping
		if err := cacheClient.Ping(ctx); err != nil {
			logger.Warn(ctx, "redis unreachable at startup, continuing without it", "addr", cfg.RedisAddr, "error", err)
		}
	}

	// Initialize auth components
	jwtService, err := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	hasher := auth.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithCache(cacheClient),
	}
	if cfg.TokenRevocation {
		opts = append(opts, service.WithDenylist(auth.NewTokenStore(cacheClient)))
	}
	authService := service.NewAuthService(userRepo, hasher, jwtService, opts...)

	if cfg.SeedDemo {
		if _, err := authService.SeedDemoAccounts(ctx); err != nil {
			return err
		}
	}

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e := echo.New()
	e.HidePort = true
	router.Register(e, cfg, logger, authService,
		handler.NewAuthHandler(authService),
		handler.NewHealthHandler(cfg.Environment, logger, checks),
		router.Limiters{
			Auth: newLimiter(ctx, cacheClient, logger, "auth", cfg.AuthRateMax, cfg.AuthRateWindow),
			API:  newLimiter(ctx, cacheClient, logger, "api", cfg.APIRateMax, cfg.APIRateWindow),
		},
	)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server listening",
			"addr", srv.Addr,
			"environment", cfg.Environment,
			"store", cfg.StoreDriver,
			"redis", cacheClient.Enabled(),
			"token_revocation", cfg.TokenRevocation,
		)
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func closeDB(ctx context.Context, gormDB *gorm.DB, logger logging.Logger) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn(ctx, "close database", "error", err)
	}
}

// newLimiter prefers Redis counters and falls back to in-process ones when
// Redis cannot be reached at startup.
func newLimiter(ctx context.Context, c *cache.Client, logger logging.Logger, name string, max int, window time.Duration) ratelimit.Limiter {
	l, err := ratelimit.New(c, name, max, window)
	if err != nil {
		logger.Warn(ctx, "redis rate limiter unavailable, counting in memory", "limiter", name, "error", err)
		return ratelimit.NewMemory(name, max, window)
	}
	return l
}
