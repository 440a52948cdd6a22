package main

import (
	"context"
	"os"

	"github.com/shailendra378/tradingqueen/internal/auth"
	"github.com/shailendra378/tradingqueen/internal/config"
	"github.com/shailendra378/tradingqueen/internal/db"
	"github.com/shailendra378/tradingqueen/internal/logging"
	"github.com/shailendra378/tradingqueen/internal/repository"
	"github.com/shailendra378/tradingqueen/internal/service"
)

// Seeds the demo accounts into the MySQL credential store.
func main() {
	ctx := context.Background()
	logger := logging.New(os.Stdout, "info", "text")

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "load config", "error", err)
		os.Exit(1)
	}
	if cfg.StoreDriver != config.StoreMySQL {
		logger.Error(ctx, "seeding needs STORE_DRIVER=mysql; the memory store does not outlive this process")
		os.Exit(1)
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Error(ctx, "connect database", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "connected to database")

	if err := db.Migrate(gormDB); err != nil {
		logger.Error(ctx, "run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "database migrations completed")

	jwtService, err := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error(ctx, "jwt service", "error", err)
		os.Exit(1)
	}
	authService := service.NewAuthService(
		repository.NewUserRepository(gormDB),
		auth.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency),
		jwtService,
		service.WithLogger(logger),
	)

	created, err := authService.SeedDemoAccounts(ctx)
	if err != nil {
		logger.Error(ctx, "seed demo accounts", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "seed completed", "created", created)
}
