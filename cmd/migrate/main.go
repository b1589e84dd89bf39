package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"account-api/core"
)

// migrate applies pending schema migrations for the configured store and, when
// BOOTSTRAP_ADMIN is set, creates the initial admin. It exits once done so it can run
// as an init container ahead of the api.
func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logCloser, err := core.SetupLogging(cfg, "migrate.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	defer logger.Sync() //nolint:errcheck

	var repo core.AccountRepository
	switch cfg.StoreDriver {
	case core.StoreDriverSQLite:
		db, err := core.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal("open sqlite", zap.Error(err))
		}
		defer db.Close()
		n, err := core.MigrateSQLite(ctx, db)
		if err != nil {
			logger.Fatal("migrate sqlite", zap.Error(err))
		}
		logger.Info("migrations applied", zap.String("store", cfg.StoreDriver), zap.Int("count", n))
		repo = core.NewSQLiteAccountRepository(db)
	default:
		pool, err := core.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("connect database", zap.Error(err))
		}
		defer pool.Close()
		n, err := core.MigratePostgres(ctx, pool)
		if err != nil {
			logger.Fatal("migrate database", zap.Error(err))
		}
		logger.Info("migrations applied", zap.String("store", cfg.StoreDriver), zap.Int("count", n))
		repo = core.NewPgAccountRepository(pool)
	}

	hasher, err := core.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}
	if err := core.BootstrapAdmin(ctx, repo, hasher, cfg, logger); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}
}
