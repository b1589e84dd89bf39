package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"account-api/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

func run(cfg core.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	startedAt := time.Now()

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		throttle core.LoginThrottle = core.NoopThrottle{}
		rdb      redis.Cmdable
	)
	if cfg.RedisURL != "" {
		client, err := core.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		rdb = client
		throttle = core.NewRedisLoginThrottle(client, cfg.MaxFailedLogins, cfg.LoginLockout)
	} else {
		logger.Warn("REDIS_URL not set; login throttling disabled")
	}

	hasher, err := core.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := core.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}
	if cfg.UsesDefaultSecret() {
		logger.Warn("JWT_SECRET not set; using the built-in development secret")
	}

	if err := core.BootstrapAdmin(ctx, repo, hasher, cfg, logger); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	svc := core.NewAccountService(repo, hasher, core.DefaultPasswordPolicy(cfg.PasswordMinLength), tokens, throttle, logger)
	health := core.NewHealthChecker(repo, rdb, startedAt)
	router := core.NewRouter(cfg, svc, tokens, health, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting api server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore connects the configured backend and applies pending migrations.
func openStore(ctx context.Context, cfg core.Config, logger *zap.Logger) (core.AccountRepository, func(), error) {
	switch cfg.StoreDriver {
	case core.StoreDriverSQLite:
		db, err := core.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		n, err := core.MigrateSQLite(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		logger.Info("sqlite store ready", zap.String("path", cfg.SQLitePath), zap.Int("migrations_applied", n))
		return core.NewSQLiteAccountRepository(db), func() { db.Close() }, nil
	default:
		pool, err := core.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		n, err := core.MigratePostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("postgres store ready", zap.Int("migrations_applied", n))
		return core.NewPgAccountRepository(pool), pool.Close, nil
	}
}
