package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	adminUserName = "admin"
	adminRole     = "admin"
)

// BootstrapAdmin creates an initial admin account when none holds the admin role.
// It is idempotent: if an admin already exists, it does nothing.
func BootstrapAdmin(ctx context.Context, repo AccountRepository, hasher *PasswordHasher, cfg Config, log *zap.Logger) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}
	if log == nil {
		log = zap.L()
	}

	has, err := repo.HasRole(ctx, adminRole)
	if err != nil {
		return fmt.Errorf("check admin role: %w", err)
	}
	if has {
		return nil
	}

	path := cfg.InitialAdminPasswordPath
	if path == "" {
		return errors.New("initial admin password path is empty")
	}

	password, err := GeneratePassword(32)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	// The secret must be on disk before the account exists; once created, later runs skip.
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create secret dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(password+"\n"), 0o600); err != nil {
		return fmt.Errorf("write admin secret: %w", err)
	}

	rec := AccountRecord{
		UserName:     adminUserName,
		FullName:     "Administrator",
		Status:       "active",
		PasswordHash: hash,
		RegisteredAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if _, err := repo.Create(ctx, rec, adminRole); err != nil {
		os.Remove(path) //nolint:errcheck
		if errors.Is(err, ErrDuplicateUserName) {
			log.Warn("bootstrap skipped: user name taken by a non-admin account", zap.String("user_name", adminUserName))
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}

	log.Info("initial admin created", zap.String("user_name", adminUserName), zap.String("credentials_path", path))
	return nil
}
