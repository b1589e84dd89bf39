package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBootstrapAdmin_CreatesOnceAndWritesPassword(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	cfg := Defaults()
	cfg.BootstrapAdminEnabled = true
	cfg.InitialAdminPasswordPath = filepath.Join(t.TempDir(), "admin.secret")
	ctx := context.Background()

	if err := BootstrapAdmin(ctx, repo, hasher, cfg, nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	data, err := os.ReadFile(cfg.InitialAdminPasswordPath)
	if err != nil {
		t.Fatalf("read secret: %v", err)
	}
	password := strings.TrimSpace(string(data))
	if len(password) != 32 {
		t.Fatalf("password length = %d, want 32", len(password))
	}
	if issues := DefaultPasswordPolicy(6).Check(password); len(issues) != 0 {
		t.Fatalf("generated password violates policy: %v", issues)
	}
	info, err := os.Stat(cfg.InitialAdminPasswordPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("secret mode = %v, want 0600", info.Mode().Perm())
	}

	acc, err := repo.FindByName(ctx, "admin")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if acc.Role != "admin" {
		t.Fatalf("role = %q, want admin", acc.Role)
	}
	if !hasher.Verify(acc.PasswordHash, password) {
		t.Fatalf("stored hash does not match written password")
	}

	// second run must not create another account or rewrite the secret
	if err := os.Remove(cfg.InitialAdminPasswordPath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := BootstrapAdmin(ctx, repo, hasher, cfg, nil); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if _, err := os.Stat(cfg.InitialAdminPasswordPath); !os.IsNotExist(err) {
		t.Fatalf("secret rewritten on second run")
	}
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("accounts = %d, want 1", len(all))
	}
}

func TestBootstrapAdmin_Disabled(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	hasher, _ := NewPasswordHasher(bcrypt.MinCost)
	cfg := Defaults()
	cfg.BootstrapAdminEnabled = false

	if err := BootstrapAdmin(context.Background(), repo, hasher, cfg, nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	all, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("accounts = %d, want 0", len(all))
	}
}

func TestBootstrapAdmin_CreatesMissingSecretDir(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	hasher, _ := NewPasswordHasher(bcrypt.MinCost)
	cfg := Defaults()
	cfg.BootstrapAdminEnabled = true
	cfg.InitialAdminPasswordPath = filepath.Join(t.TempDir(), "missing-dir", "nested", "admin.secret")
	ctx := context.Background()

	if err := BootstrapAdmin(ctx, repo, hasher, cfg, nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	data, err := os.ReadFile(cfg.InitialAdminPasswordPath)
	if err != nil {
		t.Fatalf("secret not written: %v", err)
	}
	acc, err := repo.FindByName(ctx, "admin")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if !hasher.Verify(acc.PasswordHash, strings.TrimSpace(string(data))) {
		t.Fatalf("written secret does not open the admin account")
	}
}

func TestBootstrapAdmin_UnwritableSecretCreatesNothing(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	hasher, _ := NewPasswordHasher(bcrypt.MinCost)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg := Defaults()
	cfg.BootstrapAdminEnabled = true
	// parent is a regular file, so the directory cannot be created
	cfg.InitialAdminPasswordPath = filepath.Join(blocker, "admin.secret")
	ctx := context.Background()

	if err := BootstrapAdmin(ctx, repo, hasher, cfg, nil); err == nil {
		t.Fatalf("expected error for unwritable secret path")
	}
	has, err := repo.HasRole(ctx, "admin")
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if has {
		t.Fatalf("admin created although its password was never stored")
	}

	// a later run with a usable path still bootstraps
	cfg.InitialAdminPasswordPath = filepath.Join(dir, "ok", "admin.secret")
	if err := BootstrapAdmin(ctx, repo, hasher, cfg, nil); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, err := repo.FindByName(ctx, "admin"); err != nil {
		t.Fatalf("admin missing after retry: %v", err)
	}
}

type createFailsRepo struct {
	AccountRepository
}

func (createFailsRepo) HasRole(context.Context, string) (bool, error) { return false, nil }
func (createFailsRepo) Create(context.Context, AccountRecord, string) (int64, error) {
	return 0, errors.New("store down")
}

func TestBootstrapAdmin_FailedCreateRemovesSecret(t *testing.T) {
	hasher, _ := NewPasswordHasher(bcrypt.MinCost)
	cfg := Defaults()
	cfg.BootstrapAdminEnabled = true
	cfg.InitialAdminPasswordPath = filepath.Join(t.TempDir(), "admin.secret")

	if err := BootstrapAdmin(context.Background(), createFailsRepo{}, hasher, cfg, nil); err == nil {
		t.Fatalf("expected create error")
	}
	if _, err := os.Stat(cfg.InitialAdminPasswordPath); !os.IsNotExist(err) {
		t.Fatalf("secret for an account that does not exist was left behind")
	}
}

func TestBootstrapAdmin_RequiresSecretPath(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	hasher, _ := NewPasswordHasher(bcrypt.MinCost)
	cfg := Defaults()
	cfg.BootstrapAdminEnabled = true
	cfg.InitialAdminPasswordPath = ""

	if err := BootstrapAdmin(context.Background(), repo, hasher, cfg, nil); err == nil {
		t.Fatalf("expected error for empty secret path")
	}
	all, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("accounts = %d, want 0", len(all))
	}
}
