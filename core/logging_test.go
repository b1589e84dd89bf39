package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSetupLogging_WritesFile(t *testing.T) {
	cfg := Defaults()
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Environment = "production"

	logger, closer, err := SetupLogging(cfg, "test.log")
	if err != nil {
		t.Fatalf("SetupLogging error: %v", err)
	}
	logger.Info("hello", zap.String("k", "v"))
	_ = logger.Sync()
	closer.Close()

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "test.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), `"k":"v"`) {
		t.Fatalf("unexpected log content: %s", data)
	}
}

func TestSetupLogging_StdoutOnly(t *testing.T) {
	cfg := Defaults()
	cfg.LogDir = ""
	cfg.LogLevel = "not-a-level"

	logger, closer, err := SetupLogging(cfg, "")
	if err != nil {
		t.Fatalf("SetupLogging error: %v", err)
	}
	defer closer.Close()
	if logger == nil {
		t.Fatalf("nil logger")
	}
}
