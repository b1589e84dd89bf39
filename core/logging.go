package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogging builds a zap logger writing to stdout and, when cfg.LogDir is set, to
// an append-only file in that directory. Gin's writers share the same sink.
// Caller should Sync the logger and close the returned io.Closer on shutdown.
func SetupLogging(cfg Config, filename string) (*zap.Logger, io.Closer, error) {
	if filename == "" {
		filename = "app.log"
	}

	var (
		sink   io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log dir %s: %w", cfg.LogDir, err)
		}
		path := filepath.Join(cfg.LogDir, filename)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		sink = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	gin.DefaultWriter = sink
	gin.DefaultErrorWriter = sink

	logger := zap.New(zapcore.NewCore(newEncoder(cfg.Environment), zapcore.AddSync(sink), level), zap.AddCaller())
	zap.ReplaceGlobals(logger)
	return logger, closer, nil
}

func newEncoder(env string) zapcore.Encoder {
	if env == "production" {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}
