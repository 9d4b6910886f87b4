// Package logging builds the process-wide slog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/scttfrdmn/productcache/internal/config"
)

// ParseLevel converts a configured level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// New creates a logger writing to w in the configured format and level.
func New(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	return slog.New(handler), nil
}

// Open creates a logger for cfg. When cfg.File is set, output goes to a
// rotating file and the returned closer must be closed on shutdown;
// otherwise output goes to stderr and the closer is a no-op.
func Open(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	if cfg.File == "" {
		logger, err := New(cfg, os.Stderr)
		return logger, nopCloser{}, err
	}

	writer, err := NewRotatingWriter(RotationConfig{
		Filename:   cfg.File,
		MaxSizeMB:  int64(cfg.MaxSizeMB),
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, nil, err
	}

	logger, err := New(cfg, writer)
	if err != nil {
		_ = writer.Close()
		return nil, nil, err
	}
	return logger, writer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
