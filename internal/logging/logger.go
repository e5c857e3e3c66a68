package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"

	"airquality-server/internal/config"
)

// New builds the process logger: colored tint output for dev builds, JSON
// otherwise. With cfg.LogFile set every line is also appended to that file as
// JSON; the returned close func releases it.
func New(cfg config.Config, version string, appName string) (*slog.Logger, func() error, error) {
	return newLogger(cfg, version, appName, os.Stdout)
}

func newLogger(cfg config.Config, version, appName string, stdout io.Writer) (*slog.Logger, func() error, error) {
	var console slog.Handler
	if version == "dev" {
		console = tint.NewHandler(stdout, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
	} else {
		console = slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	}

	closeFn := func() error { return nil }
	handler := console
	if cfg.LogFile != "" {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			return nil, nil, err
		}
		closeFn = f.Close
		handler = slogmulti.Fanout(console, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}

	logger := slog.New(handler).With("app", appName)
	if version != "dev" {
		logger = logger.With("version", version, "env", cfg.AppEnv)
	}
	return logger, closeFn, nil
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
