// Package cli provides the initialization shared by cmd/finadvisor and
// cmd/finadvisor-mirror.
package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finadvisor/internal/config"
	applog "finadvisor/internal/log"
)

// LoadEnvFile loads .env files for local development. With no arguments it
// reads ./.env. Missing files are not an error.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// SetupLogger builds the process logger at the given level and installs it
// as the slog default. An unknown level falls back to info.
func SetupLogger(level, component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	if lvl, err := applog.ParseLevel(level); err == nil {
		cfg.Level = lvl
	}
	if component != "" {
		cfg.Component = component
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// Bootstrap loads .env, reads and validates configuration and sets up
// logging. Extra checks run after Validate.
func Bootstrap(component string, checks ...func(*config.Config) error) (*config.Config, *applog.Logger, error) {
	envErr := LoadEnvFile()

	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, component)
	if envErr != nil {
		logger.Warn("Failed to load .env file", applog.FieldError, envErr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return nil, logger, err
		}
	}
	return cfg, logger, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
