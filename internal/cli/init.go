// Package cli provides the start-up steps shared by the binaries and the
// incidents command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"norloworld/internal/backend"
	"norloworld/internal/config"
	"norloworld/internal/log"
	"norloworld/internal/snapshot"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the text logger for level and component, writing to
// out, and makes it the process default.
func SetupLogger(level, component string, out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	cfg.Output = out
	logger := log.New(cfg).WithComponent(component)
	log.SetDefault(logger)
	return logger
}

// Bootstrap loads .env and the configuration and sets up logging. It exits
// the process when the configuration is invalid.
func Bootstrap(component string, logOutput io.Writer) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, component, logOutput)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend creates the backend selected by cfg.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}
	return res, nil
}

// SnapshotLoader returns a SnapshotFunc that opens the configured backend,
// loads one snapshot and closes the backend again.
func SnapshotLoader(cfg *config.Config, logger *log.Logger) SnapshotFunc {
	return func(ctx context.Context) (*snapshot.Snapshot, error) {
		res, err := OpenBackend(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := res.Close(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}()
		return snapshot.NewLoader(res.Source).Load(ctx)
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
