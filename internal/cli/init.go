// Package cli holds the start-up steps shared by every gastos subcommand.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gastos/internal/config"
	"gastos/internal/log"
)

// SetupLogger builds the text logger for level and installs it as the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig reads the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
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

// GracefulShutdown runs cleanup with a deadline once ctx is done. It returns
// an error if cleanup overran the timeout.
func GracefulShutdown(ctx context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context) error) error {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if cleanup == nil {
			done <- nil
			return
		}
		done <- cleanup(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Shutdown cleanup failed", log.FieldError, err)
			return err
		}
		logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
		return fmt.Errorf("shutdown: %w", shutdownCtx.Err())
	}
}
