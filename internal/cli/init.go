// Package cli provides common CLI initialization utilities shared by
// cmd/visitmap, cmd/visitmap-worker and cmd/visitctl.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"visitmap/internal/backend"
	"visitmap/internal/config"
	applog "visitmap/internal/log"
	"visitmap/internal/services"
)

// SetupLogger initializes structured logging from LOG_LEVEL and LOG_FORMAT.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	level, format := "info", "text"
	if cfg != nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Format:    format,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenService opens the configured store and returns an initialized service.
// Closing the service closes the store.
func OpenService(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...services.Option) (*services.VisitService, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	kv, err := backend.Open(ctx, bcfg, logger)
	if err != nil {
		return nil, err
	}

	opts = append([]services.Option{services.WithLogger(logger)}, opts...)
	svc := services.NewVisitService(kv, opts...)
	if err := svc.Init(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("initialize service: %w", err)
	}
	return svc, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM. The
// received signal is logged.
func ShutdownContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
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

// ShutdownWithTimeout runs stop with a fresh context bounded by timeout, for use
// after the main context has been cancelled.
func ShutdownWithTimeout(timeout time.Duration, stop func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return stop(ctx)
}
