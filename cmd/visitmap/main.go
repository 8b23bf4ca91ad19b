package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"visitmap/internal/amqp"
	"visitmap/internal/cli"
	apphttp "visitmap/internal/http"
	applog "visitmap/internal/log"
	"visitmap/internal/metrics"
	"visitmap/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, cancel := cli.ShutdownContext(logger.Logger)
	defer cancel()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	svc, err := cli.OpenService(ctx, cfg, logger.Logger,
		services.WithMetrics(m), services.WithSummaryCache(cfg.SummaryCacheTTL))
	if err != nil {
		logger.Error("Failed to initialize visit service", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer svc.Close()

	// Ledger changes are published for the worker when a broker is configured.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		} else {
			defer client.Close()
			unsubscribe := svc.Subscribe(amqp.Forwarder(ctx, client, logger.WithComponent(applog.ComponentAMQP).Logger))
			defer unsubscribe()
			logger.Info("Publishing ledger changes", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		Metrics:            m,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting visitmap server", "port", cfg.Port, "backend", cfg.DataBackend, "metrics", cfg.MetricsEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return cli.ShutdownWithTimeout(30*time.Second, srv.Shutdown)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
