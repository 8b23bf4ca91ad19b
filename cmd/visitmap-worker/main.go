package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"visitmap/internal/amqp"
	"visitmap/internal/cli"
	applog "visitmap/internal/log"
	"visitmap/internal/metrics"
	"visitmap/internal/services"
	"visitmap/internal/sheets"
	gsheet "visitmap/internal/sheets/google"
	"visitmap/internal/sheets/memory"
	"visitmap/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting visitmap-worker")

	ctx, cancel := cli.ShutdownContext(logger.Logger)
	defer cancel()

	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is private to this process, the export will stay empty")
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	svc, err := cli.OpenService(ctx, cfg, logger.Logger, services.WithMetrics(m))
	if err != nil {
		logger.Error("Failed to initialize visit service", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer svc.Close()

	var writer sheets.SummaryWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:  cfg.GoogleSpreadsheetID,
			VisitsSheet:    cfg.GoogleVisitsSheet,
			CitiesSheet:    cfg.GoogleCitiesSheet,
			ProvincesSheet: cfg.GoogleProvincesSheet,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = memory.NewWriter()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
	}

	syncWorker := worker.NewSyncWorker(svc, writer, m)

	logger.Info("Performing startup sync")
	if err := syncWorker.Sync(ctx); err != nil {
		logger.Error("Startup sync failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			return client.ConsumeLedgerChanges(gctx, syncWorker.HandleChange)
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	// Periodic sync catches changes whose messages were lost.
	g.Go(func() error {
		return syncWorker.RunPeriodic(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
