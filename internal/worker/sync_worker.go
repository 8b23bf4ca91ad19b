package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"visitmap/internal/amqp"
	"visitmap/internal/core"
	"visitmap/internal/metrics"
	"visitmap/internal/sheets"
)

// Source is the read side of the visit service.
type Source interface {
	GetVisits(ctx context.Context) ([]core.VisitRecord, error)
	GetCityData(ctx context.Context) ([]core.CityData, error)
	GetProvinceData(ctx context.Context) ([]core.CityData, error)
	GetPurposeColors(ctx context.Context) (map[string]string, error)
}

// SyncWorker exports the ledger and its aggregate views to the spreadsheet.
// Every export rewrites all tabs, so a change message only has to trigger one.
type SyncWorker struct {
	source  Source
	writer  sheets.SummaryWriter
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.Mutex
	lastStart time.Time
}

func NewSyncWorker(source Source, writer sheets.SummaryWriter, m *metrics.Metrics) *SyncWorker {
	return &SyncWorker{
		source:  source,
		writer:  writer,
		metrics: m,
		now:     time.Now,
	}
}

// Sync rebuilds every tab from the current ledger. Tabs are written in parallel.
func (w *SyncWorker) Sync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.sync(ctx)
	w.metrics.SheetSync(err)
	return err
}

func (w *SyncWorker) sync(ctx context.Context) error {
	start := w.now()

	visits, err := w.source.GetVisits(ctx)
	if err != nil {
		return fmt.Errorf("load visits: %w", err)
	}
	cities, err := w.source.GetCityData(ctx)
	if err != nil {
		return fmt.Errorf("aggregate cities: %w", err)
	}
	provinces, err := w.source.GetProvinceData(ctx)
	if err != nil {
		return fmt.Errorf("aggregate provinces: %w", err)
	}
	colors, err := w.source.GetPurposeColors(ctx)
	if err != nil {
		return fmt.Errorf("load category colors: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.writer.WriteVisits(gctx, visits)
	})
	g.Go(func() error {
		return w.writer.WriteSummary(gctx, sheets.TabCities, cities, colors)
	})
	g.Go(func() error {
		return w.writer.WriteSummary(gctx, sheets.TabProvinces, provinces, colors)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("write sheets: %w", err)
	}

	w.lastStart = start
	slog.InfoContext(ctx, "Sheets synchronized",
		"visits", len(visits),
		"cities", len(cities),
		"provinces", len(provinces),
		"duration", time.Since(start))
	return nil
}

// HandleChange processes one ledger change message. Messages older than the
// start of the last successful export are already reflected and are skipped.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	w.mu.Lock()
	covered := !w.lastStart.IsZero() && !msg.Timestamp.IsZero() && msg.Timestamp.Before(w.lastStart)
	w.mu.Unlock()
	if covered {
		slog.DebugContext(ctx, "Change already exported, skipping", "kind", msg.Kind)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger change", "kind", msg.Kind, "city", msg.City, "category", msg.Category)
	return w.Sync(ctx)
}

// RunPeriodic syncs every interval until ctx is cancelled. This is the backup
// path for lost messages; failures are logged and retried on the next tick.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}
