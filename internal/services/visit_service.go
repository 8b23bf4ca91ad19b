package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"visitmap/internal/cache"
	"visitmap/internal/core"
	"visitmap/internal/importer"
	"visitmap/internal/ledger"
	"visitmap/internal/metrics"
	"visitmap/internal/province"
	"visitmap/internal/store"
)

// VisitService is the entry point used by the HTTP API, the CLI and the worker.
// It validates input against the live category registry, applies writes through
// the ledger and registry, and notifies subscribers once a write has committed.
type VisitService struct {
	kv       store.KV
	ledger   *ledger.Ledger
	registry *ledger.Registry
	resolver core.ProvinceResolver
	hub      *ledger.Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	// summaries holds city and province aggregates until the next write.
	// generation counts writes so an aggregate computed across a write is not kept.
	summaries  *cache.LRUCache[[]core.CityData]
	generation atomic.Uint64
}

// ImportResult reports the outcome of a bulk import.
type ImportResult struct {
	Parsed  int `json:"parsed"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Summary renders the result the way the import dialog reports it.
func (r ImportResult) Summary() string {
	switch {
	case r.Added > 0 && r.Skipped > 0:
		return fmt.Sprintf("imported %d record(s), skipped %d duplicate(s)", r.Added, r.Skipped)
	case r.Added > 0:
		return fmt.Sprintf("imported %d record(s)", r.Added)
	case r.Skipped > 0:
		return "all records already exist, nothing added"
	default:
		return "no valid records to import"
	}
}

type Option func(*VisitService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *VisitService) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *VisitService) { s.metrics = m }
}

// WithClock replaces time.Now, which supplies the date of undated imports.
func WithClock(now func() time.Time) Option {
	return func(s *VisitService) { s.now = now }
}

// WithSummaryCache reuses city and province summaries for up to ttl. Writes made
// through this service drop them at once; writes from other processes show up
// once ttl has passed.
func WithSummaryCache(ttl time.Duration) Option {
	return func(s *VisitService) {
		if ttl > 0 {
			s.summaries = cache.NewLRUCache[[]core.CityData](2, ttl)
		}
	}
}

func WithResolver(r core.ProvinceResolver) Option {
	return func(s *VisitService) { s.resolver = r }
}

func NewVisitService(kv store.KV, opts ...Option) *VisitService {
	s := &VisitService{
		kv:     kv,
		hub:    ledger.NewHub(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = province.Default()
	}
	s.ledger = ledger.New(kv, s.logger)
	s.registry = ledger.NewRegistry(kv, s.logger)
	return s
}

// Init persists the default categories when none are stored yet.
func (s *VisitService) Init(ctx context.Context) error {
	if err := s.registry.EnsureInitialized(ctx); err != nil {
		return fmt.Errorf("initialize categories: %w", err)
	}
	return nil
}

// Subscribe registers l for every committed mutation and returns a function
// that removes it.
func (s *VisitService) Subscribe(l ledger.Listener) func() {
	return s.hub.Subscribe(l)
}

func (s *VisitService) Close() error {
	if s.kv == nil {
		return nil
	}
	if err := s.kv.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func (s *VisitService) GetVisits(ctx context.Context) ([]core.VisitRecord, error) {
	records, err := s.ledger.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load visits: %w", err)
	}
	s.metrics.SetLedgerSize(len(records))
	return records, nil
}

func (s *VisitService) GetCityData(ctx context.Context) ([]core.CityData, error) {
	return s.summary(ctx, "cities", core.AggregateByCity)
}

func (s *VisitService) GetProvinceData(ctx context.Context) ([]core.CityData, error) {
	return s.summary(ctx, "provinces", func(records []core.VisitRecord) []core.CityData {
		data, unresolved := core.AggregateByProvince(records, s.resolver)
		for _, city := range unresolved {
			s.logger.WarnContext(ctx, "No province found for city, skipping", "city", city)
		}
		return data
	})
}

func (s *VisitService) summary(ctx context.Context, kind string, aggregate func([]core.VisitRecord) []core.CityData) ([]core.CityData, error) {
	if s.summaries != nil {
		if data, ok := s.summaries.Get(kind); ok {
			s.metrics.SummaryCache(kind, true)
			return data, nil
		}
		s.metrics.SummaryCache(kind, false)
	}
	gen := s.generation.Load()

	records, err := s.GetVisits(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	data := aggregate(records)
	s.metrics.ObserveAggregation(kind, start)

	if s.summaries != nil && s.generation.Load() == gen {
		s.summaries.Set(kind, data)
	}
	return data, nil
}

// GetCityHistory returns the visits grouped by city, most recently first-visited
// city first.
func (s *VisitService) GetCityHistory(ctx context.Context) ([]core.CityHistory, error) {
	records, err := s.GetVisits(ctx)
	if err != nil {
		return nil, err
	}
	return core.HistoryByCity(records), nil
}

// SaveCityVisit appends one visit. The purpose must name an existing category.
func (s *VisitService) SaveCityVisit(ctx context.Context, rec core.VisitRecord) error {
	if err := s.requirePurpose(ctx, rec.Purpose); err != nil {
		return err
	}
	rec.Date = core.NormalizeDate(string(rec.Date))
	if err := s.ledger.Append(ctx, rec); err != nil {
		return fmt.Errorf("save visit: %w", err)
	}

	s.metrics.VisitMutation("save")
	s.logger.InfoContext(ctx, "Visit saved", "city", rec.City, "purpose", rec.Purpose, "date", rec.Date)
	s.publish(ledger.Event{Kind: ledger.KindVisitSaved, City: rec.City, Date: rec.Date, Purpose: rec.Purpose, Count: 1})
	return nil
}

// DeleteCityVisit removes every visit to city in the given month.
func (s *VisitService) DeleteCityVisit(ctx context.Context, city string, date core.YearMonth) (int, error) {
	removed, err := s.ledger.Delete(ctx, city, date)
	if err != nil {
		return 0, fmt.Errorf("delete visit: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}

	date = core.NormalizeDate(string(date))
	s.metrics.VisitMutation("delete")
	s.logger.InfoContext(ctx, "Visit deleted", "city", city, "date", date, "count", removed)
	s.publish(ledger.Event{Kind: ledger.KindVisitDeleted, City: city, Date: date, Count: removed})
	return removed, nil
}

// UpdateCityVisit changes the purpose of every visit to city in the given month.
func (s *VisitService) UpdateCityVisit(ctx context.Context, city string, date core.YearMonth, purpose string) (int, error) {
	if err := s.requirePurpose(ctx, purpose); err != nil {
		return 0, err
	}
	updated, err := s.ledger.Update(ctx, city, date, purpose)
	if err != nil {
		return 0, fmt.Errorf("update visit: %w", err)
	}
	if updated == 0 {
		return 0, nil
	}

	date = core.NormalizeDate(string(date))
	s.metrics.VisitMutation("update")
	s.logger.InfoContext(ctx, "Visit updated", "city", city, "date", date, "purpose", purpose, "count", updated)
	s.publish(ledger.Event{Kind: ledger.KindVisitUpdated, City: city, Date: date, Purpose: purpose, Count: updated})
	return updated, nil
}

// Import parses text and appends the new records in one transaction. Lines that
// fail validation reject the whole import with an *importer.Error.
func (s *VisitService) Import(ctx context.Context, text string) (ImportResult, error) {
	configs, err := s.registry.List(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("list categories: %w", err)
	}

	records, err := importer.Parse(text, core.PurposeNames(configs), s.now())
	if err != nil {
		var importErr *importer.Error
		if errors.As(err, &importErr) {
			s.metrics.ImportFailed()
			s.logger.WarnContext(ctx, "Import rejected", "invalid_lines", len(importErr.Lines))
		}
		return ImportResult{}, err
	}

	added, skipped, err := s.ledger.AppendBatch(ctx, records)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import visits: %w", err)
	}
	result := ImportResult{Parsed: len(records), Added: added, Skipped: skipped}

	s.metrics.Import(added, skipped)
	s.logger.InfoContext(ctx, "Import finished", "added", added, "skipped", skipped)
	if added > 0 {
		s.publish(ledger.Event{Kind: ledger.KindVisitsImported, Count: added})
	}
	return result, nil
}

// ImportExample returns sample import text using the current category names.
func (s *VisitService) ImportExample(ctx context.Context) (string, error) {
	configs, err := s.registry.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	return importer.Example(core.PurposeNames(configs)), nil
}

func (s *VisitService) GetPurposeConfigs(ctx context.Context) ([]core.PurposeConfig, error) {
	configs, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return configs, nil
}

func (s *VisitService) GetPurposeColors(ctx context.Context) (map[string]string, error) {
	colors, err := s.registry.Colors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list category colors: %w", err)
	}
	return colors, nil
}

func (s *VisitService) AddPurposeConfig(ctx context.Context, cfg core.PurposeConfig) error {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if err := s.registry.Add(ctx, cfg); err != nil {
		return fmt.Errorf("add category: %w", err)
	}
	s.metrics.CategoryMutation("add")
	s.logger.InfoContext(ctx, "Category added", "name", cfg.Name, "color", cfg.Color)
	s.publish(ledger.Event{Kind: ledger.KindCategoryAdded, Category: cfg.Name})
	return nil
}

// UpdatePurposeConfig renames and/or recolors a category. Visits follow a rename.
func (s *VisitService) UpdatePurposeConfig(ctx context.Context, oldName string, cfg core.PurposeConfig) error {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if err := s.registry.Update(ctx, oldName, cfg); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	s.metrics.CategoryMutation("update")
	s.logger.InfoContext(ctx, "Category updated", "from", oldName, "name", cfg.Name, "color", cfg.Color)
	s.publish(ledger.Event{Kind: ledger.KindCategoryUpdated, Category: cfg.Name, Purpose: oldName})
	return nil
}

// DeletePurposeConfig removes a category and moves its visits to migrateTo, or
// to the first remaining category when migrateTo is empty or unknown.
func (s *VisitService) DeletePurposeConfig(ctx context.Context, name, migrateTo string) error {
	if err := s.registry.Delete(ctx, name, migrateTo); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.metrics.CategoryMutation("delete")
	s.logger.InfoContext(ctx, "Category deleted", "name", name, "migrate_to", migrateTo)
	s.publish(ledger.Event{Kind: ledger.KindCategoryDeleted, Category: name, Purpose: migrateTo})
	return nil
}

// SetPurposeColor recolors an existing category.
func (s *VisitService) SetPurposeColor(ctx context.Context, name, color string) error {
	if err := s.registry.SetColor(ctx, name, color); err != nil {
		return fmt.Errorf("set category color: %w", err)
	}
	s.metrics.CategoryMutation("color")
	s.publish(ledger.Event{Kind: ledger.KindCategoryUpdated, Category: name})
	return nil
}

// ColorFor returns the map color for a place visited count times whose first
// visit had the given purpose.
func (s *VisitService) ColorFor(ctx context.Context, count int, purpose string) (core.RGB, error) {
	if count <= 0 || purpose == "" {
		return core.UnvisitedColor, nil
	}
	colors, err := s.GetPurposeColors(ctx)
	if err != nil {
		return core.RGB{}, err
	}
	return core.ColorForPurpose(core.DisplayCount(count), purpose, colors), nil
}

func (s *VisitService) requirePurpose(ctx context.Context, purpose string) error {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return core.ErrEmptyPurpose
	}
	configs, err := s.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if core.FindPurpose(configs, purpose) < 0 {
		return fmt.Errorf("%w: %q", core.ErrUnknownPurpose, purpose)
	}
	return nil
}

func (s *VisitService) publish(e ledger.Event) {
	s.generation.Add(1)
	if s.summaries != nil {
		s.summaries.Purge()
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	s.hub.Publish(e)
}
