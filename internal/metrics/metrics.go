// Package metrics exposes Prometheus instruments for the visit ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics tracks ledger mutations, imports, aggregation cost and HTTP traffic.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	VisitMutations      *prometheus.CounterVec
	CategoryMutations   *prometheus.CounterVec
	ImportedRecords     prometheus.Counter
	SkippedRecords      prometheus.Counter
	ImportFailures      prometheus.Counter
	AggregationDuration *prometheus.HistogramVec
	LedgerSize          prometheus.Gauge
	SummaryLookups      *prometheus.CounterVec
	SheetSyncs          *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers every instrument on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		VisitMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visitmap_visit_mutations_total",
			Help: "Visit ledger writes by operation",
		}, []string{"op"}),
		CategoryMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visitmap_category_mutations_total",
			Help: "Category registry writes by operation",
		}, []string{"op"}),
		ImportedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "visitmap_import_records_added_total",
			Help: "Records added by bulk import",
		}),
		SkippedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "visitmap_import_records_skipped_total",
			Help: "Duplicate records skipped by bulk import",
		}),
		ImportFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "visitmap_import_failures_total",
			Help: "Bulk imports rejected because of invalid lines",
		}),
		AggregationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visitmap_aggregation_duration_seconds",
			Help:    "Duration of city and province aggregation",
			Buckets: durationBuckets,
		}, []string{"view"}),
		LedgerSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "visitmap_ledger_records",
			Help: "Number of visit records seen on the last load",
		}),
		SummaryLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visitmap_summary_cache_lookups_total",
			Help: "City and province summary cache lookups by view and result",
		}, []string{"view", "result"}),
		SheetSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visitmap_sheet_syncs_total",
			Help: "Spreadsheet exports by result",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visitmap_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visitmap_http_request_duration_seconds",
			Help:    "HTTP request latency by method",
			Buckets: durationBuckets,
		}, []string{"method"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// VisitMutation counts one visit write.
func (m *Metrics) VisitMutation(op string) {
	if m == nil {
		return
	}
	m.VisitMutations.WithLabelValues(op).Inc()
}

// CategoryMutation counts one category write.
func (m *Metrics) CategoryMutation(op string) {
	if m == nil {
		return
	}
	m.CategoryMutations.WithLabelValues(op).Inc()
}

// Import records the outcome of a successful bulk import.
func (m *Metrics) Import(added, skipped int) {
	if m == nil {
		return
	}
	m.ImportedRecords.Add(float64(added))
	m.SkippedRecords.Add(float64(skipped))
}

func (m *Metrics) ImportFailed() {
	if m == nil {
		return
	}
	m.ImportFailures.Inc()
}

// ObserveAggregation records the duration of one aggregation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAggregation(view string, start time.Time) {
	if m == nil {
		return
	}
	m.AggregationDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

// SummaryCache counts one summary cache lookup.
func (m *Metrics) SummaryCache(view string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SummaryLookups.WithLabelValues(view, result).Inc()
}

func (m *Metrics) SetLedgerSize(n int) {
	if m == nil {
		return
	}
	m.LedgerSize.Set(float64(n))
}

// SheetSync counts one spreadsheet export.
func (m *Metrics) SheetSync(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SheetSyncs.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
