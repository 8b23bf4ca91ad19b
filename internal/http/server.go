package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"visitmap/internal/core"
	applog "visitmap/internal/log"
	"visitmap/internal/metrics"
	"visitmap/internal/middleware/ratelimit"
	"visitmap/internal/middleware/security"
	"visitmap/internal/middleware/trace"
	"visitmap/internal/services"
)

// VisitAPI is the part of services.VisitService the API serves.
type VisitAPI interface {
	GetCityData(ctx context.Context) ([]core.CityData, error)
	GetProvinceData(ctx context.Context) ([]core.CityData, error)
	GetVisits(ctx context.Context) ([]core.VisitRecord, error)
	GetCityHistory(ctx context.Context) ([]core.CityHistory, error)
	SaveCityVisit(ctx context.Context, rec core.VisitRecord) error
	DeleteCityVisit(ctx context.Context, city string, date core.YearMonth) (int, error)
	UpdateCityVisit(ctx context.Context, city string, date core.YearMonth, purpose string) (int, error)
	GetPurposeConfigs(ctx context.Context) ([]core.PurposeConfig, error)
	GetPurposeColors(ctx context.Context) (map[string]string, error)
	AddPurposeConfig(ctx context.Context, cfg core.PurposeConfig) error
	UpdatePurposeConfig(ctx context.Context, oldName string, cfg core.PurposeConfig) error
	DeletePurposeConfig(ctx context.Context, name, migrateTo string) error
	SetPurposeColor(ctx context.Context, name, color string) error
	Import(ctx context.Context, text string) (services.ImportResult, error)
	ImportExample(ctx context.Context) (string, error)
	ColorFor(ctx context.Context, count int, purpose string) (core.RGB, error)
}

var _ VisitAPI = (*services.VisitService)(nil)

type Server struct {
	http.Server
	svc         VisitAPI
	logger      *applog.Logger
	metrics     *metrics.Metrics
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	startedAt   time.Time

	shutdownOnce sync.Once
}

// Options configures NewServer. Zero values disable the optional parts.
type Options struct {
	Logger             *applog.Logger
	Metrics            *metrics.Metrics
	RateLimitPerMinute int
}

func NewServer(addr string, svc VisitAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		svc:         svc,
		logger:      logger,
		metrics:     opts.Metrics,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:    security.NewDetector(),
		startedAt:   time.Now(),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/cities", s.handleCities)
	api.HandleFunc("GET /api/provinces", s.handleProvinces)
	api.HandleFunc("GET /api/visits", s.handleListVisits)
	api.HandleFunc("POST /api/visits", s.handleSaveVisit)
	api.HandleFunc("DELETE /api/visits", s.handleDeleteVisit)
	api.HandleFunc("PATCH /api/visits", s.handleUpdateVisit)
	api.HandleFunc("GET /api/history", s.handleHistory)
	api.HandleFunc("GET /api/purposes", s.handleListPurposes)
	api.HandleFunc("POST /api/purposes", s.handleAddPurpose)
	api.HandleFunc("PUT /api/purposes/{name}", s.handleUpdatePurpose)
	api.HandleFunc("DELETE /api/purposes/{name}", s.handleDeletePurpose)
	api.HandleFunc("POST /api/import", s.handleImport)
	api.HandleFunc("GET /api/import/example", s.handleImportExample)
	api.HandleFunc("GET /api/color", s.handleColor)

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.metrics.ObserveHTTP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, isWrite, s.onRateLimit)

	var apiHandler http.Handler = api
	apiHandler = limit(apiHandler)
	apiHandler = headers.Middleware(apiHandler)
	apiHandler = s.detector.Middleware(logger.Logger)(apiHandler)
	apiHandler = tracer.Middleware(apiHandler)
	apiHandler = applog.Middleware(logger)(apiHandler)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// isWrite selects the requests that count against the rate limit.
func isWrite(r *http.Request) bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request, _ time.Duration) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r), "method", r.Method, "path", r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
