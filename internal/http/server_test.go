package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"context"

	applog "visitmap/internal/log"
	"visitmap/internal/metrics"
	"visitmap/internal/services"
	"visitmap/internal/store/memory"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := services.NewVisitService(memory.New(),
		services.WithLogger(logger),
		services.WithClock(func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }),
	)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr := do(t, srv, http.MethodGet, "/metrics", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("/metrics without metrics: status=%d, want 404", rr.Code)
	}
}

func TestVisitLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})
	const jsonType = "application/json"

	rr := do(t, srv, http.MethodPost, "/api/visits", jsonType, `{"city":"杭州","purpose":"旅行","date":"2024-3"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body)
	}
	if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("middleware headers missing: %v", rr.Header())
	}

	cities := decode[[]map[string]any](t, do(t, srv, http.MethodGet, "/api/cities", "", ""))
	if len(cities) != 1 {
		t.Fatalf("cities = %v", cities)
	}
	if cities[0]["city"] != "杭州" || cities[0]["firstVisitDate"] != "2024-03" || cities[0]["color"] != "#ffaeae" {
		t.Errorf("unexpected city summary: %v", cities[0])
	}

	provinces := decode[[]map[string]any](t, do(t, srv, http.MethodGet, "/api/provinces", "", ""))
	if len(provinces) != 1 || provinces[0]["city"] != "浙江省" {
		t.Errorf("provinces = %v", provinces)
	}

	rr = do(t, srv, http.MethodPatch, "/api/visits", jsonType, `{"city":"杭州","date":"2024-03","purpose":"出差"}`)
	if got := decode[map[string]int](t, rr); rr.Code != http.StatusOK || got["updated"] != 1 {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body)
	}

	history := decode[[]map[string]any](t, do(t, srv, http.MethodGet, "/api/history", "", ""))
	if len(history) != 1 {
		t.Errorf("history = %v", history)
	}

	target := "/api/visits?city=" + url.QueryEscape("杭州") + "&date=2024-03"
	rr = do(t, srv, http.MethodDelete, target, "", "")
	if got := decode[map[string]int](t, rr); got["removed"] != 1 {
		t.Fatalf("delete body=%s", rr.Body)
	}
	visits := decode[[]any](t, do(t, srv, http.MethodGet, "/api/visits", "", ""))
	if len(visits) != 0 {
		t.Errorf("visits after delete = %v", visits)
	}
}

func TestVisitErrors(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown purpose", http.MethodPost, "/api/visits", `{"city":"杭州","purpose":"购物","date":"2024-03"}`, http.StatusUnprocessableEntity},
		{"missing city", http.MethodPost, "/api/visits", `{"purpose":"旅行","date":"2024-03"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/visits", `{"city":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/visits", `{"town":"杭州"}`, http.StatusBadRequest},
		{"delete without date", http.MethodDelete, "/api/visits?city=x", "", http.StatusBadRequest},
		{"unparseable date", http.MethodPost, "/api/visits", `{"city":"北京市","purpose":"旅行","date":"not-a-date"}`, http.StatusBadRequest},
		{"month out of range", http.MethodPost, "/api/visits", `{"city":"北京市","purpose":"旅行","date":"2024-13"}`, http.StatusBadRequest},
		{"delete with bad date", http.MethodDelete, "/api/visits?city=x&date=someday", "", http.StatusBadRequest},
		{"update with bad date", http.MethodPatch, "/api/visits", `{"city":"杭州","date":"later","purpose":"出差"}`, http.StatusBadRequest},
		{"update empty purpose", http.MethodPatch, "/api/visits", `{"city":"杭州","date":"2024-03","purpose":""}`, http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/api/visits", `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, "application/json", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}

	if visits := decode[[]any](t, do(t, srv, http.MethodGet, "/api/visits", "", "")); len(visits) != 0 {
		t.Errorf("rejected requests stored visits: %v", visits)
	}
}

func TestPurposeEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})
	const jsonType = "application/json"

	purposes := decode[[]map[string]string](t, do(t, srv, http.MethodGet, "/api/purposes", "", ""))
	if len(purposes) != 3 {
		t.Fatalf("default purposes = %v", purposes)
	}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"add", http.MethodPost, "/api/purposes", `{"name":"探亲","color":"#AA00FF"}`, http.StatusCreated},
		{"add duplicate", http.MethodPost, "/api/purposes", `{"name":"探亲","color":"#AA00FF"}`, http.StatusConflict},
		{"add bad color", http.MethodPost, "/api/purposes", `{"name":"学习","color":"red"}`, http.StatusBadRequest},
		{"recolor only", http.MethodPut, "/api/purposes/" + url.PathEscape("探亲"), `{"color":"#00AAFF"}`, http.StatusOK},
		{"rename onto existing", http.MethodPut, "/api/purposes/" + url.PathEscape("探亲"), `{"name":"旅行"}`, http.StatusConflict},
		{"update missing", http.MethodPut, "/api/purposes/" + url.PathEscape("不存在"), `{"color":"#00AAFF"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/purposes/" + url.PathEscape("不存在"), "", http.StatusNotFound},
		{"delete with migration", http.MethodDelete, "/api/purposes/" + url.PathEscape("探亲") + "?migrate_to=" + url.QueryEscape("旅行"), "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, jsonType, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}

	for _, name := range []string{"出差", "旅行"} {
		if rr := do(t, srv, http.MethodDelete, "/api/purposes/"+url.PathEscape(name), "", ""); rr.Code != http.StatusNoContent {
			t.Fatalf("delete %s status=%d", name, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodDelete, "/api/purposes/"+url.PathEscape("徒步"), "", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("deleting last category status=%d, want 409", rr.Code)
	}
}

func TestImport(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/import", "text/plain", "杭州 旅行 2024-03\n苏州,出差\n")
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body)
	}
	got := decode[map[string]any](t, rr)
	if got["added"] != float64(2) || got["skipped"] != float64(0) {
		t.Errorf("import result = %v", got)
	}

	rr = do(t, srv, http.MethodPost, "/api/import", "application/json", `{"text":"杭州 旅行 2024-03"}`)
	got = decode[map[string]any](t, rr)
	if got["added"] != float64(0) || got["skipped"] != float64(1) {
		t.Errorf("duplicate import result = %v", got)
	}

	rr = do(t, srv, http.MethodPost, "/api/import", "text/plain", "杭州 旅行\n南京\n上海 购物")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid import status=%d", rr.Code)
	}
	body := decode[struct {
		Error   string `json:"error"`
		Details []struct {
			Line int `json:"line"`
		} `json:"details"`
	}](t, rr)
	if len(body.Details) != 2 || body.Details[0].Line != 2 || body.Details[1].Line != 3 {
		t.Errorf("line errors = %+v", body.Details)
	}

	if rr := do(t, srv, http.MethodPost, "/api/import", "text/plain", "  \n"); rr.Code != http.StatusBadRequest {
		t.Errorf("empty import status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/import/example", "", "")
	if rr.Code != http.StatusOK || strings.Count(rr.Body.String(), "\n") < 4 {
		t.Errorf("example status=%d body=%q", rr.Code, rr.Body)
	}
}

func TestColorEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		query string
		code  int
		hex   string
	}{
		{"count=0&purpose=" + url.QueryEscape("旅行"), http.StatusOK, "#f5f5fa"},
		{"count=1&purpose=" + url.QueryEscape("旅行"), http.StatusOK, "#ffaeae"},
		{"count=9&purpose=" + url.QueryEscape("旅行"), http.StatusOK, "#ff6b6b"},
		{"count=abc", http.StatusBadRequest, ""},
		{"count=-1", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		rr := do(t, srv, http.MethodGet, "/api/color?"+tt.query, "", "")
		if rr.Code != tt.code {
			t.Errorf("%s: status=%d want %d", tt.query, rr.Code, tt.code)
			continue
		}
		if tt.hex != "" {
			if got := decode[map[string]any](t, rr); got["hex"] != tt.hex {
				t.Errorf("%s: hex=%v want %s", tt.query, got["hex"], tt.hex)
			}
		}
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 1})
	body := `{"city":"杭州","purpose":"旅行","date":"2024-03"}`

	if rr := do(t, srv, http.MethodPost, "/api/visits", "application/json", body); rr.Code != http.StatusCreated {
		t.Fatalf("first write status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/visits", "application/json", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("second write status=%d headers=%v", rr.Code, rr.Header())
	}
	if rr := do(t, srv, http.MethodGet, "/api/visits", "", ""); rr.Code != http.StatusOK {
		t.Errorf("reads are not limited, status=%d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{Metrics: metrics.New()})
	do(t, srv, http.MethodGet, "/api/cities", "", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "visitmap_http_requests_total") {
		t.Errorf("http request counter missing from /metrics")
	}
}

func TestBlockedRequest(t *testing.T) {
	srv := newTestServer(t, Options{})
	if rr := do(t, srv, http.MethodGet, "/api/color?purpose=%3Cscript%3E&count=1", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("status=%d, want 400", rr.Code)
	}
}
