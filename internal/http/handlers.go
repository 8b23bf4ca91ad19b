package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"visitmap/internal/core"
	applog "visitmap/internal/log"
)

// placeView is one city or province summary with its rendered map color.
type placeView struct {
	core.CityData
	Color string `json:"color"`
}

type visitRequest struct {
	City    string `json:"city"`
	Purpose string `json:"purpose"`
	Date    string `json:"date"`
}

type purposeRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type importRequest struct {
	Text string `json:"text"`
}

// fail writes the response for err and logs it when it is not a client error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ServiceError(err)
	if statusFor(err) >= http.StatusInternalServerError {
		ctx := r.Context()
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogError(ctx, "Request failed", err, applog.ComponentHTTP, op, applog.NewFields())
	}
	resp.Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers a category read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	status, code := "ready", http.StatusOK
	if _, err := s.svc.GetPurposeConfigs(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	NewJSONResponse().Status(code).Data(map[string]any{"status": status, "checks": checks}).Write(w)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	s.writePlaces(w, r, "cities", s.svc.GetCityData)
}

func (s *Server) handleProvinces(w http.ResponseWriter, r *http.Request) {
	s.writePlaces(w, r, "provinces", s.svc.GetProvinceData)
}

func (s *Server) writePlaces(w http.ResponseWriter, r *http.Request, op string, load func(context.Context) ([]core.CityData, error)) {
	ctx := r.Context()
	data, err := load(ctx)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	colors, err := s.svc.GetPurposeColors(ctx)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}

	out := make([]placeView, len(data))
	for i, d := range data {
		out[i] = placeView{
			CityData: d,
			Color:    core.ColorForPurpose(core.DisplayCount(d.Count), d.Purpose, colors).Hex(),
		}
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleListVisits(w http.ResponseWriter, r *http.Request) {
	visits, err := s.svc.GetVisits(r.Context())
	if err != nil {
		s.fail(w, r, "list_visits", err)
		return
	}
	if visits == nil {
		visits = []core.VisitRecord{}
	}
	NewJSONResponse().Data(visits).Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.GetCityHistory(r.Context())
	if err != nil {
		s.fail(w, r, "history", err)
		return
	}
	if history == nil {
		history = []core.CityHistory{}
	}
	NewJSONResponse().Data(history).Write(w)
}

func (s *Server) handleSaveVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "save_visit", err)
		return
	}
	date, err := parseDate(sanitizeInput(req.Date))
	if err != nil {
		s.fail(w, r, "save_visit", err)
		return
	}
	rec := core.VisitRecord{
		City:    sanitizeInput(req.City),
		Purpose: sanitizeInput(req.Purpose),
		Date:    date,
	}
	if err := s.svc.SaveCityVisit(r.Context(), rec); err != nil {
		s.fail(w, r, "save_visit", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(rec).Write(w)
}

func (s *Server) handleDeleteVisit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city := sanitizeInput(q.Get("city"))
	date := sanitizeInput(q.Get("date"))
	if city == "" || date == "" {
		BadRequestError("city and date are required").Write(w)
		return
	}
	ym, err := parseDate(date)
	if err != nil {
		s.fail(w, r, "delete_visit", err)
		return
	}
	removed, err := s.svc.DeleteCityVisit(r.Context(), city, ym)
	if err != nil {
		s.fail(w, r, "delete_visit", err)
		return
	}
	NewJSONResponse().Data(map[string]int{"removed": removed}).Write(w)
}

func (s *Server) handleUpdateVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "update_visit", err)
		return
	}
	city, date := sanitizeInput(req.City), sanitizeInput(req.Date)
	if city == "" || date == "" {
		BadRequestError("city and date are required").Write(w)
		return
	}
	ym, err := parseDate(date)
	if err != nil {
		s.fail(w, r, "update_visit", err)
		return
	}
	updated, err := s.svc.UpdateCityVisit(r.Context(), city, ym, sanitizeInput(req.Purpose))
	if err != nil {
		s.fail(w, r, "update_visit", err)
		return
	}
	NewJSONResponse().Data(map[string]int{"updated": updated}).Write(w)
}

func (s *Server) handleListPurposes(w http.ResponseWriter, r *http.Request) {
	configs, err := s.svc.GetPurposeConfigs(r.Context())
	if err != nil {
		s.fail(w, r, "list_purposes", err)
		return
	}
	NewJSONResponse().Data(configs).Write(w)
}

func (s *Server) handleAddPurpose(w http.ResponseWriter, r *http.Request) {
	var req purposeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "add_purpose", err)
		return
	}
	cfg := core.PurposeConfig{Name: sanitizeInput(req.Name), Color: sanitizeInput(req.Color)}
	if err := s.svc.AddPurposeConfig(r.Context(), cfg); err != nil {
		s.fail(w, r, "add_purpose", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(cfg).Write(w)
}

// handleUpdatePurpose renames and/or recolors {name}. Omitted fields keep their
// current value.
func (s *Server) handleUpdatePurpose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	oldName := strings.TrimSpace(r.PathValue("name"))

	var req purposeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "update_purpose", err)
		return
	}

	configs, err := s.svc.GetPurposeConfigs(ctx)
	if err != nil {
		s.fail(w, r, "update_purpose", err)
		return
	}
	i := core.FindPurpose(configs, oldName)
	if i < 0 {
		s.fail(w, r, "update_purpose", fmt.Errorf("%w: %s", core.ErrCategoryNotFound, oldName))
		return
	}

	cfg := configs[i]
	if v := sanitizeInput(req.Name); v != "" {
		cfg.Name = v
	}
	if v := sanitizeInput(req.Color); v != "" {
		cfg.Color = v
	}
	if err := s.svc.UpdatePurposeConfig(ctx, oldName, cfg); err != nil {
		s.fail(w, r, "update_purpose", err)
		return
	}
	NewJSONResponse().Data(cfg).Write(w)
}

func (s *Server) handleDeletePurpose(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	migrateTo := sanitizeInput(r.URL.Query().Get("migrate_to"))
	if err := s.svc.DeletePurposeConfig(r.Context(), name, migrateTo); err != nil {
		s.fail(w, r, "delete_purpose", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleImport accepts the import text either as the raw body or as
// {"text": "..."}.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := ReadRequestBody(w, r)
	if err != nil {
		s.fail(w, r, "import", err)
		return
	}
	text := body.Text()
	if body.IsJSON() {
		var req importRequest
		if err := body.Decode(&req); err != nil {
			s.fail(w, r, "import", err)
			return
		}
		text = req.Text
	}

	result, err := s.svc.Import(r.Context(), text)
	if err != nil {
		s.fail(w, r, "import", err)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"parsed":  result.Parsed,
		"added":   result.Added,
		"skipped": result.Skipped,
		"message": result.Summary(),
	}).Write(w)
}

func (s *Server) handleImportExample(w http.ResponseWriter, r *http.Request) {
	example, err := s.svc.ImportExample(r.Context())
	if err != nil {
		s.fail(w, r, "import_example", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(example))
}

func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, err := parseCount(q.Get("count"))
	if err != nil {
		s.fail(w, r, "color", err)
		return
	}
	purpose := sanitizeInput(q.Get("purpose"))
	rgb, err := s.svc.ColorFor(r.Context(), count, purpose)
	if err != nil {
		s.fail(w, r, "color", err)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"count":   count,
		"purpose": purpose,
		"rgb":     rgb.String(),
		"hex":     rgb.Hex(),
	}).Write(w)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := ReadRequestBody(w, r)
	if err != nil {
		return err
	}
	return body.Decode(v)
}
