package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"visitmap/internal/core"
	"visitmap/internal/store"
	"visitmap/internal/store/memory"
)

const seededVisits = `[
	{"city":"北京市","purpose":"出差","date":"2024-01"},
	{"city":"上海市","purpose":"旅行","date":"2024-02"},
	{"city":"杭州市","purpose":"旅行","date":"2024-03"},
	{"city":"黄山市","purpose":"徒步","date":"2024-04"}
]`

func newSeededRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	s := memory.NewWithData(map[string]string{store.KeyVisits: seededVisits})
	r := NewRegistry(s, discardLogger())
	if err := r.EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	return r, s
}

func storedColors(t *testing.T, s *memory.Store) map[string]string {
	t.Helper()
	var colors map[string]string
	if err := json.Unmarshal([]byte(s.Snapshot()[store.KeyPurposeColors]), &colors); err != nil {
		t.Fatalf("stored colors: %v", err)
	}
	return colors
}

func purposesOf(records []core.VisitRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Purpose
	}
	return out
}

func TestEnsureInitializedPersistsDefaults(t *testing.T) {
	s := memory.New()
	r := NewRegistry(s, discardLogger())
	ctx := context.Background()

	if err := r.EnsureInitialized(ctx); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	got, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(got, core.DefaultPurposeConfigs()) {
		t.Fatalf("List = %#v", got)
	}
	want := map[string]string{"出差": "#4A90E2", "旅行": "#FF6B6B", "徒步": "#52C41A"}
	if colors := storedColors(t, s); !reflect.DeepEqual(colors, want) {
		t.Fatalf("purpose_colors = %#v", colors)
	}
}

func TestEnsureInitializedKeepsExisting(t *testing.T) {
	s := memory.NewWithData(map[string]string{
		store.KeyPurposeConfigs: `[{"name":"Work","color":"#111111"}]`,
	})
	r := NewRegistry(s, discardLogger())
	ctx := context.Background()
	if err := r.EnsureInitialized(ctx); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	got, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Work" {
		t.Fatalf("existing categories replaced: %#v", got)
	}
}

func TestListNeverEmpty(t *testing.T) {
	tests := []struct {
		name string
		seed map[string]string
	}{
		{"missing", map[string]string{}},
		{"empty list", map[string]string{store.KeyPurposeConfigs: `[]`}},
		{"corrupt", map[string]string{store.KeyPurposeConfigs: `[{"name":`}},
		{"blank names", map[string]string{store.KeyPurposeConfigs: `[{"name":" ","color":"#000000"}]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.NewWithData(tt.seed)
			r := NewRegistry(s, discardLogger())
			got, err := r.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !reflect.DeepEqual(got, core.DefaultPurposeConfigs()) {
				t.Fatalf("List = %#v, want defaults", got)
			}
			if _, ok := s.Snapshot()[store.KeyPurposeConfigs]; !ok {
				t.Fatalf("defaults were not persisted")
			}
		})
	}
}

func TestAddCategory(t *testing.T) {
	r, s := newSeededRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, core.PurposeConfig{Name: " 探亲 ", Color: "#AA00FF"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, _ := r.List(ctx)
	if len(got) != 4 || got[3] != (core.PurposeConfig{Name: "探亲", Color: "#AA00FF"}) {
		t.Fatalf("List after Add = %#v", got)
	}
	if storedColors(t, s)["探亲"] != "#AA00FF" {
		t.Fatalf("purpose_colors not rewritten")
	}

	tests := []struct {
		name string
		cfg  core.PurposeConfig
		want error
	}{
		{"duplicate", core.PurposeConfig{Name: "旅行", Color: "#000000"}, core.ErrDuplicateCategory},
		{"blank name", core.PurposeConfig{Name: "  ", Color: "#000000"}, core.ErrInvalidCategory},
		{"bad color", core.PurposeConfig{Name: "X", Color: "red"}, core.ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Snapshot()
			if err := r.Add(ctx, tt.cfg); !errors.Is(err, tt.want) {
				t.Fatalf("Add error = %v, want %v", err, tt.want)
			}
			if !reflect.DeepEqual(before, s.Snapshot()) {
				t.Fatalf("failed Add changed the store")
			}
		})
	}
}

func TestRenameCascadesToVisits(t *testing.T) {
	r, s := newSeededRegistry(t)
	ctx := context.Background()

	if err := r.Update(ctx, "出差", core.PurposeConfig{Name: "Work", Color: "#123456"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := r.List(ctx)
	if got[0] != (core.PurposeConfig{Name: "Work", Color: "#123456"}) {
		t.Fatalf("category not renamed in place: %#v", got)
	}
	if core.FindPurpose(got, "出差") >= 0 {
		t.Fatalf("old name still listed")
	}
	wantPurposes := []string{"Work", "旅行", "旅行", "徒步"}
	if p := purposesOf(storedVisits(t, s)); !reflect.DeepEqual(p, wantPurposes) {
		t.Fatalf("visit purposes = %v, want %v", p, wantPurposes)
	}
	colors := storedColors(t, s)
	if _, ok := colors["出差"]; ok || colors["Work"] != "#123456" {
		t.Fatalf("purpose_colors = %#v", colors)
	}
}

func TestUpdateColorOnly(t *testing.T) {
	r, s := newSeededRegistry(t)
	if err := r.Update(context.Background(), "旅行", core.PurposeConfig{Name: "旅行", Color: "#000000"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p := purposesOf(storedVisits(t, s)); p[1] != "旅行" {
		t.Fatalf("visits changed on recolor: %v", p)
	}
	if storedColors(t, s)["旅行"] != "#000000" {
		t.Fatalf("color not updated")
	}
}

func TestUpdateErrors(t *testing.T) {
	r, s := newSeededRegistry(t)
	ctx := context.Background()
	before := s.Snapshot()

	if err := r.Update(ctx, "nope", core.PurposeConfig{Name: "x", Color: "#000000"}); !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if err := r.Update(ctx, "出差", core.PurposeConfig{Name: "旅行", Color: "#000000"}); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}
	if err := r.Update(ctx, "出差", core.PurposeConfig{Name: "出差", Color: "#zzzzzz"}); !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Fatalf("failed updates changed the store")
	}
}

func TestDeleteMigratesVisits(t *testing.T) {
	tests := []struct {
		name      string
		migrateTo string
		want      []string
	}{
		{"first remaining", "", []string{"出差", "出差", "出差", "徒步"}},
		{"explicit target", "徒步", []string{"出差", "徒步", "徒步", "徒步"}},
		{"unknown target falls back", "nope", []string{"出差", "出差", "出差", "徒步"}},
		{"self target falls back", "旅行", []string{"出差", "出差", "出差", "徒步"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, s := newSeededRegistry(t)
			ctx := context.Background()
			if err := r.Delete(ctx, "旅行", tt.migrateTo); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if p := purposesOf(storedVisits(t, s)); !reflect.DeepEqual(p, tt.want) {
				t.Fatalf("visit purposes = %v, want %v", p, tt.want)
			}
			got, _ := r.List(ctx)
			if !reflect.DeepEqual(core.PurposeNames(got), []string{"出差", "徒步"}) {
				t.Fatalf("categories = %v", core.PurposeNames(got))
			}
			if _, ok := storedColors(t, s)["旅行"]; ok {
				t.Fatalf("deleted category still in purpose_colors")
			}
		})
	}
}

func TestDeleteErrors(t *testing.T) {
	s := memory.NewWithData(map[string]string{
		store.KeyPurposeConfigs: `[{"name":"Only","color":"#000000"}]`,
		store.KeyVisits:         `[{"city":"A","purpose":"Only","date":"2024-01"}]`,
	})
	r := NewRegistry(s, discardLogger())
	ctx := context.Background()
	before := s.Snapshot()

	if err := r.Delete(ctx, "Only", ""); !errors.Is(err, core.ErrLastCategory) {
		t.Fatalf("expected ErrLastCategory, got %v", err)
	}
	if err := r.Delete(ctx, "Missing", ""); !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Fatalf("failed deletes changed the store")
	}
}

func TestSetColor(t *testing.T) {
	r, _ := newSeededRegistry(t)
	ctx := context.Background()

	if err := r.SetColor(ctx, "徒步", "#abcdef"); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	colors, err := r.Colors(ctx)
	if err != nil {
		t.Fatalf("Colors: %v", err)
	}
	if colors["徒步"] != "#abcdef" {
		t.Fatalf("Colors = %#v", colors)
	}
	if err := r.SetColor(ctx, "nope", "#abcdef"); !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if err := r.SetColor(ctx, "徒步", "blue"); !errors.Is(err, core.ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
}
