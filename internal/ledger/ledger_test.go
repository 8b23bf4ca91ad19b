package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"visitmap/internal/core"
	applog "visitmap/internal/log"
	"visitmap/internal/store"
	"visitmap/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storedVisits(t *testing.T, s *memory.Store) []core.VisitRecord {
	t.Helper()
	raw, ok := s.Snapshot()[store.KeyVisits]
	if !ok {
		return nil
	}
	var out []core.VisitRecord
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("stored visits are not valid JSON: %v", err)
	}
	return out
}

func TestLoadEmptyStore(t *testing.T) {
	l := New(memory.New(), discardLogger())
	got, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil ledger, got %#v", got)
	}
}

func TestLoadMigratesLegacyDates(t *testing.T) {
	s := memory.NewWithData(map[string]string{
		store.KeyVisits: `[
			{"city":"北京市","purpose":"出差","date":"2023-05-17"},
			{"city":"上海市","purpose":"旅行","date":"2023/6/1"},
			{"city":"杭州市","purpose":"旅行","date":"2024-02"}
		]`,
	})
	l := New(s, discardLogger())
	ctx := context.Background()

	got, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []core.VisitRecord{
		{City: "北京市", Purpose: "出差", Date: "2023-05"},
		{City: "上海市", Purpose: "旅行", Date: "2023-06"},
		{City: "杭州市", Purpose: "旅行", Date: "2024-02"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load = %#v, want %#v", got, want)
	}
	if persisted := storedVisits(t, s); !reflect.DeepEqual(persisted, want) {
		t.Fatalf("migrated records not persisted: %#v", persisted)
	}

	again, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !reflect.DeepEqual(again, got) {
		t.Fatalf("Load is not idempotent: %#v", again)
	}
}

func TestLoadCorruptVisits(t *testing.T) {
	s := memory.NewWithData(map[string]string{store.KeyVisits: `{not json`})
	l := New(s, discardLogger())
	got, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty ledger, got %#v", got)
	}
}

func TestLoadCorruptVisitsLogsWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := memory.NewWithData(map[string]string{store.KeyVisits: `{not json`})
	if _, err := New(s, logger).Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0], &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line[applog.FieldComponent] != applog.ComponentLedger {
		t.Errorf("component = %v, want %s", line[applog.FieldComponent], applog.ComponentLedger)
	}
}

func TestAppend(t *testing.T) {
	s := memory.New()
	l := New(s, discardLogger())
	ctx := context.Background()

	if err := l.Append(ctx, core.VisitRecord{City: " 成都市 ", Purpose: "旅行", Date: "2024-03-09"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(ctx, core.VisitRecord{City: "成都市", Purpose: "旅行", Date: "2024-03"}); err != nil {
		t.Fatalf("Append duplicate: %v", err)
	}
	got := storedVisits(t, s)
	if len(got) != 2 {
		t.Fatalf("expected duplicate to be kept on the single-entry path, got %d records", len(got))
	}
	if got[0] != (core.VisitRecord{City: "成都市", Purpose: "旅行", Date: "2024-03"}) {
		t.Fatalf("record not normalized: %#v", got[0])
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	l := New(memory.New(), discardLogger())
	tests := []struct {
		name string
		rec  core.VisitRecord
		want error
	}{
		{"empty city", core.VisitRecord{Purpose: "旅行", Date: "2024-01"}, core.ErrEmptyCity},
		{"empty purpose", core.VisitRecord{City: "A", Date: "2024-01"}, core.ErrEmptyPurpose},
		{"empty date", core.VisitRecord{City: "A", Purpose: "旅行"}, core.ErrEmptyDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := l.Append(context.Background(), tt.rec); !errors.Is(err, tt.want) {
				t.Fatalf("Append error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAppendBatchDeduplicates(t *testing.T) {
	s := memory.NewWithData(map[string]string{
		store.KeyVisits: `[{"city":"北京市","purpose":"出差","date":"2024-01"}]`,
	})
	l := New(s, discardLogger())

	added, skipped, err := l.AppendBatch(context.Background(), []core.VisitRecord{
		{City: "北京市", Purpose: "出差", Date: "2024-01"}, // existing triple
		{City: "北京市", Purpose: "旅行", Date: "2024-01"}, // existing (city, date)
		{City: "上海市", Purpose: "旅行", Date: "2024-02"},
		{City: "上海市", Purpose: "旅行", Date: "2024-02"}, // repeated within the batch
		{City: "上海市", Purpose: "徒步", Date: "2024-03-15"},
	})
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if added != 2 || skipped != 3 {
		t.Fatalf("added=%d skipped=%d, want 2 and 3", added, skipped)
	}
	want := []core.VisitRecord{
		{City: "北京市", Purpose: "出差", Date: "2024-01"},
		{City: "上海市", Purpose: "旅行", Date: "2024-02"},
		{City: "上海市", Purpose: "徒步", Date: "2024-03"},
	}
	if got := storedVisits(t, s); !reflect.DeepEqual(got, want) {
		t.Fatalf("stored = %#v, want %#v", got, want)
	}
}

func TestAppendBatchAllDuplicatesWritesNothing(t *testing.T) {
	const seed = `[{"city":"北京市","purpose":"出差","date":"2024-01"}]`
	s := memory.NewWithData(map[string]string{store.KeyVisits: seed})
	l := New(s, discardLogger())

	added, skipped, err := l.AppendBatch(context.Background(), []core.VisitRecord{
		{City: "北京市", Purpose: "出差", Date: "2024-01"},
	})
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if added != 0 || skipped != 1 {
		t.Fatalf("added=%d skipped=%d", added, skipped)
	}
	if s.Snapshot()[store.KeyVisits] != seed {
		t.Fatalf("store was rewritten")
	}
}

func TestAppendBatchInvalidRecordAbortsBatch(t *testing.T) {
	s := memory.New()
	l := New(s, discardLogger())
	_, _, err := l.AppendBatch(context.Background(), []core.VisitRecord{
		{City: "A", Purpose: "旅行", Date: "2024-01"},
		{City: "", Purpose: "旅行", Date: "2024-01"},
	})
	if !errors.Is(err, core.ErrEmptyCity) {
		t.Fatalf("expected ErrEmptyCity, got %v", err)
	}
	if got := storedVisits(t, s); got != nil {
		t.Fatalf("nothing should be stored, got %#v", got)
	}
}

func TestDeleteAndUpdate(t *testing.T) {
	s := memory.NewWithData(map[string]string{
		store.KeyVisits: `[
			{"city":"A","purpose":"出差","date":"2024-01"},
			{"city":"A","purpose":"旅行","date":"2024-01"},
			{"city":"A","purpose":"旅行","date":"2024-02"},
			{"city":"B","purpose":"徒步","date":"2024-01"}
		]`,
	})
	l := New(s, discardLogger())
	ctx := context.Background()

	updated, err := l.Update(ctx, "A", "2024-01-20", "徒步")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	removed, err := l.Delete(ctx, "A", "2024-01")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	want := []core.VisitRecord{
		{City: "A", Purpose: "旅行", Date: "2024-02"},
		{City: "B", Purpose: "徒步", Date: "2024-01"},
	}
	if got := storedVisits(t, s); !reflect.DeepEqual(got, want) {
		t.Fatalf("stored = %#v, want %#v", got, want)
	}

	if n, err := l.Delete(ctx, "C", "2020-01"); err != nil || n != 0 {
		t.Fatalf("Delete of missing visit = %d, %v", n, err)
	}
	if n, err := l.Update(ctx, "C", "2020-01", "旅行"); err != nil || n != 0 {
		t.Fatalf("Update of missing visit = %d, %v", n, err)
	}
	if _, err := l.Update(ctx, "A", "2024-02", " "); !errors.Is(err, core.ErrEmptyPurpose) {
		t.Fatalf("expected ErrEmptyPurpose, got %v", err)
	}
}
