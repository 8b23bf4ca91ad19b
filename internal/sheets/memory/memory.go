// Package memory holds the last exported sheets in process memory. It backs
// the worker when no spreadsheet is configured and serves as a test double.
package memory

import (
	"context"
	"sync"

	"visitmap/internal/core"
	ports "visitmap/internal/sheets"
)

type Writer struct {
	mu        sync.Mutex
	visits    []core.VisitRecord
	summaries map[ports.Tab][]core.CityData
	writes    int
}

var _ ports.SummaryWriter = (*Writer)(nil)

func NewWriter() *Writer {
	return &Writer{summaries: make(map[ports.Tab][]core.CityData)}
}

func (w *Writer) WriteVisits(_ context.Context, visits []core.VisitRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visits = append([]core.VisitRecord(nil), visits...)
	w.writes++
	return nil
}

func (w *Writer) WriteSummary(_ context.Context, tab ports.Tab, data []core.CityData, _ map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summaries[tab] = append([]core.CityData(nil), data...)
	w.writes++
	return nil
}

// Visits returns the last written visit log.
func (w *Writer) Visits() []core.VisitRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]core.VisitRecord(nil), w.visits...)
}

// Summary returns the last written rows of tab.
func (w *Writer) Summary(tab ports.Tab) []core.CityData {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]core.CityData(nil), w.summaries[tab]...)
}

// Writes counts every write call.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
