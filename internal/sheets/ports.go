package sheets

import (
	"context"

	"visitmap/internal/core"
)

// Tab selects one of the summary worksheets.
type Tab int

const (
	TabCities Tab = iota
	TabProvinces
)

func (t Tab) String() string {
	switch t {
	case TabCities:
		return "cities"
	case TabProvinces:
		return "provinces"
	default:
		return "unknown"
	}
}

// Ports for outbound adapters.
type (
	// SummaryWriter replaces the contents of the export worksheets.
	SummaryWriter interface {
		// WriteVisits rewrites the raw visit log.
		WriteVisits(ctx context.Context, visits []core.VisitRecord) error
		// WriteSummary rewrites one aggregate view. colors maps category names to
		// their base color and is used for the color column.
		WriteSummary(ctx context.Context, tab Tab, data []core.CityData, colors map[string]string) error
	}
)
