package google

import (
	"visitmap/internal/core"
)

var (
	visitsHeader  = []any{"City", "Purpose", "Date"}
	summaryHeader = []any{"Name", "Purpose", "Visits", "First visit", "Color"}
)

// visitRows converts the visit log into sheet rows, header first.
func visitRows(visits []core.VisitRecord) [][]any {
	rows := make([][]any, 0, len(visits)+1)
	rows = append(rows, visitsHeader)
	for _, v := range visits {
		rows = append(rows, []any{v.City, v.Purpose, v.Date.String()})
	}
	return rows
}

// summaryRows converts an aggregate view into sheet rows, header first. The
// color column carries the map color for the row's count and purpose.
func summaryRows(data []core.CityData, colors map[string]string) [][]any {
	rows := make([][]any, 0, len(data)+1)
	rows = append(rows, summaryHeader)
	for _, d := range data {
		color := core.ColorForPurpose(core.DisplayCount(d.Count), d.Purpose, colors)
		rows = append(rows, []any{d.City, d.Purpose, d.Count, d.FirstVisitDate.String(), color.Hex()})
	}
	return rows
}
