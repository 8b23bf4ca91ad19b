package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"visitmap/internal/core"
)

const maxColumnWidth = 40

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Options.DrawBorder = true
	t.AppendHeader(header)
	return t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// renderPlaces prints city or province summaries with their map colors.
func renderPlaces(w io.Writer, title string, data []core.CityData, colors map[string]string) {
	t := newTable(w, table.Row{"#", title, "Purpose", "Visits", "First visit", "Color"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: maxColumnWidth},
		{Number: 4, Align: text.AlignRight},
	})

	total := 0
	for i, d := range data {
		color := core.ColorForPurpose(core.DisplayCount(d.Count), d.Purpose, colors)
		t.AppendRow(table.Row{i + 1, d.City, d.Purpose, d.Count, d.FirstVisitDate, color.Hex()})
		total += d.Count
	}
	t.AppendFooter(table.Row{"Total", len(data), "", total, "", ""})
	t.Render()
}

func renderVisits(w io.Writer, visits []core.VisitRecord) {
	t := newTable(w, table.Row{"#", "City", "Purpose", "Date"})
	for i, v := range visits {
		t.AppendRow(table.Row{i + 1, v.City, v.Purpose, v.Date})
	}
	t.AppendFooter(table.Row{"Total", len(visits), "", ""})
	t.Render()
}

func renderHistory(w io.Writer, history []core.CityHistory) {
	t := newTable(w, table.Row{"City", "Visits", "Dates"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: maxColumnWidth * 2}})
	for _, h := range history {
		dates := ""
		for i, v := range h.Visits {
			if i > 0 {
				dates += ", "
			}
			dates += fmt.Sprintf("%s (%s)", v.Date, v.Purpose)
		}
		t.AppendRow(table.Row{h.Summary.City, h.Summary.Count, dates})
	}
	t.AppendFooter(table.Row{"Total", len(history), ""})
	t.Render()
}

func renderPurposes(w io.Writer, configs []core.PurposeConfig, usage map[string]int) {
	t := newTable(w, table.Row{"#", "Name", "Color", "Visits"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	for i, c := range configs {
		t.AppendRow(table.Row{i + 1, c.Name, c.Color, usage[c.Name]})
	}
	t.Render()
}
