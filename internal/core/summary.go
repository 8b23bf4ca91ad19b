package core

import "sort"

// CityData summarizes the visits to one city, or to one province when built
// by AggregateByProvince.
type CityData struct {
	City           string    `json:"city"`
	Purpose        string    `json:"purpose"`
	Count          int       `json:"count"`
	FirstVisitDate YearMonth `json:"firstVisitDate"`
}

// ProvinceResolver maps city names to their province.
type ProvinceResolver interface {
	// IsProvince reports whether name is already a full province name.
	IsProvince(name string) bool
	// Resolve returns the province containing city.
	Resolve(city string) (province string, ok bool)
}

// CityHistory is the per-city listing: the summary plus every visit, newest first.
type CityHistory struct {
	Summary CityData      `json:"summary"`
	Visits  []VisitRecord `json:"visits"`
}

// AggregateByCity groups records by city in order of first appearance. The
// purpose of each group is taken from its earliest-dated record; ties keep the
// record that comes first in the ledger.
func AggregateByCity(records []VisitRecord) []CityData {
	return aggregate(records, func(r VisitRecord) (string, bool) { return r.City, true })
}

// AggregateByProvince rolls records up to provinces. A city that already names a
// province is used as is; otherwise the resolver is asked. Cities that cannot be
// resolved are left out of the result and returned in unresolved, once each.
func AggregateByProvince(records []VisitRecord, resolver ProvinceResolver) (data []CityData, unresolved []string) {
	seen := make(map[string]struct{})
	data = aggregate(records, func(r VisitRecord) (string, bool) {
		if resolver.IsProvince(r.City) {
			return r.City, true
		}
		if p, ok := resolver.Resolve(r.City); ok {
			return p, true
		}
		if _, dup := seen[r.City]; !dup {
			seen[r.City] = struct{}{}
			unresolved = append(unresolved, r.City)
		}
		return "", false
	})
	return data, unresolved
}

func aggregate(records []VisitRecord, keyOf func(VisitRecord) (string, bool)) []CityData {
	index := make(map[string]int)
	out := make([]CityData, 0)
	for _, r := range records {
		key, ok := keyOf(r)
		if !ok {
			continue
		}
		i, exists := index[key]
		if !exists {
			index[key] = len(out)
			out = append(out, CityData{
				City:           key,
				Purpose:        r.Purpose,
				Count:          1,
				FirstVisitDate: r.Date,
			})
			continue
		}
		out[i].Count++
		if r.Date < out[i].FirstVisitDate {
			out[i].FirstVisitDate = r.Date
			out[i].Purpose = r.Purpose
		}
	}
	return out
}

// HistoryByCity groups records per city. Groups are ordered by first visit,
// most recent first; visits inside a group are ordered by date, newest first.
// Equal dates keep ledger order.
func HistoryByCity(records []VisitRecord) []CityHistory {
	summaries := AggregateByCity(records)
	byCity := make(map[string][]VisitRecord, len(summaries))
	for _, r := range records {
		byCity[r.City] = append(byCity[r.City], r)
	}

	out := make([]CityHistory, len(summaries))
	for i, s := range summaries {
		visits := byCity[s.City]
		sort.SliceStable(visits, func(a, b int) bool { return visits[a].Date > visits[b].Date })
		out[i] = CityHistory{Summary: s, Visits: visits}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Summary.FirstVisitDate > out[b].Summary.FirstVisitDate
	})
	return out
}

// CountPurposes returns how many records reference each purpose.
func CountPurposes(records []VisitRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Purpose]++
	}
	return counts
}
