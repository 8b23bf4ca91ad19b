package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// YearMonth is a calendar month in YYYY-MM form. Values read from older data
// may hold other shapes until they are normalized.
type YearMonth string

var (
	yearMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
	fullDateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Layouts tried, in order, for inputs that are neither YYYY-MM nor YYYY-MM-DD.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-1-2",
	"2006-1",
	"2006/01/02",
	"2006/1/2",
	"2006/01",
	"2006/1",
	"2006.01.02",
	"2006.1.2",
	"2006.01",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2006",
	"January 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006年1月2日",
	"2006年1月",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC822,
	time.ANSIC,
	"Mon Jan 02 2006",
	"2006",
}

// NormalizeDate maps any accepted date representation to YYYY-MM. Input that
// cannot be parsed is returned unchanged; callers needing strict validation use
// ParseYearMonth on the result.
func NormalizeDate(input string) YearMonth {
	s := strings.TrimSpace(input)
	switch {
	case yearMonthRe.MatchString(s):
		return YearMonth(s)
	case fullDateRe.MatchString(s):
		return YearMonth(s[:7])
	}
	if t, ok := parseAnyDate(s); ok {
		return FromTime(t)
	}
	return YearMonth(input)
}

func parseAnyDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromTime formats t as YYYY-MM using the calendar date t carries.
func FromTime(t time.Time) YearMonth {
	return YearMonth(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// ParseYearMonth validates the strict YYYY-MM shape with a real month.
func ParseYearMonth(s string) (YearMonth, error) {
	if !yearMonthRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if m, _ := strconv.Atoi(s[5:]); m < 1 || m > 12 {
		return "", fmt.Errorf("%w: month out of range in %q", ErrInvalidDate, s)
	}
	return YearMonth(s), nil
}

// Valid reports whether ym is in canonical form.
func (ym YearMonth) Valid() bool {
	_, err := ParseYearMonth(string(ym))
	return err == nil
}

// Year returns the year, or 0 when ym is not canonical.
func (ym YearMonth) Year() int {
	if !ym.Valid() {
		return 0
	}
	y, _ := strconv.Atoi(string(ym[:4]))
	return y
}

// Month returns the month (1-12), or 0 when ym is not canonical.
func (ym YearMonth) Month() int {
	if !ym.Valid() {
		return 0
	}
	m, _ := strconv.Atoi(string(ym[5:]))
	return m
}

func (ym YearMonth) String() string {
	return string(ym)
}

// NormalizeRecords returns records with every date normalized and reports
// whether any record changed. The input slice is not modified.
func NormalizeRecords(records []VisitRecord) ([]VisitRecord, bool) {
	out := make([]VisitRecord, len(records))
	changed := false
	for i, r := range records {
		norm := NormalizeDate(string(r.Date))
		if norm != r.Date {
			changed = true
			r.Date = norm
		}
		out[i] = r
	}
	return out, changed
}
