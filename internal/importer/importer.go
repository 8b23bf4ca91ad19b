// Package importer parses the plain-text bulk import format: one visit per line,
// "city purpose [date]" separated by commas, tabs or spaces.
package importer

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"visitmap/internal/core"
)

var ErrEmptyImport = errors.New("nothing to import")

// LineError is a problem with one input line. Line is 1-based.
type LineError struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Error collects every rejected line of one import.
type Error struct {
	Lines []LineError `json:"lines"`
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		msgs[i] = l.Error()
	}
	return fmt.Sprintf("import rejected, %d invalid line(s): %s", len(e.Lines), strings.Join(msgs, "; "))
}

// Parse turns text into visit records. purposes is the list of valid category
// names and now supplies the date of lines without one. Either every line is
// valid or no record is returned.
func Parse(text string, purposes []string, now time.Time) ([]core.VisitRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyImport
	}

	var (
		records []core.VisitRecord
		invalid []LineError
	)
	// Line numbers count non-blank lines only.
	n := 0
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n++
		rec, reason := parseLine(line, purposes, now)
		if reason != "" {
			invalid = append(invalid, LineError{Line: n, Text: line, Reason: reason})
			continue
		}
		records = append(records, rec)
	}

	if len(invalid) > 0 {
		return nil, &Error{Lines: invalid}
	}
	return records, nil
}

func parseLine(line string, purposes []string, now time.Time) (core.VisitRecord, string) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) < 2 {
		return core.VisitRecord{}, "expected at least a city and a purpose"
	}

	rec := core.VisitRecord{City: fields[0], Purpose: fields[1]}
	if !slices.Contains(purposes, rec.Purpose) {
		return core.VisitRecord{}, fmt.Sprintf("purpose %q must be one of %s", rec.Purpose, strings.Join(purposes, ", "))
	}

	if len(fields) < 3 {
		rec.Date = core.FromTime(now)
		return rec, ""
	}
	date, err := core.ParseYearMonth(core.NormalizeDate(fields[2]).String())
	if err != nil {
		return core.VisitRecord{}, fmt.Sprintf("invalid date %q, expected YYYY-MM (for example 2024-01)", fields[2])
	}
	rec.Date = date
	return rec, ""
}

// Example returns sample import text that uses the given category names.
func Example(purposes []string) string {
	pick := func(i int, fallback string) string {
		if i < len(purposes) {
			return purposes[i]
		}
		return fallback
	}
	lines := []string{
		"北京市," + pick(0, "旅行") + ",2024-01",
		"上海市," + pick(1, "出差") + ",2024-02",
		"深圳市," + pick(2, "徒步") + ",2024-03",
		"广州市," + pick(0, "旅行") + ",2024-01",
		"杭州市," + pick(1, "出差") + ",2024-02",
	}
	return strings.Join(lines, "\n")
}
