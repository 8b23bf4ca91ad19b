package http

import (
	"fmt"
	"strconv"
	"strings"

	"visitmap/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseCount reads a non-negative visit count from a query value.
func parseCount(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("%w: count is required", errBadRequest)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: count must be a non-negative integer", errBadRequest)
	}
	return n, nil
}

// parseDate normalizes a request date and requires the result to be YYYY-MM.
func parseDate(v string) (core.YearMonth, error) {
	if v == "" {
		return "", core.ErrEmptyDate
	}
	return core.ParseYearMonth(string(core.NormalizeDate(v)))
}
