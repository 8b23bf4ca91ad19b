package core

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// VisitRecord is one logged visit. Date is kept in YYYY-MM form once it has
	// passed through NormalizeDate.
	VisitRecord struct {
		City    string    `json:"city"`
		Purpose string    `json:"purpose"`
		Date    YearMonth `json:"date"`
	}

	// PurposeConfig is a user-defined visit category.
	PurposeConfig struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
)

var (
	ErrEmptyCity         = errors.New("empty city")
	ErrEmptyPurpose      = errors.New("empty purpose")
	ErrEmptyDate         = errors.New("empty date")
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM")
	ErrInvalidColor      = errors.New("invalid color, expected #RRGGBB")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrUnknownPurpose    = errors.New("purpose is not a known category")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrLastCategory      = errors.New("at least one category must remain")
)

// DefaultPurposeConfigs is the category set persisted on first use.
func DefaultPurposeConfigs() []PurposeConfig {
	return []PurposeConfig{
		{Name: "出差", Color: "#4A90E2"},
		{Name: "旅行", Color: "#FF6B6B"},
		{Name: "徒步", Color: "#52C41A"},
	}
}

func (v VisitRecord) Validate() error {
	if strings.TrimSpace(v.City) == "" {
		return ErrEmptyCity
	}
	if strings.TrimSpace(v.Purpose) == "" {
		return ErrEmptyPurpose
	}
	if strings.TrimSpace(string(v.Date)) == "" {
		return ErrEmptyDate
	}
	return nil
}

// Key identifies a record for update and delete.
func (v VisitRecord) Key() string {
	return v.City + "\x00" + string(v.Date)
}

// TripleKey is the duplicate-detection key used by bulk import.
func (v VisitRecord) TripleKey() string {
	return v.City + "\x00" + v.Purpose + "\x00" + string(v.Date)
}

func (p PurposeConfig) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCategory)
	}
	if !IsHexColor(p.Color) {
		return fmt.Errorf("%w: %w", ErrInvalidCategory, ErrInvalidColor)
	}
	return nil
}

// PurposeNames returns the category names in registry order.
func PurposeNames(configs []PurposeConfig) []string {
	names := make([]string, len(configs))
	for i, c := range configs {
		names[i] = c.Name
	}
	return names
}

// PurposeColors builds the name to color mapping kept for older readers.
func PurposeColors(configs []PurposeConfig) map[string]string {
	colors := make(map[string]string, len(configs))
	for _, c := range configs {
		colors[c.Name] = c.Color
	}
	return colors
}

// FindPurpose returns the index of the named category, or -1.
func FindPurpose(configs []PurposeConfig, name string) int {
	for i, c := range configs {
		if c.Name == name {
			return i
		}
	}
	return -1
}
