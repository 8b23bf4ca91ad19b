// Package core provides color encoding for visit counts.
//
// This file maps a visit count and a category color to the display color used
// by map renderers. The blend is linear toward white so that low counts read as
// pale tints of the category color.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is an 8-bit per channel color.
type RGB struct {
	R, G, B uint8
}

const (
	// DefaultColorHex is used for purposes with no configured color.
	DefaultColorHex = "#4A90E2"
	// MaxDisplayCount is the count at which a color reaches full intensity.
	MaxDisplayCount = 5

	fallbackIntensity = 0.55
)

var (
	// UnvisitedColor is shown for places with no visits, whatever the category.
	UnvisitedColor = RGB{R: 245, G: 245, B: 250}
	// DefaultBaseColor is the parsed form of DefaultColorHex.
	DefaultBaseColor = RGB{R: 74, G: 144, B: 226}

	intensityTable = map[int]float64{
		1: 0.55,
		2: 0.70,
		3: 0.80,
		4: 0.90,
		5: 1.0,
	}
)

// Intensity returns the blend fraction for count. Counts outside 1..5 get the
// 0.55 fallback.
func Intensity(count int) float64 {
	if v, ok := intensityTable[count]; ok {
		return v
	}
	return fallbackIntensity
}

// ColorFor blends baseColor toward white according to count. A count of zero
// or less yields UnvisitedColor. An unparseable baseColor is treated as
// DefaultColorHex.
func ColorFor(count int, baseColor string) RGB {
	if count <= 0 {
		return UnvisitedColor
	}
	base, err := ParseHexColor(baseColor)
	if err != nil {
		base = DefaultBaseColor
	}
	i := Intensity(count)
	return RGB{
		R: blend(base.R, i),
		G: blend(base.G, i),
		B: blend(base.B, i),
	}
}

// ColorForPurpose looks the purpose up in colors and applies ColorFor. An empty
// purpose yields UnvisitedColor.
func ColorForPurpose(count int, purpose string, colors map[string]string) RGB {
	if purpose == "" {
		return UnvisitedColor
	}
	hex, ok := colors[purpose]
	if !ok || hex == "" {
		hex = DefaultColorHex
	}
	return ColorFor(count, hex)
}

// DisplayCount clamps count to the range the intensity table covers.
func DisplayCount(count int) int {
	switch {
	case count < 0:
		return 0
	case count > MaxDisplayCount:
		return MaxDisplayCount
	}
	return count
}

func blend(channel uint8, intensity float64) uint8 {
	v := math.Round(float64(channel)*intensity + 255*(1-intensity))
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	return uint8(v)
}

// ParseHexColor accepts #RRGGBB or RRGGBB in either case.
func ParseHexColor(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// IsHexColor reports whether s parses with ParseHexColor.
func IsHexColor(s string) bool {
	_, err := ParseHexColor(s)
	return err == nil
}

// String renders the color as a CSS rgb() value.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex renders the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
