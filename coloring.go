package mandel

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Coloring selects how escape values become pixel colors.
type Coloring string

const (
	// ColoringPalette maps the smooth index through the cyclic palette.
	ColoringPalette Coloring = "palette"
	// ColoringHSL shades escaped points at a fixed hue, lighter the longer they took.
	ColoringHSL Coloring = "hsl"
)

// HSLColoring paints escaped points at full saturation with lightness
// proportional to their escape time, and points of the set with Inside.
type HSLColoring struct {
	Hue    float64 // degrees
	Inside color.RGBA
}

// DefaultHSLColoring is an orange hue over a light grey set.
var DefaultHSLColoring = HSLColoring{
	Hue:    30,
	Inside: color.RGBA{0xef, 0xef, 0xef, 255},
}

// Color returns the color of a point whose unwrapped smooth escape count is v.
func (h HSLColoring) Color(v float64, iterations int, escaped bool) color.RGBA {
	if !escaped || iterations <= 0 {
		return h.Inside
	}
	l := min(max(v/float64(iterations), 0), 1)
	r, g, b := colorful.Hsl(h.Hue, 1, l).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// ParseColor reads a "#rrggbb" or "#rgb" color.
func ParseColor(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// colorizer turns an escape value into a pixel color for one frame.
type colorizer func(v float64, escaped bool) color.RGBA

func (cfg GeneratorConfig) colorizer(iterations int) colorizer {
	if cfg.Coloring == ColoringHSL {
		return func(v float64, escaped bool) color.RGBA {
			return cfg.HSL.Color(v, iterations, escaped)
		}
	}
	return func(v float64, _ bool) color.RGBA {
		return cfg.Palette.Color(v)
	}
}

// paletteSize is the index range the evaluator wraps into.
func (cfg GeneratorConfig) paletteSize() int {
	if cfg.Coloring == ColoringHSL {
		return 0
	}
	return len(cfg.Palette)
}
