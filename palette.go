package mandel

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Palette is a cyclic table of colors. Only the RGB channels are used.
type Palette []color.RGBA

// DefaultPalette is the 16 entry gradient used on the Wikipedia Mandelbrot page.
var DefaultPalette = Palette{
	{66, 30, 15, 255},
	{25, 7, 26, 255},
	{9, 1, 47, 255},
	{4, 4, 73, 255},
	{0, 7, 100, 255},
	{12, 44, 138, 255},
	{24, 82, 177, 255},
	{57, 125, 209, 255},
	{134, 181, 229, 255},
	{211, 236, 248, 255},
	{241, 233, 191, 255},
	{248, 201, 95, 255},
	{255, 170, 0, 255},
	{204, 128, 0, 255},
	{153, 87, 0, 255},
	{106, 52, 3, 255},
}

// ParsePalette reads "#rrggbb" (or "rrggbb") entries.
func ParsePalette(entries []string) (Palette, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyPalette
	}
	p := make(Palette, 0, len(entries))
	for i, e := range entries {
		h := strings.TrimPrefix(strings.TrimSpace(e), "#")
		if len(h) != 6 {
			return nil, fmt.Errorf("palette[%d]: %q is not #rrggbb", i, e)
		}
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("palette[%d]: %w", i, err)
		}
		p = append(p, color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255})
	}
	return p, nil
}

// Hex returns the palette as "#rrggbb" entries.
func (p Palette) Hex() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return out
}

// Color interpolates linearly between the two palette entries around index.
// index is expected in [0, len(p)); the entry after the last one is the first.
func (p Palette) Color(index float64) color.RGBA {
	n := len(p)
	if n == 0 {
		return color.RGBA{}
	}
	fl := math.Floor(index)
	i1 := int(fl) % n
	if i1 < 0 {
		i1 += n
	}
	i2 := (i1 + 1) % n
	return Lerp(p[i1], p[i2], index-fl)
}

// Lerp blends c1 and c2 per channel at t in [0, 1]. Alpha is left zero.
func Lerp(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerpChannel(c1.R, c2.R, t),
		G: lerpChannel(c1.G, c2.G, t),
		B: lerpChannel(c1.B, c2.B, t),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	v := math.Round(float64(a)*(1-t) + float64(b)*t)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
