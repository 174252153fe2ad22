package mandel

import (
	"fmt"
	"math"
)

// Viewport is the state of a zoom sequence: frame size, iteration cap,
// the current zoom and the fixed center.
type Viewport struct {
	Width, Height int
	Iterations    int
	Zoom          float64
	Center        Center
}

// NewViewport validates the parameters and returns a viewport at the given zoom.
func NewViewport(width, height, iterations int, zoom float64, center Center) (*Viewport, error) {
	v := &Viewport{
		Width:      width,
		Height:     height,
		Iterations: iterations,
		Zoom:       zoom,
		Center:     center,
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Viewport) validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, v.Width, v.Height)
	}
	if v.Iterations < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidIterations, v.Iterations)
	}
	if !validZoom(v.Zoom) {
		return fmt.Errorf("%w: %v", ErrInvalidZoom, v.Zoom)
	}
	if v.Center.Re == nil || v.Center.Im == nil {
		return fmt.Errorf("viewport center is not set")
	}
	return nil
}

// Advance adds increment to the zoom. Negative increments are ignored,
// the zoom of a sequence never decreases.
func (v *Viewport) Advance(increment float64) {
	if increment > 0 {
		v.Zoom += increment
	}
}

// Mapper returns the pixel to plane mapping for the current zoom.
func (v *Viewport) Mapper(bounds Region) Mapper {
	re, im := v.Center.Float64()
	return Mapper{
		Width:    v.Width,
		Height:   v.Height,
		Bounds:   bounds,
		Zoom:     v.Zoom,
		CenterRe: re,
		CenterIm: im,
	}
}

func validZoom(z float64) bool {
	return z > 0 && !math.IsInf(z, 0) && !math.IsNaN(z)
}

// Mapper converts pixel coordinates to double-precision points of the plane.
type Mapper struct {
	Width, Height      int
	Bounds             Region
	Zoom               float64
	CenterRe, CenterIm float64
}

// PixelToPoint maps pixel (px, py) to the plane. Rows grow downward while
// the imaginary part grows upward.
func (m Mapper) PixelToPoint(px, py int) (x0, y0 float64) {
	w, h := float64(m.Width), float64(m.Height)
	x0 = m.CenterRe + (float64(px)-w/2)*(m.Bounds.Xmax-m.Bounds.Xmin)/(w*m.Zoom)
	y0 = m.CenterIm - (float64(py)-h/2)*(m.Bounds.Ymax-m.Bounds.Ymin)/(h*m.Zoom)
	return x0, y0
}
