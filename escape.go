package mandel

import "math"

const (
	escapeRadius2 = 1 << 16 // |z|² beyond which a point has escaped

	// Perturbation only pays off, and only stays stable, very close to the
	// reference point at moderate zoom.
	perturbationMaxDist2 = 1e-15
	perturbationMaxZoom  = 1e8
)

var (
	ln2   = math.Log(2)
	ln256 = math.Log(256)
)

// Mode selects how a pixel is iterated.
type Mode int

const (
	// DirectMode iterates z ↦ z² + c in double precision from z = 0.
	DirectMode Mode = iota
	// PerturbationMode iterates a double-precision delta from the reference orbit.
	PerturbationMode
)

func (m Mode) String() string {
	switch m {
	case DirectMode:
		return "direct"
	case PerturbationMode:
		return "perturbation"
	}
	return "unknown"
}

// SelectMode picks the iteration mode for the point (x0, y0).
func SelectMode(x0, y0, centerRe, centerIm, zoom float64) Mode {
	dx, dy := x0-centerRe, y0-centerIm
	if dx*dx+dy*dy > perturbationMaxDist2 || zoom > perturbationMaxZoom {
		return DirectMode
	}
	return PerturbationMode
}

// EscapeDirect returns the smooth color index of c = (x0, y0) in [0, paletteSize).
// Points that do not escape within iterations steps get iterations mod paletteSize.
// A paletteSize of 0 leaves the smooth count unwrapped.
func EscapeDirect(x0, y0 float64, iterations, paletteSize int) float64 {
	v, _ := escapeDirect(x0, y0, iterations, paletteSize)
	return v
}

func escapeDirect(x0, y0 float64, iterations, paletteSize int) (float64, bool) {
	var x, y, x2, y2 float64
	for i := 0; i < iterations; i++ {
		y = 2*x*y + y0
		x = x2 - y2 + x0
		x2, y2 = x*x, y*y
		if x2+y2 > escapeRadius2 {
			return smoothIndex(i, x2+y2, paletteSize), true
		}
	}
	return insideIndex(iterations, paletteSize), false
}

// EscapePerturbed returns the smooth color index of the point center+dz,
// iterated as a delta from orbit. At most steps iterations are run and never
// more than the orbit provides. The second result is false when the point did
// not escape.
func EscapePerturbed(orbit *ReferenceOrbit, dzr, dzi float64, steps, paletteSize int) (float64, bool) {
	i, mag2, escaped := perturb(orbit, dzr, dzi, steps, nil)
	if !escaped {
		return insideIndex(steps, paletteSize), false
	}
	return smoothIndex(i, mag2, paletteSize), true
}

// perturb runs e' = 2·zn·e + e² + dz with e₀ = 0 and reconstructs the pixel's
// orbit as zn1 + e'. visit, when set, sees every reconstructed value.
func perturb(orbit *ReferenceOrbit, dzr, dzi float64, steps int, visit func(i int, z complex128)) (int, float64, bool) {
	if n := orbit.Len() - 1; steps > n {
		steps = n
	}
	var er, ei float64
	for i := 0; i < steps; i++ {
		zn := orbit.z[i]
		zn1 := orbit.z[i+1]
		zr, zi := real(zn), imag(zn)

		// 2·zn·e + e·e + dz
		nr := 2*(zr*er-zi*ei) + (er*er - ei*ei) + dzr
		ni := 2*(zr*ei+zi*er) + 2*er*ei + dzi
		er, ei = nr, ni

		ar, ai := real(zn1)+er, imag(zn1)+ei
		if visit != nil {
			visit(i, complex(ar, ai))
		}
		if mag2 := ar*ar + ai*ai; mag2 > escapeRadius2 {
			return i, mag2, true
		}
	}
	return steps, 0, false
}

// smoothIndex is the fractional escape count for an escape at step i with
// squared magnitude mag2, wrapped into the palette.
func smoothIndex(i int, mag2 float64, paletteSize int) float64 {
	logZn := math.Log(mag2) / ln256 / 2
	nu := math.Log(logZn/ln2) / ln256 / ln2
	v := float64(i+1) - nu
	if math.IsNaN(v) || math.IsInf(v, 0) {
		// Only reachable with a non-finite magnitude.
		v = float64(i + 1)
	}
	return wrapIndex(v, paletteSize)
}

func insideIndex(iterations, paletteSize int) float64 {
	if paletteSize == 0 {
		return float64(iterations)
	}
	if paletteSize < 0 {
		return 0
	}
	return float64(iterations % paletteSize)
}

// wrapIndex reduces v into [0, n). n == 0 returns v unchanged.
func wrapIndex(v float64, n int) float64 {
	if n == 0 {
		return v
	}
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	r := math.Mod(v, fn)
	if r < 0 {
		r += fn
	}
	if r >= fn {
		r = 0
	}
	return r
}

// Evaluator computes escape values of a single frame. It is immutable and
// shared by all workers of the frame.
type Evaluator struct {
	Orbit              *ReferenceOrbit
	CenterRe, CenterIm float64
	Zoom               float64
	Iterations         int
	PaletteSize        int // 0 leaves indices unwrapped

	// CapAtReferenceEscape stops perturbation at the step the reference itself
	// escapes and finishes the pixel in direct mode. Off by default.
	CapAtReferenceEscape bool
}

// Mode reports the iteration mode used for (x0, y0).
func (e *Evaluator) Mode(x0, y0 float64) Mode {
	return SelectMode(x0, y0, e.CenterRe, e.CenterIm, e.Zoom)
}

// Evaluate returns the color index of the point (x0, y0).
func (e *Evaluator) Evaluate(x0, y0 float64) float64 {
	v, _ := e.Escape(x0, y0)
	return v
}

// Escape is Evaluate that also reports whether the point escaped.
func (e *Evaluator) Escape(x0, y0 float64) (float64, bool) {
	if e.Mode(x0, y0) == DirectMode {
		return escapeDirect(x0, y0, e.Iterations, e.PaletteSize)
	}

	steps := e.Iterations
	capped := false
	if k := e.Orbit.EscapeIndex(); e.CapAtReferenceEscape && k >= 0 && k < steps {
		steps, capped = k, true
	}
	v, escaped := EscapePerturbed(e.Orbit, x0-e.CenterRe, y0-e.CenterIm, steps, e.PaletteSize)
	if !escaped {
		if capped {
			return escapeDirect(x0, y0, e.Iterations, e.PaletteSize)
		}
		return insideIndex(e.Iterations, e.PaletteSize), false
	}
	return v, true
}
