package mandel

import (
	"math"
	"math/big"
	"sync"
)

// ReferenceOrbit is the iteration z ↦ z² + c of the center c, held at the
// center's precision. Element 0 is c itself and element k is the k-th iterate.
// It is read-only once built and may be shared by any number of goroutines.
type ReferenceOrbit struct {
	center Center
	re, im []*big.Float
	z      []complex128 // double-precision mirror read by the pixel loop
	escape int
}

// NewReferenceOrbit computes iterations steps of the center's orbit. The orbit
// always has iterations+1 elements, even when the center itself escapes.
func NewReferenceOrbit(center Center, iterations int) *ReferenceOrbit {
	if iterations < 0 {
		iterations = 0
	}
	prec := center.Prec()
	o := &ReferenceOrbit{
		center: center,
		re:     make([]*big.Float, 0, iterations+1),
		im:     make([]*big.Float, 0, iterations+1),
		z:      make([]complex128, 0, iterations+1),
		escape: -1,
	}

	zr := new(big.Float).SetPrec(prec).Set(center.Re)
	zi := new(big.Float).SetPrec(prec).Set(center.Im)
	o.push(zr, zi)

	frozen := !o.finite(0)
	for k := 1; k <= iterations; k++ {
		if frozen {
			// Past the float64 range the iterate is repeated: squaring further would
			// overflow the big.Float exponent and turn x² - y² into Inf - Inf.
			o.push(zr, zi)
			continue
		}
		xx := new(big.Float).SetPrec(prec).Mul(zr, zr)
		yy := new(big.Float).SetPrec(prec).Mul(zi, zi)
		xy := new(big.Float).SetPrec(prec).Mul(zr, zi)

		nr := new(big.Float).SetPrec(prec).Sub(xx, yy)
		nr.Add(nr, center.Re)
		ni := xy.Add(xy, xy)
		ni.Add(ni, center.Im)

		zr, zi = nr, ni
		o.push(zr, zi)
		frozen = !o.finite(k)
	}
	return o
}

func (o *ReferenceOrbit) push(re, im *big.Float) {
	fr, _ := re.Float64()
	fi, _ := im.Float64()
	k := len(o.z)
	o.re = append(o.re, re)
	o.im = append(o.im, im)
	o.z = append(o.z, complex(fr, fi))
	if o.escape < 0 && fr*fr+fi*fi > escapeRadius2 {
		o.escape = k
	}
}

func (o *ReferenceOrbit) finite(k int) bool {
	z := o.z[k]
	return !math.IsInf(real(z), 0) && !math.IsInf(imag(z), 0)
}

// Len is iterations+1.
func (o *ReferenceOrbit) Len() int { return len(o.z) }

// At returns the k-th iterate rounded to double precision.
func (o *ReferenceOrbit) At(k int) complex128 { return o.z[k] }

// Big returns the k-th iterate at full precision. The values must not be modified.
func (o *ReferenceOrbit) Big(k int) (re, im *big.Float) { return o.re[k], o.im[k] }

// EscapeIndex returns the first k whose iterate lies outside the escape radius,
// or -1 when the reference stays bounded for the whole orbit.
func (o *ReferenceOrbit) EscapeIndex() int { return o.escape }

// OrbitCache keeps the most recent reference orbit. The center of a zoom
// sequence never changes, so the orbit is computed once per sequence instead
// of once per frame.
type OrbitCache struct {
	m          sync.Mutex
	orbit      *ReferenceOrbit
	iterations int
	hits       int
	misses     int
}

// Get returns the cached orbit when center, precision and iterations match,
// and computes and stores a new one otherwise. The second result reports a hit.
func (c *OrbitCache) Get(center Center, iterations int) (*ReferenceOrbit, bool) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.orbit != nil && c.iterations == iterations && c.orbit.center.Equal(center) {
		c.hits++
		return c.orbit, true
	}
	c.misses++
	c.orbit = NewReferenceOrbit(center, iterations)
	c.iterations = iterations
	return c.orbit, false
}

// Invalidate drops the cached orbit.
func (c *OrbitCache) Invalidate() {
	c.m.Lock()
	defer c.m.Unlock()
	c.orbit = nil
}

// Stats reports cache hits and misses.
func (c *OrbitCache) Stats() (hits, misses int) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.hits, c.misses
}
