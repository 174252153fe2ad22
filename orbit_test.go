package mandel

import (
	"math"
	"testing"
)

func TestReferenceOrbitLength(t *testing.T) {
	c := MustParseCenter("-0.75", "0.1", DefaultPrecision)
	for _, it := range []int{0, 1, 2, 50, 500} {
		o := NewReferenceOrbit(c, it)
		if o.Len() != it+1 {
			t.Errorf("iterations %d: len %d", it, o.Len())
		}
	}
}

func TestReferenceOrbitValues(t *testing.T) {
	c := MustParseCenter("-0.75", "0.1", DefaultPrecision)
	o := NewReferenceOrbit(c, 3)

	if re, im := o.Big(0); re.Cmp(c.Re) != 0 || im.Cmp(c.Im) != 0 {
		t.Fatalf("element 0 = (%v, %v), want the center", re, im)
	}
	// (-0.75+0.1i)² + (-0.75+0.1i) = -0.1975 - 0.05i
	if z := o.At(1); math.Abs(real(z)+0.1975) > 1e-15 || math.Abs(imag(z)+0.05) > 1e-15 {
		t.Fatalf("element 1 = %v", z)
	}

	// the double precision mirror follows a plain float64 iteration closely for a few steps
	want := complex(-0.75, 0.1)
	for k := 1; k < o.Len(); k++ {
		want = want*want + complex(-0.75, 0.1)
		if d := o.At(k) - want; math.Hypot(real(d), imag(d)) > 1e-12 {
			t.Fatalf("element %d = %v, want %v", k, o.At(k), want)
		}
	}
}

func TestReferenceOrbitEscapingCenter(t *testing.T) {
	c, err := Preset("outside", DefaultPrecision)
	if err != nil {
		t.Fatal(err)
	}
	// 1+i, 1+3i, -7+7i, 1-97i, -9407-193i: the fifth element is past 2^16
	o := NewReferenceOrbit(c, 500)
	if o.Len() != 501 {
		t.Fatalf("len = %d, the orbit must be full length", o.Len())
	}
	if o.EscapeIndex() != 4 {
		t.Fatalf("escape index = %d, want 4", o.EscapeIndex())
	}
	if z := o.At(4); z != complex(-9407, -193) {
		t.Fatalf("element 4 = %v", z)
	}
	if !math.IsInf(real(o.At(500)), 0) && !math.IsInf(imag(o.At(500)), 0) {
		t.Fatalf("element 500 = %v, want outside the float64 range", o.At(500))
	}
}

func TestReferenceOrbitBounded(t *testing.T) {
	// center of the period-2 bulb: -1, 0, -1, 0, ...
	c := MustParseCenter("-1", "0", 192)
	o := NewReferenceOrbit(c, 500)
	if o.EscapeIndex() != -1 {
		t.Fatalf("escape index = %d, want -1", o.EscapeIndex())
	}
	for k := 0; k < o.Len(); k++ {
		want := complex(-1, 0)
		if k%2 == 1 {
			want = 0
		}
		if o.At(k) != want {
			t.Fatalf("element %d = %v, want %v", k, o.At(k), want)
		}
	}
	if re, _ := o.Big(500); re.Prec() != 192 {
		t.Fatalf("orbit precision = %d, want 192", re.Prec())
	}
}

func TestOrbitCache(t *testing.T) {
	var cache OrbitCache
	c1 := MustParseCenter("-0.75", "0.1", DefaultPrecision)

	o1, hit := cache.Get(c1, 100)
	if hit {
		t.Fatal("first Get should miss")
	}
	// same value, different *big.Float
	o2, hit := cache.Get(MustParseCenter("-0.75", "0.1", DefaultPrecision), 100)
	if !hit || o2 != o1 {
		t.Fatal("equal center should hit")
	}
	if _, hit := cache.Get(c1, 200); hit {
		t.Fatal("new iteration cap should miss")
	}
	if _, hit := cache.Get(MustParseCenter("-0.75", "0.2", DefaultPrecision), 200); hit {
		t.Fatal("new center should miss")
	}
	cache.Invalidate()
	if _, hit := cache.Get(MustParseCenter("-0.75", "0.2", DefaultPrecision), 200); hit {
		t.Fatal("Get after Invalidate should miss")
	}

	hits, misses := cache.Stats()
	if hits != 1 || misses != 4 {
		t.Fatalf("hits %d misses %d, want 1 and 4", hits, misses)
	}
}
