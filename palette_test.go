package mandel

import (
	"errors"
	"image/color"
	"testing"
)

func TestLerpEndpoints(t *testing.T) {
	c1 := color.RGBA{R: 10, G: 200, B: 0}
	c2 := color.RGBA{R: 250, G: 20, B: 255}
	if got := Lerp(c1, c2, 0); got != c1 {
		t.Fatalf("t=0: %v, want %v", got, c1)
	}
	if got := Lerp(c1, c2, 1); got != c2 {
		t.Fatalf("t=1: %v, want %v", got, c2)
	}
}

func TestLerpMonotonic(t *testing.T) {
	c1 := color.RGBA{R: 10, G: 200, B: 0}
	c2 := color.RGBA{R: 250, G: 20, B: 255}
	prev := Lerp(c1, c2, 0)
	for i := 1; i <= 100; i++ {
		got := Lerp(c1, c2, float64(i)/100)
		if got.R < prev.R || got.G > prev.G || got.B < prev.B {
			t.Fatalf("t=%v: %v not between %v and the next endpoint", float64(i)/100, got, prev)
		}
		prev = got
	}
}

func TestPaletteColor(t *testing.T) {
	p := Palette{
		{0, 0, 0, 255},
		{100, 100, 100, 255},
		{200, 0, 50, 255},
	}
	tests := []struct {
		index float64
		want  color.RGBA
	}{
		{0, color.RGBA{0, 0, 0, 0}},
		{1, color.RGBA{100, 100, 100, 0}},
		{2, color.RGBA{200, 0, 50, 0}},
		{0.5, color.RGBA{50, 50, 50, 0}},
		{1.25, color.RGBA{125, 75, 88, 0}},
		// between the last entry and the first
		{2.5, color.RGBA{100, 0, 25, 0}},
	}
	for _, tt := range tests {
		if got := p.Color(tt.index); got != tt.want {
			t.Errorf("Color(%v) = %v, want %v", tt.index, got, tt.want)
		}
	}

	single := Palette{{9, 8, 7, 255}}
	if got := single.Color(0); got != (color.RGBA{9, 8, 7, 0}) {
		t.Errorf("single entry palette: %v", got)
	}
}

func TestParsePalette(t *testing.T) {
	p, err := ParsePalette([]string{"#000000", "ffffff", " #421e0f "})
	if err != nil {
		t.Fatal(err)
	}
	want := Palette{{0, 0, 0, 255}, {255, 255, 255, 255}, {66, 30, 15, 255}}
	for i := range want {
		if p[i] != want[i] {
			t.Errorf("entry %d = %v, want %v", i, p[i], want[i])
		}
	}
	if got := p.Hex(); got[2] != "#421e0f" {
		t.Errorf("Hex() = %v", got)
	}

	if _, err := ParsePalette(nil); !errors.Is(err, ErrEmptyPalette) {
		t.Errorf("empty: err = %v", err)
	}
	for _, bad := range []string{"#fff", "#gggggg", "#12345678"} {
		if _, err := ParsePalette([]string{bad}); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestDefaultPaletteHexRoundTrip(t *testing.T) {
	p, err := ParsePalette(DefaultPalette.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != len(DefaultPalette) {
		t.Fatalf("len %d", len(p))
	}
	for i := range p {
		if p[i] != DefaultPalette[i] {
			t.Fatalf("entry %d = %v, want %v", i, p[i], DefaultPalette[i])
		}
	}
}
