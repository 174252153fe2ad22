package mandel

import "errors"

// Configuration errors. They are reported before any pixel is evaluated.
var (
	ErrEmptyPalette      = errors.New("palette is empty")
	ErrInvalidSize       = errors.New("image width and height must be positive")
	ErrInvalidIterations = errors.New("iteration cap must not be negative")
	ErrInvalidPrecision  = errors.New("precision must be at least 64 bits")
	ErrInvalidZoom       = errors.New("zoom must be positive and finite")
)
