package mandel

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// GeneratorConfig holds everything a frame needs besides the viewport.
type GeneratorConfig struct {
	Palette  Palette
	Bounds   Region
	Alpha    uint8 // 0 means opaque
	Workers  int   // 0 means GOMAXPROCS
	TileSize int   // 0 means 64

	// CapAtReferenceEscape, see Evaluator.
	CapAtReferenceEscape bool

	// Coloring defaults to ColoringPalette. HSL is only read with ColoringHSL.
	Coloring Coloring
	HSL      HSLColoring
}

// Generator renders frames of a zoom sequence. The reference orbit is cached
// across frames and only recomputed when the center or iteration cap changes.
// A Generator may render one frame at a time.
type Generator struct {
	cfg    GeneratorConfig
	cache  OrbitCache
	logger *slog.Logger

	m       sync.Mutex
	current *frameScheduler
}

// NewGenerator validates cfg and returns a Generator. A nil logger uses slog.Default().
func NewGenerator(cfg GeneratorConfig, logger *slog.Logger) (*Generator, error) {
	switch cfg.Coloring {
	case "":
		cfg.Coloring = ColoringPalette
	case ColoringPalette, ColoringHSL:
	default:
		return nil, fmt.Errorf("unknown coloring %q", cfg.Coloring)
	}
	if cfg.Coloring == ColoringPalette && len(cfg.Palette) == 0 {
		return nil, ErrEmptyPalette
	}
	if cfg.Bounds == (Region{}) {
		cfg.Bounds = DefaultBounds
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = 255
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{cfg: cfg, logger: logger}, nil
}

// Render produces the frame described by v. On cancellation the partial
// frame is dropped and the context error returned.
func (g *Generator) Render(ctx context.Context, v Viewport) (*image.RGBA, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	// The orbit is the one barrier of a frame: it is complete before any pixel starts.
	orbit, hit := g.cache.Get(v.Center, v.Iterations)
	if !hit {
		g.logger.Debug("reference orbit computed",
			"center", v.Center.String(), "iterations", v.Iterations, "prec", v.Center.Prec(),
			"elapsed", time.Since(start))
		if prec := v.Center.Prec(); prec < DefaultPrecision {
			g.logger.Warn("reference precision below 128 bits, deep frames may show artifacts",
				"center", v.Center.String(), "prec", prec)
		}
		if k := orbit.EscapeIndex(); k >= 0 && k < v.Iterations {
			g.logger.Warn("reference orbit escapes before the iteration cap",
				"center", v.Center.String(), "step", k, "cap_at_reference_escape", g.cfg.CapAtReferenceEscape)
		}
	}

	mapper := v.Mapper(g.cfg.Bounds)
	fs := newFrameScheduler(v.Width, v.Height, g.cfg.TileSize, &Evaluator{
		Orbit:                orbit,
		CenterRe:             mapper.CenterRe,
		CenterIm:             mapper.CenterIm,
		Zoom:                 v.Zoom,
		Iterations:           v.Iterations,
		PaletteSize:          g.cfg.paletteSize(),
		CapAtReferenceEscape: g.cfg.CapAtReferenceEscape,
	}, mapper, g.cfg.colorizer(v.Iterations), g.cfg.Alpha)

	g.m.Lock()
	g.current = fs
	g.m.Unlock()

	if err := fs.run(ctx, g.cfg.Workers); err != nil {
		return nil, fmt.Errorf("render frame at zoom %g: %w", v.Zoom, err)
	}

	g.logger.Debug("frame rendered", "zoom", v.Zoom, "width", v.Width, "height", v.Height,
		"workers", g.cfg.Workers, "elapsed", time.Since(start))
	return fs.img, nil
}

// Progress reports the finished fraction of the frame being rendered, or of
// the last frame when none is in flight.
func (g *Generator) Progress() float32 {
	g.m.Lock()
	fs := g.current
	g.m.Unlock()
	if fs == nil {
		return 0
	}
	return fs.finished()
}

// OrbitStats reports reference orbit cache hits and misses.
func (g *Generator) OrbitStats() (hits, misses int) {
	return g.cache.Stats()
}

// FrameParams describe a single stand-alone frame.
type FrameParams struct {
	Width, Height int
	Iterations    int
	Zoom          float64
	Center        Center
	Palette       Palette
	Alpha         uint8
}

// GenerateFrame renders one frame with default bounds, tiles and workers.
func GenerateFrame(ctx context.Context, p FrameParams) (*image.RGBA, error) {
	g, err := NewGenerator(GeneratorConfig{Palette: p.Palette, Alpha: p.Alpha}, nil)
	if err != nil {
		return nil, err
	}
	return g.Render(ctx, Viewport{
		Width:      p.Width,
		Height:     p.Height,
		Iterations: p.Iterations,
		Zoom:       p.Zoom,
		Center:     p.Center,
	})
}

// frameScheduler hands out tiles of one frame to a pool of workers.
// Every tile covers distinct pixels, so workers write the image without locking.
type frameScheduler struct {
	img      *image.RGBA
	eval     *Evaluator
	mapper   Mapper
	colorize colorizer
	alpha    uint8

	m              sync.Mutex
	unstarted      []image.Rectangle
	totalPixels    int
	finishedPixels int
}

func newFrameScheduler(w, h, tileSize int, eval *Evaluator, mapper Mapper, colorize colorizer, alpha uint8) *frameScheduler {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	return &frameScheduler{
		img:         img,
		eval:        eval,
		mapper:      mapper,
		colorize:    colorize,
		alpha:       alpha,
		unstarted:   splitRectNoClip(img.Bounds(), tileSize, tileSize),
		totalPixels: w * h,
	}
}

func (fs *frameScheduler) popTile() (tile image.Rectangle, found bool) {
	fs.m.Lock()
	defer fs.m.Unlock()

	n := len(fs.unstarted)
	if n == 0 {
		return image.Rectangle{}, false
	}
	tile = fs.unstarted[n-1]
	fs.unstarted = fs.unstarted[:n-1]
	return tile, true
}

func (fs *frameScheduler) tileFinished(tile image.Rectangle) {
	fs.m.Lock()
	defer fs.m.Unlock()
	fs.finishedPixels += tile.Dx() * tile.Dy()
}

func (fs *frameScheduler) finished() float32 {
	fs.m.Lock()
	defer fs.m.Unlock()
	if fs.totalPixels == 0 {
		return 1
	}
	return float32(fs.finishedPixels) / float32(fs.totalPixels)
}

// run renders all tiles on workers goroutines and waits for them.
func (fs *frameScheduler) run(ctx context.Context, workers int) error {
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() { fs.work(ctx) })
	}
	wg.Wait()
	return ctx.Err()
}

func (fs *frameScheduler) work(ctx context.Context) {
	for ctx.Err() == nil {
		tile, found := fs.popTile()
		if !found {
			return
		}
		fs.renderTile(tile)
		fs.tileFinished(tile)
	}
}

func (fs *frameScheduler) renderTile(tile image.Rectangle) {
	for py := tile.Min.Y; py < tile.Max.Y; py++ {
		for px := tile.Min.X; px < tile.Max.X; px++ {
			x0, y0 := fs.mapper.PixelToPoint(px, py)
			c := fs.colorize(fs.eval.Escape(x0, y0))
			c.A = fs.alpha
			fs.img.SetRGBA(px, py, c)
		}
	}
}

// splitRectNoClip splits r into tiles of size tileW × tileH.
// Tiles at the right and bottom edges are smaller if r is not divisible.
func splitRectNoClip(r image.Rectangle, tileW, tileH int) []image.Rectangle {
	if tileW <= 0 || tileH <= 0 {
		panic("tile dimensions must be positive")
	}

	w := r.Dx()
	h := r.Dy()

	var tiles []image.Rectangle

	for oy := 0; oy < h; oy += tileH {
		th := tileH
		if oy+th > h {
			th = h - oy
		}

		for ox := 0; ox < w; ox += tileW {
			tw := tileW
			if ox+tw > w {
				tw = w - ox
			}

			tiles = append(tiles, image.Rect(
				r.Min.X+ox,
				r.Min.Y+oy,
				r.Min.X+ox+tw,
				r.Min.Y+oy+th,
			))
		}
	}

	return tiles
}
