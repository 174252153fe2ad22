package mandel

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"
)

// Frame is one rendered step of a zoom sequence.
type Frame struct {
	Seq     int
	Zoom    float64
	Image   *image.RGBA
	Elapsed time.Duration
}

// Zoomer drives a zoom sequence: every tick it renders the viewport and
// then advances the zoom by a fixed increment.
type Zoomer struct {
	src       FrameSource
	view      Viewport
	increment float64
	interval  time.Duration
	logger    *slog.Logger

	seq int
}

// NewZoomer returns a Zoomer starting at view. interval is the minimum time
// between frames; zero renders frames back to back.
func NewZoomer(src FrameSource, view Viewport, increment float64, interval time.Duration, logger *slog.Logger) (*Zoomer, error) {
	if err := view.validate(); err != nil {
		return nil, err
	}
	if increment < 0 {
		return nil, fmt.Errorf("%w: negative zoom increment %v", ErrInvalidZoom, increment)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Zoomer{
		src:       src,
		view:      view,
		increment: increment,
		interval:  interval,
		logger:    logger,
	}, nil
}

// Viewport returns a copy of the current viewport.
func (z *Zoomer) Viewport() Viewport { return z.view }

// Next renders the current viewport and advances the zoom.
func (z *Zoomer) Next(ctx context.Context) (Frame, error) {
	start := time.Now()
	img, err := z.src.Render(ctx, z.view)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Seq: z.seq, Zoom: z.view.Zoom, Image: img, Elapsed: time.Since(start)}
	z.seq++
	z.view.Advance(z.increment)
	return f, nil
}

// Run renders frames and hands them to sink until ctx is done or sink fails.
// A cancelled context ends the sequence without error.
func (z *Zoomer) Run(ctx context.Context, sink FrameSink) error {
	var tick <-chan time.Time
	if z.interval > 0 {
		t := time.NewTicker(z.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		f, err := z.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("frame %d: %w", z.seq, err)
		}
		z.logger.Info("frame", "seq", f.Seq, "zoom", f.Zoom, "elapsed", f.Elapsed)

		if err := sink.Frame(ctx, f); err != nil {
			return fmt.Errorf("sink frame %d: %w", f.Seq, err)
		}

		if tick == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		}
	}
}
