package mandel

import (
	"context"
	"image"
)

// FrameSource renders the frame a viewport describes. *Generator implements it.
type FrameSource interface {
	Render(ctx context.Context, v Viewport) (*image.RGBA, error)
}

// FrameSink receives the frames of a zoom sequence in order.
type FrameSink interface {
	Frame(ctx context.Context, f Frame) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(ctx context.Context, f Frame) error

// Frame implements FrameSink.
func (fn FrameSinkFunc) Frame(ctx context.Context, f Frame) error { return fn(ctx, f) }

var _ FrameSource = (*Generator)(nil)
