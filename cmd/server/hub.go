package main

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	mandel "github.com/marben/deepzoom"
)

// frameHub encodes every frame once and fans it out to the connected viewers.
// Slow viewers skip frames instead of holding the zoom back.
type frameHub struct {
	logger *slog.Logger

	m       sync.Mutex
	viewers map[*viewer]struct{}
	latest  []byte
	seq     int
	zoom    float64
}

type viewer struct {
	ch chan []byte // holds at most the newest undelivered frame
}

func newFrameHub(logger *slog.Logger) *frameHub {
	return &frameHub{
		logger:  logger,
		viewers: make(map[*viewer]struct{}),
		seq:     -1,
	}
}

// Frame implements mandel.FrameSink.
func (h *frameHub) Frame(_ context.Context, f mandel.Frame) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image); err != nil {
		return fmt.Errorf("png.Encode: %w", err)
	}
	b := buf.Bytes()

	h.m.Lock()
	defer h.m.Unlock()
	h.latest, h.seq, h.zoom = b, f.Seq, f.Zoom
	for v := range h.viewers {
		select {
		case <-v.ch: // drop the stale frame
		default:
		}
		v.ch <- b
	}
	return nil
}

// Latest returns the newest encoded frame, its sequence number and zoom.
// seq is -1 before the first frame.
func (h *frameHub) Latest() (frame []byte, seq int, zoom float64) {
	h.m.Lock()
	defer h.m.Unlock()
	return h.latest, h.seq, h.zoom
}

func (h *frameHub) viewerCount() int {
	h.m.Lock()
	defer h.m.Unlock()
	return len(h.viewers)
}

func (h *frameHub) subscribe() *viewer {
	v := &viewer{ch: make(chan []byte, 1)}
	h.m.Lock()
	h.viewers[v] = struct{}{}
	if h.latest != nil {
		v.ch <- h.latest
	}
	n := len(h.viewers)
	h.m.Unlock()

	h.logger.Info("viewer connected", "viewers", n)
	return v
}

func (h *frameHub) unsubscribe(v *viewer) {
	h.m.Lock()
	delete(h.viewers, v)
	n := len(h.viewers)
	h.m.Unlock()

	h.logger.Info("viewer disconnected", "viewers", n)
}

// serve streams frames to c until the connection or ctx is closed.
func (h *frameHub) serve(ctx context.Context, c *websocket.Conn) error {
	v := h.subscribe()
	defer h.unsubscribe(v)

	// Viewers never send anything; CloseRead handles their close frames.
	ctx = c.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case b := <-v.ch:
			wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Write(wctx, websocket.MessageBinary, b)
			cancel()
			if err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		}
	}
}

// multiSink hands a frame to every sink in order and stops at the first error.
type multiSink []mandel.FrameSink

func (ms multiSink) Frame(ctx context.Context, f mandel.Frame) error {
	for _, s := range ms {
		if err := s.Frame(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
