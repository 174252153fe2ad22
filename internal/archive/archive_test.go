package archive

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	mandel "github.com/marben/deepzoom"
)

func setupStore(t *testing.T, thumbWidth int) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db, thumbWidth)
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func testViewport(t *testing.T) mandel.Viewport {
	t.Helper()
	v, err := mandel.NewViewport(40, 20, 100, 1, mandel.MustParseCenter("-0.75", "0.1", mandel.DefaultPrecision))
	if err != nil {
		t.Fatal(err)
	}
	return *v
}

func testFrame(seq int, zoom float64) mandel.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := range 20 {
		for x := range 40 {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 12), B: uint8(seq), A: 255})
		}
	}
	return mandel.Frame{Seq: seq, Zoom: zoom, Image: img, Elapsed: 1500 * time.Microsecond}
}

func TestSessions(t *testing.T) {
	s := setupStore(t, 10)
	ctx := context.Background()

	first, err := s.NewSession(ctx, testViewport(t))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.NewSession(ctx, testViewport(t))
	if err != nil {
		t.Fatal(err)
	}

	list, err := s.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d sessions, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("sessions not newest first: %v, %v", list[0].ID, list[1].ID)
	}
	got := list[1]
	if got.CenterRe != "-0.75" || got.CenterIm != "0.1" || got.Width != 40 || got.Height != 20 || got.Iterations != 100 {
		t.Fatalf("session = %+v", got)
	}
	if !got.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("started at %v, want %v", got.StartedAt, first.StartedAt)
	}
}

func TestPutAndRead(t *testing.T) {
	s := setupStore(t, 10)
	ctx := context.Background()

	sess, err := s.NewSession(ctx, testViewport(t))
	if err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		if err := s.Put(ctx, sess.ID, testFrame(i, 1+float64(i)*10000)); err != nil {
			t.Fatal(err)
		}
	}

	frames, err := s.Frames(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, fi := range frames {
		if fi.Seq != i || fi.Zoom != 1+float64(i)*10000 || fi.Elapsed != 1500*time.Microsecond {
			t.Errorf("frame %d = %+v", i, fi)
		}
	}

	b, err := s.PNG(ctx, sess.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 40, 20) {
		t.Fatalf("frame bounds %v", img.Bounds())
	}
	if r, g, bl, _ := img.At(5, 3).RGBA(); r>>8 != 30 || g>>8 != 36 || bl>>8 != 2 {
		t.Fatalf("pixel (5,3) = %d %d %d", r>>8, g>>8, bl>>8)
	}

	b, err = s.Thumbnail(ctx, sess.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 10 || cfg.Height != 5 {
		t.Fatalf("thumbnail %dx%d, want 10x5", cfg.Width, cfg.Height)
	}
}

func TestPutReplaces(t *testing.T) {
	s := setupStore(t, 0)
	ctx := context.Background()
	sess, err := s.NewSession(ctx, testViewport(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, sess.ID, testFrame(0, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, sess.ID, testFrame(0, 7)); err != nil {
		t.Fatal(err)
	}
	frames, err := s.Frames(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || frames[0].Zoom != 7 {
		t.Fatalf("frames = %+v", frames)
	}

	// frames narrower than the thumbnail width are stored as is
	b, err := s.Thumbnail(ctx, sess.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 40 {
		t.Fatalf("thumbnail width %d, want 40", cfg.Width)
	}
}

func TestNotFound(t *testing.T) {
	s := setupStore(t, 10)
	ctx := context.Background()

	if _, err := s.PNG(ctx, uuid.New(), 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown session: err = %v", err)
	}
	sess, err := s.NewSession(ctx, testViewport(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Thumbnail(ctx, sess.ID, 4); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown frame: err = %v", err)
	}
	frames, err := s.Frames(ctx, sess.ID)
	if err != nil || len(frames) != 0 {
		t.Fatalf("frames = %v, err = %v", frames, err)
	}
}

func TestRecorder(t *testing.T) {
	s := setupStore(t, 10)
	ctx := context.Background()
	sess, err := s.NewSession(ctx, testViewport(t))
	if err != nil {
		t.Fatal(err)
	}

	g, err := mandel.NewGenerator(mandel.GeneratorConfig{Palette: mandel.DefaultPalette}, nil)
	if err != nil {
		t.Fatal(err)
	}
	z, err := mandel.NewZoomer(g, testViewport(t), 100, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rec := Recorder{Store: s, Session: sess.ID}
	n := 0
	err = z.Run(ctx, mandel.FrameSinkFunc(func(ctx context.Context, f mandel.Frame) error {
		if err := rec.Frame(ctx, f); err != nil {
			return err
		}
		if n++; n == 2 {
			cancel()
		}
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	frames, err := s.Frames(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 || frames[1].Zoom != 101 {
		t.Fatalf("frames = %+v", frames)
	}
}

func TestOpenConfiguresEveryConnection(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "archive.db"), 10)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// hold two connections at once so the pool cannot hand out the same one
	var conns []*sql.Conn
	for range 2 {
		c, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		conns = append(conns, c)
	}
	for i, c := range conns {
		var fk, timeout int
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatal(err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatal(err)
		}
		if fk != 1 || timeout != 5000 {
			t.Errorf("conn %d: foreign_keys=%d busy_timeout=%d", i, fk, timeout)
		}
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "archive.db"), 10)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	sess, err := s.NewSession(ctx, testViewport(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, sess.ID, testFrame(0, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sess.ID.String()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PNG(ctx, sess.ID, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("frame outlived its session: err = %v", err)
	}
}
