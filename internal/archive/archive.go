// Package archive persists rendered zoom frames to SQLite so that a sequence
// can be replayed or inspected after it has been streamed.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "modernc.org/sqlite"

	mandel "github.com/marben/deepzoom"
)

// Schema for the archive tables. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	center_re TEXT NOT NULL,
	center_im TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS frames (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	zoom REAL NOT NULL,
	elapsed_us INTEGER NOT NULL,
	png BLOB NOT NULL,
	thumb BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, seq)
);
`

// ErrNotFound is returned when a session or frame does not exist.
var ErrNotFound = errors.New("archive: not found")

// Session describes one zoom sequence.
type Session struct {
	ID         uuid.UUID `json:"id"`
	CenterRe   string    `json:"center_re"`
	CenterIm   string    `json:"center_im"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Iterations int       `json:"iterations"`
	StartedAt  time.Time `json:"started_at"`
}

// FrameInfo is the metadata of an archived frame.
type FrameInfo struct {
	Seq       int           `json:"seq"`
	Zoom      float64       `json:"zoom"`
	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store reads and writes archived frames.
type Store struct {
	db         *sql.DB
	thumbWidth int
}

// NewStore wraps an open database. Thumbnails are thumbWidth pixels wide.
func NewStore(db *sql.DB, thumbWidth int) *Store {
	if thumbWidth <= 0 {
		thumbWidth = 240
	}
	return &Store{db: db, thumbWidth: thumbWidth}
}

// dsnPragmas are applied by the driver to every pooled connection.
const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Open opens (creating if needed) the SQLite database at path and initializes the schema.
func Open(ctx context.Context, path string, thumbWidth int) (*Store, error) {
	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	s := NewStore(db, thumbWidth)
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the archive tables if they don't exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("archive schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewSession records the start of a zoom sequence for v.
func (s *Store) NewSession(ctx context.Context, v mandel.Viewport) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("session id: %w", err)
	}
	sess := Session{
		ID:         id,
		CenterRe:   v.Center.Re.Text('g', -1),
		CenterIm:   v.Center.Im.Text('g', -1),
		Width:      v.Width,
		Height:     v.Height,
		Iterations: v.Iterations,
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, center_re, center_im, width, height, iterations, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.CenterRe, sess.CenterIm, sess.Width, sess.Height, sess.Iterations, sess.StartedAt.UnixMilli())
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Sessions lists all sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, center_re, center_im, width, height, iterations, started_at FROM sessions ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			id      string
			started int64
		)
		if err := rows.Scan(&id, &sess.CenterRe, &sess.CenterIm, &sess.Width, &sess.Height, &sess.Iterations, &started); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("session id %q: %w", id, err)
		}
		sess.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Put stores frame f of session.
func (s *Store) Put(ctx context.Context, session uuid.UUID, f mandel.Frame) error {
	full, err := encodePNG(f.Image)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}
	thumb, err := encodePNG(s.thumbnail(f.Image))
	if err != nil {
		return fmt.Errorf("encode thumbnail %d: %w", f.Seq, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO frames (session_id, seq, zoom, elapsed_us, png, thumb, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.String(), f.Seq, f.Zoom, f.Elapsed.Microseconds(), full, thumb, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", f.Seq, err)
	}
	return nil
}

// Frames lists the frames of session in sequence order.
func (s *Store) Frames(ctx context.Context, session uuid.UUID) ([]FrameInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, zoom, elapsed_us, created_at FROM frames WHERE session_id = ? ORDER BY seq`, session.String())
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []FrameInfo
	for rows.Next() {
		var (
			fi      FrameInfo
			elapsed int64
			created int64
		)
		if err := rows.Scan(&fi.Seq, &fi.Zoom, &elapsed, &created); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		fi.Elapsed = time.Duration(elapsed) * time.Microsecond
		fi.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, fi)
	}
	return out, rows.Err()
}

// PNG returns the encoded frame seq of session.
func (s *Store) PNG(ctx context.Context, session uuid.UUID, seq int) ([]byte, error) {
	return s.blob(ctx, "png", session, seq)
}

// Thumbnail returns the encoded thumbnail of frame seq of session.
func (s *Store) Thumbnail(ctx context.Context, session uuid.UUID, seq int) ([]byte, error) {
	return s.blob(ctx, "thumb", session, seq)
}

func (s *Store) blob(ctx context.Context, column string, session uuid.UUID, seq int) ([]byte, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM frames WHERE session_id = ? AND seq = ?`, session.String(), seq).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query %s %d: %w", column, seq, err)
	}
	return b, nil
}

// thumbnail scales img down to the store's thumbnail width, keeping the aspect ratio.
func (s *Store) thumbnail(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	if b.Dx() <= s.thumbWidth {
		return img
	}
	h := b.Dy() * s.thumbWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, s.thumbWidth, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Recorder archives every frame it receives under one session.
type Recorder struct {
	Store   *Store
	Session uuid.UUID
}

// Frame implements mandel.FrameSink.
func (r Recorder) Frame(ctx context.Context, f mandel.Frame) error {
	return r.Store.Put(ctx, r.Session, f)
}

var _ mandel.FrameSink = Recorder{}
