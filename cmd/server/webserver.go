package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mandel "github.com/marben/deepzoom"
	"github.com/marben/deepzoom/internal/archive"
)

// webServer holds what the HTTP handlers need.
type webServer struct {
	hub     *frameHub
	gen     *mandel.Generator // nil in tests
	archive *archive.Store    // nil when archiving is disabled
	session uuid.UUID
	logger  *slog.Logger
}

// router serves the static viewer, the websocket frame stream, the latest
// frame and the archive.
func (ws *webServer) router(staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", ws.websocketHandler)
	r.Get("/frame.png", ws.latestFrame)
	r.Get("/status", ws.status)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", ws.sessions)
		r.Get("/{session}/frames", ws.frames)
		r.Get("/{session}/frames/{seq}", ws.framePNG)
		r.Get("/{session}/frames/{seq}/thumb", ws.frameThumb)
	})
	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// newHTTPServer wraps handler the same way for every listener.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// websocketHandler upgrades the request and streams frames until the viewer leaves.
func (ws *webServer) websocketHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: restrict once the viewer is served from a fixed origin
	})
	if err != nil {
		ws.logger.Warn("websocket accept", "error", err)
		return
	}
	defer c.CloseNow()

	err = ws.hub.serve(r.Context(), c)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return
	}
	ws.logger.Debug("websocket closed", "remote", r.RemoteAddr, "error", err)
}

func (ws *webServer) latestFrame(w http.ResponseWriter, r *http.Request) {
	b, seq, _ := ws.hub.Latest()
	if seq < 0 {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Frame-Seq", strconv.Itoa(seq))
	w.Write(b)
}

type statusResponse struct {
	Session  string  `json:"session,omitempty"`
	Frame    int     `json:"frame"`
	Zoom     float64 `json:"zoom"`
	Viewers  int     `json:"viewers"`
	Progress float32 `json:"progress"` // of the frame being rendered
}

func (ws *webServer) status(w http.ResponseWriter, r *http.Request) {
	_, seq, zoom := ws.hub.Latest()
	resp := statusResponse{Frame: seq, Zoom: zoom, Viewers: ws.hub.viewerCount()}
	if ws.gen != nil {
		resp.Progress = ws.gen.Progress()
	}
	if ws.session != uuid.Nil {
		resp.Session = ws.session.String()
	}
	writeJSON(w, resp)
}

func (ws *webServer) sessions(w http.ResponseWriter, r *http.Request) {
	if !ws.archiveEnabled(w) {
		return
	}
	list, err := ws.archive.Sessions(r.Context())
	if err != nil {
		ws.internalError(w, err)
		return
	}
	writeJSON(w, list)
}

func (ws *webServer) frames(w http.ResponseWriter, r *http.Request) {
	if !ws.archiveEnabled(w) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "session"))
	if err != nil {
		http.Error(w, "bad session id", http.StatusBadRequest)
		return
	}
	list, err := ws.archive.Frames(r.Context(), id)
	if err != nil {
		ws.internalError(w, err)
		return
	}
	writeJSON(w, list)
}

func (ws *webServer) framePNG(w http.ResponseWriter, r *http.Request) {
	ws.archivedImage(w, r, false)
}

func (ws *webServer) frameThumb(w http.ResponseWriter, r *http.Request) {
	ws.archivedImage(w, r, true)
}

func (ws *webServer) archivedImage(w http.ResponseWriter, r *http.Request, thumb bool) {
	if !ws.archiveEnabled(w) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "session"))
	if err != nil {
		http.Error(w, "bad session id", http.StatusBadRequest)
		return
	}
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil || seq < 0 {
		http.Error(w, "bad frame number", http.StatusBadRequest)
		return
	}

	get := ws.archive.PNG
	if thumb {
		get = ws.archive.Thumbnail
	}
	b, err := get(r.Context(), id, seq)
	if errors.Is(err, archive.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		ws.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(b)
}

func (ws *webServer) archiveEnabled(w http.ResponseWriter) bool {
	if ws.archive == nil {
		http.Error(w, "archive disabled", http.StatusNotFound)
		return false
	}
	return true
}

func (ws *webServer) internalError(w http.ResponseWriter, err error) {
	ws.logger.Error("archive", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
