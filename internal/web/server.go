// Package web provides an HTTP status server for the keypad-sensor daemon.
package web

import (
	"context"
	"net/http"

	"github.com/sweeney/keypad-sensor/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	hub        *Hub
}

// New creates a Server that reads state from the given tracker.
// If hub is non-nil, live key events are streamed on /ws.
func New(addr string, tracker *status.Tracker, hub *Hub) *Server {
	s := &Server{tracker: tracker, hub: hub}

	mux := http.NewServeMux()
	mux.HandleFunc("/", getOnly(s.handleIndex))
	mux.HandleFunc("/index.html", getOnly(s.handleIndex))
	mux.HandleFunc("/index.json", getOnly(s.handleJSON))
	if hub != nil {
		mux.HandleFunc("/ws", getOnly(s.handleWS))
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// getOnly rejects everything but GET and HEAD; the server is read-only.
func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.hub != nil)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(status.FormatJSON(snap))
}
