// Package web provides the HTTP command surface and status page for the crate controller.
package web

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/sweeney/crate-controller/internal/command"
	"github.com/sweeney/crate-controller/internal/status"
)

// Server serves command routes and the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	queue      *command.Queue
}

// New creates a Server that reads state from the given tracker and hands
// commands to the control loop through queue.
func New(addr string, tracker *status.Tracker, queue *command.Queue) *Server {
	s := &Server{tracker: tracker, queue: queue}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	for _, path := range queue.Table().Paths() {
		mux.HandleFunc(path, s.handleCommand)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleCommand runs a command route. Every served command answers 200,
// including moves the controller refused.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := s.queue.Submit(r.Context(), r.URL.Path)
	switch {
	case errors.Is(err, command.ErrUnknownPath):
		http.NotFound(w, r)
		return
	case err != nil:
		log.Printf("web: %s: %v", r.URL.Path, err)
		http.Error(w, "controller unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, resp.Body)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.queue.Table().Paths())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
