// Package web serves the node status page. The same page answers every
// path so that captive-portal probes from phones and laptops land on it.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/status"
)

// captiveProbePaths are the connectivity-check URLs requested by common
// operating systems when joining a network.
var captiveProbePaths = []string{
	"/generate_204",        // Android
	"/gen_204",             // Android
	"/fwlink",              // Windows
	"/connecttest.txt",     // Windows
	"/ncsi.txt",            // Windows
	"/hotspot-detect.html", // Apple
}

// LiveInterval is how often /live pushes a snapshot.
const LiveInterval = 2 * time.Second

// Server serves the status page over HTTP.
type Server struct {
	httpServer   *http.Server
	tracker      *status.Tracker
	liveInterval time.Duration
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker, liveInterval: LiveInterval}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	for _, p := range captiveProbePaths {
		mux.HandleFunc(p, s.handleIndex)
	}
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/live", s.handleLive)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the request router, for serving on another listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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

// handleIndex serves the status page. "/" is a catch-all, so unknown paths
// get the same page with a 200.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
