// Package web provides the HTTP status server and WebSocket LED control
// for the dht-node daemon.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/sweeney/dht-node/internal/led"
	"github.com/sweeney/dht-node/internal/status"
)

// LEDControl applies LED commands. *led.Controller satisfies it.
type LEDControl interface {
	Apply(cmd led.Command) (bool, error)
	State() bool
}

// Server serves the status page over HTTP and LED control over /ws.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	led        LEDControl
	hub        *hub
	log        *slog.Logger
}

// New creates a Server that reads state from the given tracker and
// forwards WebSocket commands to ctl.
func New(addr string, tracker *status.Tracker, ctl LEDControl, log *slog.Logger) *Server {
	s := &Server{
		tracker: tracker,
		led:     ctl,
		hub:     newHub(log),
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the HTTP handler. Useful for tests.
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

// Shutdown closes WebSocket clients and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// BroadcastLED pushes the LED state to every connected WebSocket client.
// Register it with the LED controller's OnChange.
func (s *Server) BroadcastLED(on bool) {
	s.hub.broadcast([]byte(led.Reply(on)))
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	return s.hub.count()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Error("render status page", "error", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
