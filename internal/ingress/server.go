// Package ingress serves the HTTP surface of herald: health, metrics, queue
// inspection and a websocket for external event sources.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/herald/internal/announce"
	"github.com/dgnsrekt/herald/internal/playback"
)

// Scheduler is the part of the playback scheduler exposed over HTTP.
type Scheduler interface {
	Sinks() []playback.SinkID
	Status(sink playback.SinkID) playback.Status
	DisconnectSink(sink playback.SinkID)
}

// Announcer turns websocket events into speech.
type Announcer interface {
	Announce(ctx context.Context, sink playback.SinkID, text, lang, requester string) (playback.Descriptor, error)
	Presence(ctx context.Context, ev announce.PresenceEvent) (bool, error)
}

// Config configures the server.
type Config struct {
	Addr string

	// Token, when set, is required as a bearer token for the websocket and
	// for clearing queues.
	Token string
}

// Server is the HTTP API.
type Server struct {
	config    Config
	scheduler Scheduler
	announcer Announcer
	server    *http.Server
	upgrader  websocket.Upgrader
	logger    *log.Logger
	startTime time.Time
}

// New creates a server. Call Start to listen.
func New(cfg Config, scheduler Scheduler, announcer Announcer) *Server {
	s := &Server{
		config:    cfg,
		scheduler: scheduler,
		announcer: announcer,
		logger:    log.WithPrefix("ingress"),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			// Event sources are programs, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.withMetrics("/healthz", s.handleHealth))
	mux.HandleFunc("GET /sinks", s.withMetrics("/sinks", s.handleSinks))
	mux.HandleFunc("GET /sinks/{id}/queue", s.withMetrics("/sinks/{id}/queue", s.handleQueue))
	mux.HandleFunc("DELETE /sinks/{id}/queue", s.withMetrics("/sinks/{id}/queue", s.requireToken(s.handleClear)))
	mux.HandleFunc("GET /ws/events", s.requireToken(s.handleEvents))
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", s.config.Addr, err)
	}

	s.logger.Info("Starting HTTP server", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// withMetrics counts requests per route and status code.
func (s *Server) withMetrics(route string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.statusCode)).Inc()
	}
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requireToken(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.Token != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token != s.config.Token {
				writeError(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}
		}
		handler(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"sinks":  len(s.scheduler.Sinks()),
	})
}

func (s *Server) handleSinks(w http.ResponseWriter, _ *http.Request) {
	sinks := s.scheduler.Sinks()
	out := make([]playback.Status, 0, len(sinks))
	for _, id := range sinks {
		out = append(out, s.scheduler.Status(id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	id := playback.SinkID(r.PathValue("id"))
	writeJSON(w, http.StatusOK, s.scheduler.Status(id))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := playback.SinkID(r.PathValue("id"))
	s.scheduler.DisconnectSink(id)
	s.logger.Info("Queue cleared over HTTP", "sink", id, "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
