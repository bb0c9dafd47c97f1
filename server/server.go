// Package server implements the ranked HTTP daemon.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/ranked/comms"
	"github.com/GoCodeAlone/ranked/config"
	"github.com/GoCodeAlone/ranked/reorder"
	"github.com/GoCodeAlone/ranked/server/api"
	"github.com/GoCodeAlone/ranked/server/events"
)

// Server is the ranked HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	gateway  api.Gateway
	engine   *reorder.Engine
	bus      comms.Bus
	handlers *api.Handlers
	hub      *events.Hub
	unsub    func()

	routesOnce sync.Once
	startTime  time.Time
	version    string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		startTime: time.Now(),
		version:   ver,
	}
}

// SetGateway attaches the model gateway to the server.
func (s *Server) SetGateway(gw api.Gateway) {
	s.gateway = gw
}

// SetEngine attaches a reconciliation engine. Without one the server uses
// reorder.NewEngine with its logger.
func (s *Server) SetEngine(e *reorder.Engine) {
	s.engine = e
}

// SetBus attaches an outcome bus to the server.
func (s *Server) SetBus(bus comms.Bus) {
	s.bus = bus
}

// Handler returns the server's root handler, registering routes on first use.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.registerRoutes)
	return s.withRequestLog(s.mux)
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop ends open event streams and gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.routesOnce.Do(s.registerRoutes)
	if s.hub != nil {
		s.hub.Close()
	}
	if s.unsub != nil {
		s.unsub()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	engine := s.engine
	if engine == nil {
		engine = reorder.NewEngine(reorder.WithLogger(s.logger))
	}
	h := &api.Handlers{
		Engine:                  engine,
		Gateway:                 s.gateway,
		Bus:                     s.bus,
		Logger:                  s.logger,
		Version:                 s.version,
		StartAt:                 s.startTime,
		FallbackOnUpstreamError: s.cfg.Reorder.FallbackOnUpstreamError,
	}
	s.handlers = h
	h.RegisterRoutes(s.mux)

	if s.bus != nil {
		s.hub = events.NewHub(s.logger)
		s.unsub = s.bus.Subscribe(comms.KindAll, s.hub.OnOutcome)
		s.mux.HandleFunc("GET /api/events", s.hub.ServeSSE)
	}

	s.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
