// Package server implements the taskmanager HTTP server: routing, account
// authentication and the SSE event stream.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/DhimiMohamed/taskmanager/config"
	"github.com/DhimiMohamed/taskmanager/server/api"
	"github.com/DhimiMohamed/taskmanager/server/ws"
)

// Server is the taskmanager HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	handlers *api.Handlers
	hub      *ws.Hub

	routesOnce sync.Once

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a Server serving h. The handlers' Accounts service backs the
// public auth routes.
func New(cfg config.Config, ver string, logger *slog.Logger, h *api.Handlers) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		handlers:  h,
		startTime: time.Now(),
		version:   ver,
	}
	if h.Version == "" {
		h.Version = ver
	}
	if h.StartAt.IsZero() {
		h.StartAt = s.startTime
	}
	if h.Logger == nil {
		h.Logger = logger
	}
	return s
}

// SetHub attaches the SSE hub served at /events. Call before Start.
func (s *Server) SetHub(hub *ws.Hub) {
	s.hub = hub
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.registerRoutes)
	return s.accessLog(s.mux)
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":8000"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := s.handlers

	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/auth/verify/{token}", s.handleVerify)
	s.mux.HandleFunc("POST /api/auth/password-reset/request", s.handleResetRequest)
	s.mux.HandleFunc("POST /api/auth/password-reset/verify", s.handleResetVerify)
	s.mux.HandleFunc("POST /api/auth/password-reset/confirm", s.handleResetConfirm)
	s.mux.HandleFunc("GET /api/status", h.StatusHandler())

	// SSE: auth handled inline because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API, wrapped in auth middleware
	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleSSE streams the caller's events. The token comes from the query
// string or, for non-browser clients, the Authorization header.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	uid, err := verifyToken(s.jwtSecret(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.hub.ServeSSE(w, r, uid)
}
