// Package server provides the HTTP surface of the lookup pipeline:
// batch lookup submission and per-session catalog/image downloads.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lepinkainen/cataloger/internal/bundle"
	"github.com/lepinkainen/cataloger/internal/lookup"
	"github.com/lepinkainen/cataloger/internal/ratelimit"
	"github.com/lepinkainen/cataloger/internal/session"
)

const (
	// DefaultMaxBodyBytes caps the lookup request body size (~50 KB).
	DefaultMaxBodyBytes = 50_000

	// maxTrackedIPs caps the per-IP limiter map so a long-lived server
	// never accumulates unbounded client state.
	maxTrackedIPs = 10_000
)

// Config holds server configuration.
type Config struct {
	// Port to listen on.
	Port int

	// MaxBodyBytes caps the POST /lookup body size.
	MaxBodyBytes int64

	// RequestsPerWindow and RequestWindow throttle POST /lookup per
	// client IP. Zero requests disables per-IP throttling.
	RequestsPerWindow int
	RequestWindow     time.Duration

	// Logger for the server.
	Logger *slog.Logger
}

// Server is the HTTP server for the lookup pipeline.
type Server struct {
	config     Config
	logger     *slog.Logger
	httpServer *http.Server

	orchestrator *lookup.Orchestrator
	store        *session.Store
	packager     *bundle.Packager

	mu            sync.Mutex
	ipLimiters    map[string]*ratelimit.Limiter
	maxTrackedIPs int
}

// New creates a server over the given pipeline components.
func New(orch *lookup.Orchestrator, store *session.Store, packager *bundle.Packager, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RequestWindow == 0 {
		cfg.RequestWindow = time.Minute
	}

	s := &Server{
		config:        cfg,
		logger:        cfg.Logger,
		orchestrator:  orch,
		store:         store,
		packager:      packager,
		ipLimiters:    make(map[string]*ratelimit.Limiter),
		maxTrackedIPs: maxTrackedIPs,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.loggingMiddleware(s.securityHeaders(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // image bundles can take a while
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /lookup", s.handleLookup)
	mux.HandleFunc("GET /download/catalog", s.handleDownloadCatalog)
	mux.HandleFunc("GET /download/images", s.handleDownloadImages)
	mux.HandleFunc("GET /download/bundle", s.handleDownloadBundle)
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting server", "address", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// allowRequest applies the per-IP lookup budget. Limiters are created on
// first sight of an IP; Allow (not Wait) so an over-budget client gets an
// immediate 429 instead of holding a connection open.
func (s *Server) allowRequest(ip string) bool {
	if s.config.RequestsPerWindow <= 0 {
		return true
	}

	s.mu.Lock()
	l, ok := s.ipLimiters[ip]
	if !ok {
		// At the cap the whole map is dropped. Budgets reset for every
		// tracked client, which errs in the client's favor.
		if len(s.ipLimiters) >= s.maxTrackedIPs {
			s.ipLimiters = make(map[string]*ratelimit.Limiter)
		}
		l = ratelimit.New("request:"+ip, s.config.RequestsPerWindow, s.config.RequestWindow)
		s.ipLimiters[ip] = l
	}
	s.mu.Unlock()

	return l.Allow()
}
