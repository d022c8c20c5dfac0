// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeygate/pkg/correlation"
	"github.com/jeremyhahn/go-passkeygate/pkg/health"
	"github.com/jeremyhahn/go-passkeygate/pkg/metrics"
	passkeyhttp "github.com/jeremyhahn/go-passkeygate/pkg/passkey/http"
	"github.com/jeremyhahn/go-passkeygate/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthPrefix is where the passkey endpoints are mounted.
const AuthPrefix = "/api/auth"

// Server represents the passkeygate HTTP server.
type Server struct {
	server    *http.Server
	router    *chi.Mux
	tlsConfig *tls.Config
	cfg       *Config
	logger    logger.Logger
}

// Config holds the server configuration.
type Config struct {
	// Addr is the listen address (default: ":8080")
	Addr string

	// Passkeys serves the ceremony endpoints and the post gate (required)
	Passkeys *passkeyhttp.Handler

	// Health runs the probes (optional)
	Health *health.Checker

	// Limiter rate limits the ceremony endpoints (optional)
	Limiter *ratelimit.Limiter

	// CORSOrigins lists origins allowed to call the API with credentials.
	// Empty disables CORS headers; same-origin deployments need none.
	CORSOrigins []string

	// MetricsPath serves Prometheus metrics when non-empty
	MetricsPath string

	// Version is reported by /version
	Version string

	// TLSConfig is the TLS configuration for HTTPS (optional)
	TLSConfig *tls.Config

	// Logger is the logging adapter (optional)
	Logger logger.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Passkeys == nil {
		return nil, fmt.Errorf("passkey handler is required")
	}

	// Set defaults
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogAdapter(&logger.SlogConfig{Level: logger.LevelInfo})
	}

	s := &Server{
		tlsConfig: cfg.TLSConfig,
		cfg:       cfg,
		logger:    log,
	}
	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(s.RecoveryMiddleware())
	r.Use(correlation.Middleware) // Add correlation ID before logging
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORSMiddleware(s.cfg.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		passkeyhttp.WriteError(w, http.StatusNotFound, passkeyhttp.ErrorCodeNotFound, "Not found")
	})

	// Kubernetes-style health probes
	if s.cfg.Health != nil {
		r.Get("/health/live", s.cfg.Health.LiveHandler)
		r.Get("/health/ready", s.cfg.Health.ReadyHandler)
		r.Get("/health/startup", s.cfg.Health.StartupHandler)
	}

	if s.cfg.MetricsPath != "" {
		r.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.Handler())
	}

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, "{\"version\":%q}\n", s.cfg.Version)
	})

	r.Route(AuthPrefix, func(r chi.Router) {
		if s.cfg.Limiter != nil {
			r.Use(s.cfg.Limiter.Middleware(s.rateLimited))
		}
		passkeyhttp.MountChi(r, s.cfg.Passkeys)
	})

	passkeyhttp.MountPosts(r, s.cfg.Passkeys)

	return r
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn(r.Context(), "rate limit exceeded",
		logger.String("path", r.URL.Path),
		logger.String("remote_addr", r.RemoteAddr))
	passkeyhttp.WriteError(w, http.StatusTooManyRequests, passkeyhttp.ErrorCodeRateLimited, "Too many requests")
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. The health checker is marked started
// once the listener is ready.
func (s *Server) Serve(ln net.Listener) error {
	if s.cfg.Health != nil {
		s.cfg.Health.MarkStarted()
	}

	ctx := context.Background()
	if s.tlsConfig != nil {
		s.logger.Info(ctx, "Starting HTTPS server", logger.String("addr", ln.Addr().String()))
		if err := s.server.ServeTLS(ln, "", ""); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info(ctx, "Starting HTTP server", logger.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and the rate limiter.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down server")
	if s.cfg.Limiter != nil {
		s.cfg.Limiter.Stop()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "Failed to shutdown server", logger.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info(ctx, "Server stopped")
	return nil
}
