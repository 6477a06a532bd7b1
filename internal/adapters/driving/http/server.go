package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/thewatergategroups/info-vault/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// ReadinessCheck is one dependency probed by /ready.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

// OAuthAuthorizer runs the interactive Google login.
type OAuthAuthorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	router          chi.Router
	version         string
	maxUploadBytes  int64
	shutdownTimeout time.Duration
	logger          *slog.Logger

	docService driving.DocumentService
	authorizer OAuthAuthorizer // nil disables /google routes
	checks     []ReadinessCheck

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// AllowedOrigins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// MaxUploadBytes caps the request body of an upload. 0 means no cap.
	MaxUploadBytes int64

	// ShutdownTimeout bounds graceful shutdown (default: 30s).
	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ShutdownTimeout: 30 * time.Second,
	}
}

// Dependencies are the services the HTTP layer drives.
type Dependencies struct {
	Documents  driving.DocumentService
	Authorizer OAuthAuthorizer
	Checks     []ReadinessCheck
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router:          chi.NewRouter(),
		version:         cfg.Version,
		maxUploadBytes:  cfg.MaxUploadBytes,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
		docService:      deps.Documents,
		authorizer:      deps.Authorizer,
		checks:          deps.Checks,
	}

	s.setupRoutes(cfg.AllowedOrigins)

	// No write timeout: downloads stream arbitrarily large blobs.
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(allowedOrigins []string) {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(s.logger).Handler)
	r.Use(NewRecoveryMiddleware(s.logger).Handler)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         86400,
		}))
	}

	// Health endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1/documents", func(r chi.Router) {
		r.Post("/", s.handleUploadDocument)
		r.Get("/", s.handleListDocuments)
		r.Get("/exists", s.handleDocumentExists)
		r.Get("/{id}", s.handleGetDocument)
		r.Get("/{id}/download", s.handleDownloadDocument)
		r.Delete("/{id}", s.handleDeleteDocument)
		r.Post("/{id}/reindex", s.handleReindexDocument)
	})

	if s.authorizer != nil {
		r.Get("/google/login", s.handleGoogleLogin)
		r.Get("/google/redirect", s.handleGoogleRedirect)
	}
}

// Start binds the listener and serves in the background. Bind failures
// are returned.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.httpServer.BaseContext = func(net.Listener) context.Context {
		return context.WithoutCancel(ctx)
	}
	s.running = true
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		s.logger.Info("http server started", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down, letting in-flight requests finish within
// the shutdown timeout.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.doneCh
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown incomplete", "error", err)
	}
	<-done
	s.logger.Info("http server stopped")
}
