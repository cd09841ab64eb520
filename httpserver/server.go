package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/isdmx/coderoom/collab"
	"github.com/isdmx/coderoom/config"
	"github.com/isdmx/coderoom/metrics"
	"github.com/isdmx/coderoom/pipeline"
)

const (
	maxBodyBytes      = 1 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Runner executes pipeline requests
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

// Server is the HTTP front of the service
type Server struct {
	logger  *zap.Logger
	cfg     *config.Config
	runner  Runner
	metrics *metrics.Collector
	hub     *collab.Hub
	mcp     http.Handler

	router   chi.Router
	http     *http.Server
	listener net.Listener
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records HTTP metrics on c and serves them on /metrics
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithCollabHub serves the collaboration relay on /api/socket
func WithCollabHub(h *collab.Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithMCPHandler mounts an MCP transport on /mcp
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// New creates a Server with its routes wired
func New(logger *zap.Logger, cfg *config.Config, runner Runner, opts ...Option) *Server {
	s := &Server{
		logger: logger,
		cfg:    cfg,
		runner: runner,
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if origins := s.cfg.Server.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.With(jsonContentType).Post("/exec", s.handleExec)
		r.With(jsonContentType).Get("/ping", s.handlePing)
		if s.hub != nil {
			r.Get("/socket", s.hub.ServeHTTP)
		}
	})

	r.With(jsonContentType).Get("/healthz", s.handleHealth)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drops websocket clients and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
