// Package server implements the pbtoado HTTP server: the ProductBoard webhook
// endpoint and the operator API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/internal/server/handlers"
)

// DefaultMaxBody bounds request bodies when no limit is configured.
const DefaultMaxBody = 1 << 20

// Server is the pbtoado HTTP server.
type Server struct {
	webhook  handlers.Webhook
	bulk     handlers.BulkSync
	exporter handlers.Exporter
	store    provider.Store
	router   chi.Router
	addr     string
	apiKey   string
	maxBody  int64
	logger   *slog.Logger
	srv      *http.Server
}

// Option configures optional server routes.
type Option func(*Server)

// WithExporter mounts POST /api/work-items/{id}/export.
func WithExporter(e handlers.Exporter) Option {
	return func(s *Server) { s.exporter = e }
}

// New creates a new HTTP server. An empty apiKey leaves the operator API
// unauthenticated; the webhook endpoint always checks its own secret.
func New(addr string, wh handlers.Webhook, bulk handlers.BulkSync, store provider.Store, apiKey string, maxBody int64, logger *slog.Logger, opts ...Option) *Server {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		webhook: wh,
		bulk:    bulk,
		store:   store,
		addr:    addr,
		apiKey:  apiKey,
		maxBody: maxBody,
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(MaxBodyMiddleware(maxBody))

	s.router = r
	s.registerRoutes(r)
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving HTTP requests. It returns nil after Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.srv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // bulk sync runs inside the request
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("pbtoado server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
