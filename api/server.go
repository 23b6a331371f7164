// Package api provides the HTTP REST API for Lodestone.
//
// Endpoints:
//
//	GET  /health                    liveness probe
//	GET  /ready                     readiness probe (database ping)
//	POST /api/chat                  answer a question
//	GET  /api/chat/history          read session history
//	POST /api/index/rebuild         rebuild the tenant + shared index
//	GET  /api/index/status          chunk counts per namespace
//	GET  /api/sources               list configured sources
//	GET  /api/sources/{name}/runs   recent ingestion runs for one source
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: logging, recovery, request-id, API-key auth
//   - health.go: health check endpoints
//   - chat.go: chat + history endpoints
//   - index.go: index rebuild/status endpoints
//   - sources.go: source listing and run history endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodestone-data/lodestone/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to prevent Slowloris attacks.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation can take a while, so this is generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the Lodestone REST API.
type Server struct {
	mux    *http.ServeMux
	auth   *authMiddleware
	logger log.Logger
}

// Deps carries everything the handlers need.
type Deps struct {
	Pool        *pgxpool.Pool
	Assistant   Assistant
	Convs       ConversationReader
	Configs     ConfigStore
	Audit       AuditStore
	Tenants     TenantResolver
	RequireAuth bool
	Logger      log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:    mux,
		auth:   newAuthMiddleware(deps.Tenants, deps.RequireAuth, logger),
		logger: logger,
	}

	NewHealthHandler(deps.Pool, logger).RegisterRoutes(mux)
	NewChatHandler(deps.Assistant, deps.Convs, logger).RegisterRoutes(mux)
	NewIndexHandler(deps.Assistant, logger).RegisterRoutes(mux)
	NewSourcesHandler(deps.Configs, deps.Audit, logger).RegisterRoutes(mux)

	return s
}

// Handler returns the mux with middleware applied.
// Order: recovery → request-id → logging → auth → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
		s.auth.wrap,
	)
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
