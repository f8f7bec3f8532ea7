// Package api provides the HTTP server exposing health probes, a status
// summary, and the Prometheus metrics endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/relaychat/internal/logger"
	"github.com/marmos91/relaychat/pkg/config"
)

// StatusSource reports live chat server counters for the status endpoint.
type StatusSource interface {
	ActiveConnections() int32
	ClientCount() int
	RoomCount() int
}

// Server is the HTTP server for the operational endpoints.
//
// Endpoints:
//   - GET /health: liveness probe
//   - GET /health/ready: readiness probe
//   - GET /status: chat server counters
//   - GET /metrics: Prometheus metrics (when metrics are enabled)
//
// The server supports graceful shutdown and is safe to stop more than once.
type Server struct {
	server       *http.Server
	config       config.APIConfig
	shutdownOnce sync.Once
}

// NewServer creates an API server in a stopped state. Call Start to serve.
// source may be nil; the status endpoint reports zeros then.
func NewServer(cfg config.APIConfig, source StatusSource) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(source),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		config: cfg,
	}
}

// Start serves HTTP until the context is cancelled, then shuts down
// gracefully with a fresh timeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop shuts the server down. Idempotent and safe to call concurrently with
// Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured HTTP port.
func (s *Server) Port() int {
	return s.config.Port
}
