package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/logger"
	"github.com/agentcore/orchestrator/pkg/observability"
)

// Server owns the HTTP listener for the chat SSE boundary and its
// observability manager's lifecycle.
type Server struct {
	cfg        config.ServerConfig
	handler    *Handler
	obs        *observability.Manager
	httpServer *http.Server
}

// New builds a Server ready to Start. obs may be nil, in which case
// tracing and metrics middleware become no-ops.
func New(cfg config.ServerConfig, handler *Handler, obs *observability.Manager) *Server {
	cfg.SetDefaults()
	return &Server{cfg: cfg, handler: handler, obs: obs}
}

// Start binds the listener and serves until the process is stopped or the
// listener errors. It blocks, matching the idiom of net/http's
// ListenAndServe.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.handler.Routes(s.obs),
	}
	logger.GetLogger().Info("server starting", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the listener and the observability manager.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	if s.obs != nil {
		return s.obs.Shutdown(ctx)
	}
	return nil
}
