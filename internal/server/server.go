// Package server provides the HTTP API for hypogen.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/hypogen/internal/config"
	"github.com/hyperjump/hypogen/internal/hypothesis"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/hyperjump/hypogen/internal/network"
	"github.com/hyperjump/hypogen/pkg/utils"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds every request when the config leaves it unset.
const DefaultRequestTimeout = 120 * time.Second

// Service is what the HTTP API needs from the hypothesis generator.
type Service interface {
	Generate(ctx context.Context, question string) (*models.Hypothesis, error)
	GeneNetwork(ctx context.Context) (*network.Graph, error)
	Status() hypothesis.Status
}

// Server is the HTTP server for the hypogen API.
type Server struct {
	svc    Service
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(svc Service, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		svc:    svc,
		config: cfg,
		logger: utils.OrNop(logger),
	}
}

// Handler returns the routed API with its middleware stack.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/genes/{id}/neighbors", s.handleNeighbors)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
