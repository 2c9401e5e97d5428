// Package server provides the HTTP API for tri.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/munnellg/tri/internal/catalog"
	"github.com/munnellg/tri/internal/config"
	"github.com/munnellg/tri/internal/keyword"
	"github.com/munnellg/tri/internal/storage"
	"github.com/munnellg/tri/internal/temporal"
	"github.com/munnellg/tri/pkg/utils"
	"go.uber.org/zap"
)

// Server is the HTTP server for the tri API.
type Server struct {
	acc     *temporal.Accumulator
	storage storage.Storage
	terms   keyword.TermIndex
	catalog *catalog.Catalog
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. terms and cat may
// be nil; the endpoints that need them then answer 501.
func NewServer(
	acc *temporal.Accumulator,
	store storage.Storage,
	terms keyword.TermIndex,
	cat *catalog.Catalog,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		acc:     acc,
		storage: store,
		terms:   terms,
		catalog: cat,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/vectors/{term}", s.handleVector)
		r.Get("/similarity", s.handleSimilarity)
		r.Get("/neighbors/{term}", s.handleNeighbors)
		r.Get("/words/{term}", s.handleWords)
		r.Get("/terms", s.handleTerms)
		r.Get("/years", s.handleYears)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
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
