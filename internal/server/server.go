// Package server provides the HTTP API for Toridasu.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/index"
	"github.com/hyperjump/toridasu/internal/pipeline"
	"github.com/hyperjump/toridasu/internal/storage"
	"github.com/hyperjump/toridasu/internal/tokenize"
)

// WatchService is the watch-directory management surface exposed over HTTP.
type WatchService interface {
	Directories() []string
	AddDirectory(path string) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the Toridasu API.
type Server struct {
	pipeline  *pipeline.Pipeline
	tokenizer *tokenize.Tokenizer
	storage   storage.Storage
	index     index.RecordIndex
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server

	// watch is nil when directory watching is not running.
	watch      WatchService
	configPath string
	cfgMu      sync.Mutex
}

// NewServer creates a server with the given dependencies.
func NewServer(
	p *pipeline.Pipeline,
	store storage.Storage,
	idx index.RecordIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:  p,
		tokenizer: tokenize.New(),
		storage:   store,
		index:     idx,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetWatch attaches a running watch service so the watch endpoints work.
// configPath, when non-empty, is where directory changes are persisted.
func (s *Server) SetWatch(w WatchService, configPath string) {
	s.watch = w
	s.configPath = configPath
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/extract", s.handleExtract)
	r.Get("/api/v1/portfolios", s.handleListPortfolios)
	r.Get("/api/v1/portfolios/{id}", s.handleGetPortfolio)
	r.Delete("/api/v1/portfolios/{id}", s.handleDeletePortfolio)
	r.Post("/api/v1/records/search", s.handleSearchRecords)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
