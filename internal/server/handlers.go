package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
	"github.com/hyperjump/toridasu/internal/pipeline"
	"github.com/hyperjump/toridasu/internal/source"
	"github.com/hyperjump/toridasu/internal/storage"
)

// extractRequest carries either inline provider tokens or a path to a
// statement file on the server's filesystem.
type extractRequest struct {
	Path     string            `json:"path,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Tokens   []models.RawToken `json:"tokens,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tokens) == 0 && req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "tokens or path is required")
		return
	}

	in := source.Input{Filename: req.Filename, Tokens: req.Tokens}
	if len(in.Tokens) == 0 {
		tokens, err := s.tokenizer.FromFile(req.Path)
		if err != nil {
			s.logger.Error("tokenization failed", zap.String("path", req.Path), zap.Error(err))
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		in.Tokens = tokens
		if in.Filename == "" {
			in.Filename = filepath.Base(req.Path)
		}
	}

	s.logger.Debug("extract request", zap.String("file", in.Filename), zap.Int("tokens", len(in.Tokens)))
	portfolio, err := s.pipeline.Extract(r.Context(), in)
	if err != nil {
		if errors.Is(err, pipeline.ErrExtractionFailed) {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("extraction failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.storage.SavePortfolio(r.Context(), portfolio); err != nil {
		s.logger.Error("failed to save portfolio", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.index.IndexPortfolio(r.Context(), portfolio); err != nil {
		s.logger.Warn("failed to index portfolio", zap.String("id", portfolio.ID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusCreated, portfolio)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	portfolio, err := s.storage.GetPortfolio(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	s.respondJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete portfolio request", zap.String("id", id))
	if err := s.storage.DeletePortfolio(r.Context(), id); err != nil {
		s.respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	if err := s.index.DeletePortfolio(r.Context(), id); err != nil {
		s.logger.Warn("failed to remove portfolio from index", zap.String("id", id), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	portfolios, err := s.storage.ListPortfolios(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("failed to list portfolios", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountPortfolios(r.Context())
	if err != nil {
		s.logger.Error("failed to count portfolios", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"portfolios": portfolios,
		"total":      total,
		"offset":     offset,
		"limit":      limit,
	})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) handleSearchRecords(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	s.logger.Debug("record search request", zap.String("query", req.Query), zap.Int("limit", req.Limit))
	hits, err := s.index.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.logger.Error("record search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"total": len(hits),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	portfolioCount, err := s.storage.CountPortfolios(ctx)
	if err != nil {
		s.logger.Error("status: count portfolios failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recordCount, err := s.index.Count()
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"portfolios":      portfolioCount,
		"indexed_records": recordCount,
	}
	configInfo := map[string]interface{}{
		"database_path":        s.cfg.Storage.DatabasePath,
		"bleve_index_path":     s.cfg.Storage.BleveIndexPath,
		"source_timeout":       s.cfg.Extraction.SourceTimeout.String(),
		"vision_enabled":       s.cfg.Vision.Enabled,
		"arithmetic_tolerance": s.cfg.Extraction.ArithmeticTolerance,
	}
	if diskBytes, err := storage.DiskUsageBytes(
		s.cfg.Storage.DatabasePath,
		s.cfg.Storage.BleveIndexPath,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs))
	if err := s.watch.AddDirectory(abs); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current watch list back to the config
// file so it survives restarts.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.cfgMu.Lock()
	s.cfg.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.cfg)
	s.cfgMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
