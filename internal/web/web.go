// Package web serves the archive over HTTP: the rendered page, its items as
// JSON and a health probe.
package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deusflow/feedwatch/internal/archive"
	"github.com/deusflow/feedwatch/internal/logger"
)

type Server struct {
	path   string
	store  archive.Store
	logger *slog.Logger
}

func NewServer(path string, store archive.Store, log *slog.Logger) *Server {
	return &Server{path: path, store: store, logger: logger.Component(log, "web")}
}

// Router returns the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.pageHandler)
	r.Get("/api/items", s.itemsHandler)
	r.Get("/health", s.healthHandler)
	return r
}

func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "archive not generated yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to read archive", "path", s.path, "error", err)
		http.Error(w, "failed to read archive", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *Server) itemsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Read(r.Context())
	if err != nil && !errors.Is(err, archive.ErrNotExist) {
		s.logger.Error("failed to read archive items", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "limit must be a non-negative integer"})
			return
		}
		if n < len(items) {
			items = items[:n]
		}
	}
	if items == nil {
		items = []archive.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Read(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "items": len(items)})
	case errors.Is(err, archive.ErrNotExist):
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "items": 0})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "error", "error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
