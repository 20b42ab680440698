// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"vidsource/internal/logging"
	"vidsource/internal/media"
	"vidsource/internal/resolver"
)

const maxRequestBytes = 64 << 10

// Resolver is what the HTTP layer needs from the pipeline.
type Resolver interface {
	Resolve(ctx context.Context, req media.Request) (*media.Result, error)
}

// Server routes /extract and /healthz.
type Server struct {
	router   *mux.Router
	resolver Resolver
	log      *log.Logger
}

// New builds the router.
func New(r Resolver, logger *log.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		resolver: r,
		log:      logging.Component(logger, "http"),
	}
	s.router.Use(s.requestLogger)
	s.router.HandleFunc("/extract", s.handleExtract).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer wraps the router in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Resolutions can walk every provider.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req media.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}

	res, err := s.resolver.Resolve(r.Context(), req)
	switch {
	case errors.Is(err, resolver.ErrInvalidRequest):
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		requestLogger(r, s.log).Error("resolve failed", "err", err)
		s.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	s.writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		requestLogger(r, s.log).Warn("writing response", "err", err)
	}
}
