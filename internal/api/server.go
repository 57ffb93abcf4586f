// Package api implements the first-party HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dvmoura/anota/internal/agent"
	"github.com/dvmoura/anota/internal/buildinfo"
	"github.com/dvmoura/anota/internal/store"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	listen   string
	pipeline *agent.Pipeline
	store    *store.Store
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(listen string, pipeline *agent.Pipeline, st *store.Store, logger *slog.Logger) *Server {
	return &Server{
		listen:   listen,
		pipeline: pipeline,
		store:    st,
		logger:   logger,
	}
}

// MessageRequest is a direct first-party message submission.
type MessageRequest struct {
	Content   string `json:"content"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	UserID    string `json:"userId"`
	ThreadID  string `json:"threadId,omitempty"`
}

// MessageResponse is the reply envelope for first-party clients.
type MessageResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/tools/calls", s.handleToolCalls)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	s.server = &http.Server{
		Addr:         s.listen,
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	s.logger.Info("starting API server", "listen", s.listen)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Anota",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		s.errorResponse(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.UserID == "" {
		s.errorResponse(w, http.StatusBadRequest, "userId is required")
		return
	}

	res, err := s.pipeline.HandleInbound(r.Context(), agent.Inbound{
		UserID:    req.UserID,
		ThreadID:  req.ThreadID,
		Text:      req.Content,
		MediaURL:  req.MediaURL,
		MediaType: req.MediaType,
	})
	if err != nil {
		s.logger.Error("pipeline failed", "user_id", req.UserID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, MessageResponse{Success: true, Response: res.Reply}, s.logger)
}

func (s *Server) handleToolCalls(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := s.store.RecentToolCalls(limit)
	if err != nil {
		s.logger.Error("tool call listing failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list tool calls")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"tool_calls": records,
		"count":      len(records),
	}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]string{"message": message},
	}, s.logger)
}
