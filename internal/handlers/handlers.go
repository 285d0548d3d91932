package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pep299/qiita-highlight-bridge/internal/job"
	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	maxBackfillDays  = 365
)

// SyncRequest is the optional body of POST /sync.
type SyncRequest struct {
	Days int `json:"days"`
}

// healthHandler provides health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   Version,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// syncHandler runs a sync and returns its report
func (s *Server) syncHandler(w http.ResponseWriter, r *http.Request) {
	req := SyncRequest{Days: s.config.BackfillDays}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Days < 1 || req.Days > maxBackfillDays {
		WriteError(w, http.StatusBadRequest, "days must be between 1 and 365")
		return
	}

	// A run may outlast the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// A sync runs to completion even if the caller goes away.
	ctx := context.WithoutCancel(r.Context())
	rep, err := s.runner.RunFor(ctx, report.TriggerHTTP, req.Days)
	switch {
	case errors.Is(err, job.ErrAlreadyRunning):
		WriteError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("Sync via HTTP failed", logger.Err(err))
		WriteJSON(w, http.StatusInternalServerError, Response{Status: "error", Error: err.Error(), Data: rep})
	default:
		WriteSuccess(w, "Sync completed", rep)
	}
}

// listRunsHandler returns the most recent run reports
func (s *Server) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		WriteError(w, http.StatusServiceUnavailable, "Run history is not enabled")
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	reports, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("Listing runs failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "Error listing runs")
		return
	}
	WriteSuccess(w, "", reports)
}

// getRunHandler returns a single run report
func (s *Server) getRunHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		WriteError(w, http.StatusServiceUnavailable, "Run history is not enabled")
		return
	}

	rep, err := s.store.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, report.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.logger.Error("Reading run failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "Error reading run")
		return
	}
	WriteSuccess(w, "", rep)
}

// configHandler returns configuration (sanitized)
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	// Secrets carry json:"-" tags.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.config)
}
