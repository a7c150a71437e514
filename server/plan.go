package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tecpap/lineplan/dataset"
	"github.com/tecpap/lineplan/engine"
)

// HandlePlan serves the sequential plan preview walked from the
// current queue.
func (s *Server) HandlePlan(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := queryInt(r, "limit", 30)
	writeJSON(w, http.StatusOK, s.engine.PlanPreview(limit))
}

// HandlePlanExport serves the plan preview as a CSV attachment.
func (s *Server) HandlePlanExport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := queryInt(r, "limit", 200)
	rows := s.engine.PlanPreview(limit)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="plan_export.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := dataset.WritePlanCSV(w, rows); err != nil {
		s.logger.Warnw("Failed to stream plan CSV", "error", err)
	}
}

type replanRequest struct {
	Strategy string `json:"strategy"`
}

// HandlePlanRecompute reorders the queue with the requested strategy.
// An empty body or an empty strategy selects FORMAT_PRIORITY.
func (s *Server) HandlePlanRecompute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req replanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	strategy := strings.ToUpper(req.Strategy)
	if strategy == "" {
		strategy = engine.StrategyFormatPriority
	}
	if strategy != engine.StrategyFormatPriority {
		writeError(w, http.StatusBadRequest, "Unknown strategy. Use FORMAT_PRIORITY.")
		return
	}

	writeJSON(w, http.StatusOK, s.engine.RecomputeFormatPriority())
}
