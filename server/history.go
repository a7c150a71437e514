package server

import (
	"net/http"

	"github.com/tecpap/lineplan/history"
)

// requireStore rejects history requests when no store is attached.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return false
	}
	return true
}

// HandleHistoryJournal serves archived journal entries, newest first,
// with the total row count for paging.
func (s *Server) HandleHistoryJournal(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if !s.requireStore(w) {
		return
	}

	limit := queryInt(r, "limit", history.DefaultJournalLimit)
	offset := queryInt(r, "offset", 0)

	entries, err := s.store.ListJournal(limit, offset)
	if err != nil {
		s.logger.Errorw("Failed to list journal history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list journal history")
		return
	}
	total, err := s.store.CountJournal()
	if err != nil {
		s.logger.Errorw("Failed to count journal history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count journal history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"entries": entries,
	})
}

// HandleHistoryRuns serves recorded realtime runs, newest first.
func (s *Server) HandleHistoryRuns(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if !s.requireStore(w) {
		return
	}

	limit := queryInt(r, "limit", 50)
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.logger.Errorw("Failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// HandleHistoryReports serves the hourly reports persisted for one
// run.
func (s *Server) HandleHistoryReports(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if !s.requireStore(w) {
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	reports, err := s.store.ListReports(runID)
	if err != nil {
		s.logger.Errorw("Failed to list reports", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"reports": reports,
	})
}
