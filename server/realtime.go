package server

import (
	"net/http"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/runner"
)

type realtimeStartRequest struct {
	DayStart          string   `json:"day_start"`
	DayEnd            string   `json:"day_end"`
	CompressToSeconds *int     `json:"compress_to_seconds"`
	TickSeconds       *float64 `json:"tick_seconds"`
}

// HandleRealtimeStart starts a compressed realtime run. A window that
// does not validate is a 400; a run already in progress is a 409.
func (s *Server) HandleRealtimeStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req realtimeStartRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	dayStart, err := engine.ParseMinute(req.DayStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "day_start must be YYYY-MM-DDTHH:MM")
		return
	}
	dayEnd, err := engine.ParseMinute(req.DayEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "day_end must be YYYY-MM-DDTHH:MM")
		return
	}

	cfg := runner.Config{
		DayStart:          dayStart,
		DayEnd:            dayEnd,
		CompressToSeconds: runner.DefaultCompressToSeconds,
		TickSeconds:       runner.DefaultTickSeconds,
	}
	if req.CompressToSeconds != nil {
		cfg.CompressToSeconds = *req.CompressToSeconds
	}
	if req.TickSeconds != nil {
		cfg.TickSeconds = *req.TickSeconds
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := s.runner.Start(cfg)
	if st.Status == runner.StatusAlreadyRunning {
		writeJSON(w, http.StatusConflict, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRealtimeStop stops the current run, if any.
func (s *Server) HandleRealtimeStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	writeJSON(w, http.StatusOK, s.runner.Stop())
}

// HandleRealtimeState serves the runner status with a full engine
// snapshot.
func (s *Server) HandleRealtimeState(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.runner.State())
}

// HandleRealtimeHourly serves the hourly snapshots accumulated by the
// current or most recent run.
func (s *Server) HandleRealtimeHourly(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.runner.HourlyReports())
}
