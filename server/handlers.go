package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/version"
)

// HandleHealth serves liveness plus build info, engine clock, and host
// memory pressure.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	versionInfo := version.Get()
	health := map[string]interface{}{
		"status":         "ok",
		"version":        versionInfo.Version,
		"commit":         versionInfo.CommitHash,
		"build_time":     versionInfo.BuildTime,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"engine_now":     engine.FormatMinute(s.engine.Now()),
		"clients":        s.ClientCount(),
	}
	if v, err := mem.VirtualMemory(); err == nil {
		health["mem_used_percent"] = v.UsedPercent
		health["mem_total_mb"] = v.Total / 1024 / 1024
	}

	writeJSON(w, http.StatusOK, health)
}

// HandleState serves the full engine snapshot.
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

type eventRequest struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// HandleEvents applies one timestamped event to the live engine and
// returns its journal entry.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req eventRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	ts, err := engine.ParseMinute(req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamp must be YYYY-MM-DDTHH:MM")
		return
	}

	entry := s.engine.HandleEvent(engine.Event{
		Timestamp: ts,
		Type:      req.Type,
		Value:     req.Value,
	}, SourceManualEvents)
	s.archiveJournal(entry)

	writeJSON(w, http.StatusOK, entry)
}

type eventNowRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// HandleEventsNow applies an event stamped with the current machine
// time, so it can never be late.
func (s *Server) HandleEventsNow(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req eventNowRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	entry := s.engine.HandleEvent(engine.Event{
		Timestamp: s.engine.Now(),
		Type:      req.Type,
		Value:     req.Value,
	}, SourceManualEventsNow)
	s.archiveJournal(entry)

	writeJSON(w, http.StatusOK, entry)
}

// HandleEventsLog serves the tail of the in-memory journal.
func (s *Server) HandleEventsLog(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := queryInt(r, "limit", 100)
	writeJSON(w, http.StatusOK, s.engine.JournalTail(limit))
}

type incomingEventIn struct {
	ReceiveTime    string `json:"receive_time"`
	EventTimestamp string `json:"event_timestamp"`
	Type           string `json:"type"`
	Value          string `json:"value"`
	Source         string `json:"source"`
}

type simulateDayRequest struct {
	DayStart                    string            `json:"day_start"`
	DayEnd                      string            `json:"day_end"`
	ReportEveryMin              int               `json:"report_every_min"`
	IncomingEvents              []incomingEventIn `json:"incoming_events"`
	LatePolicy                  string            `json:"late_policy"`
	MaxEventLatenessMin         *int              `json:"max_event_lateness_min"`
	BreakdownReplanThresholdMin *int              `json:"breakdown_replan_threshold_min"`
}

// HandleSimulateDay plays a whole day on a clone of the live engine.
// Policy overrides left out of the request keep the live
// configuration.
func (s *Server) HandleSimulateDay(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req simulateDayRequest
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

	incoming := make([]engine.IncomingEvent, 0, len(req.IncomingEvents))
	for i, x := range req.IncomingEvents {
		receiveTime, err := engine.ParseMinute(x.ReceiveTime)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("incoming_events[%d].receive_time must be YYYY-MM-DDTHH:MM", i))
			return
		}
		eventTS, err := engine.ParseMinute(x.EventTimestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("incoming_events[%d].event_timestamp must be YYYY-MM-DDTHH:MM", i))
			return
		}
		source := x.Source
		if source == "" {
			source = SourceSimulation
		}
		incoming = append(incoming, engine.IncomingEvent{
			ReceiveTime: receiveTime,
			Event: engine.Event{
				Timestamp: eventTS,
				Type:      x.Type,
				Value:     x.Value,
			},
			Source: source,
		})
	}

	result := s.engine.SimulateDay(dayStart, dayEnd, incoming, engine.SimOptions{
		ReportEveryMin:              req.ReportEveryMin,
		LatePolicy:                  engine.LatePolicy(req.LatePolicy),
		MaxEventLatenessMin:         req.MaxEventLatenessMin,
		BreakdownReplanThresholdMin: req.BreakdownReplanThresholdMin,
	})
	writeJSON(w, http.StatusOK, result)
}
