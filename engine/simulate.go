package engine

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SimOptions tunes one simulated day without touching the live engine.
// Nil override fields keep the engine's own configuration.
type SimOptions struct {
	ReportEveryMin              int
	LatePolicy                  LatePolicy
	MaxEventLatenessMin         *int
	BreakdownReplanThresholdMin *int
}

// SimStats counts event outcomes over a simulated day.
type SimStats struct {
	EventsReceived    int `json:"events_received"`
	EventsApplied     int `json:"events_applied"`
	EventsIgnored     int `json:"events_ignored"`
	LateEventsApplied int `json:"late_events_applied"`
	Replans           int `json:"replans"`
	BreakdownReplans  int `json:"breakdown_replans"`
}

// ReportMachine is the machine portion of an hourly report.
type ReportMachine struct {
	IsRunning     bool    `json:"is_running"`
	IsDown        bool    `json:"is_down"`
	SpeedFactor   float64 `json:"speed_factor"`
	CurrentFormat *string `json:"current_format"`
	CurrentJobID  *string `json:"current_job_id"`
}

// ReportCounters are the KPI buckets at report time, in minutes.
type ReportCounters struct {
	Downtime  int `json:"downtime"`
	Stopped   int `json:"stopped"`
	Idle      int `json:"idle"`
	Producing int `json:"producing"`
}

// HourlyReport is the compact periodic rollup emitted during simulated
// and realtime runs.
type HourlyReport struct {
	Time                string         `json:"time"`
	Machine             ReportMachine  `json:"machine"`
	QueueSize           int            `json:"queue_size"`
	CompletedCount      int            `json:"completed_count"`
	TotalLatenessMinEst int            `json:"total_lateness_min_est"`
	CountersMin         ReportCounters `json:"counters_min"`
}

// DayResult is the full outcome of one simulated day.
type DayResult struct {
	DayStart                    string         `json:"day_start"`
	DayEnd                      string         `json:"day_end"`
	LatePolicy                  LatePolicy     `json:"late_policy"`
	MaxEventLatenessMin         int            `json:"max_event_lateness_min"`
	BreakdownReplanThresholdMin int            `json:"breakdown_replan_threshold_min"`
	Stats                       SimStats       `json:"stats"`
	Reports                     []HourlyReport `json:"reports"`
	LastState                   Snapshot       `json:"last_state"`
	EventLogTail                []JournalEntry `json:"event_log_tail"`
}

// SimulateDay plays a whole day against a clone of the engine: the
// clock sweeps from dayStart to dayEnd one minute at a time, incoming
// events are delivered in receive order as the sweep passes them, and
// a report is taken every reporting interval. The live engine is never
// modified.
func (e *Engine) SimulateDay(dayStart, dayEnd time.Time, incoming []IncomingEvent, opts SimOptions) DayResult {
	sim := e.Clone()
	sim.logger = zap.NewNop().Sugar()
	if opts.LatePolicy != "" {
		sim.cfg.LatePolicy = opts.LatePolicy
	}
	if opts.MaxEventLatenessMin != nil {
		sim.cfg.MaxEventLatenessMin = *opts.MaxEventLatenessMin
	}
	if opts.BreakdownReplanThresholdMin != nil {
		sim.cfg.BreakdownReplanThresholdMin = *opts.BreakdownReplanThresholdMin
	}
	reportEvery := opts.ReportEveryMin
	if reportEvery <= 0 {
		reportEvery = 60
	}

	sim.SetTime(dayStart)

	incs := make([]IncomingEvent, len(incoming))
	copy(incs, incoming)
	sort.SliceStable(incs, func(i, j int) bool {
		return incs[i].ReceiveTime.Before(incs[j].ReceiveTime)
	})

	stats := SimStats{EventsReceived: len(incs)}
	reports := []HourlyReport{}
	nextReport := dayStart
	idx := 0

	for t := dayStart; !t.After(dayEnd); t = t.Add(time.Minute) {
		for idx < len(incs) && !incs[idx].ReceiveTime.After(t) {
			entry := sim.HandleIncoming(incs[idx])
			idx++

			if entry.Status == StatusIgnored {
				stats.EventsIgnored++
			} else {
				stats.EventsApplied++
			}
			if entry.LateApplied {
				stats.LateEventsApplied++
			}
			if entry.Replanned {
				stats.Replans++
				if strings.HasPrefix(entry.ReplanReason, "breakdown_duration") {
					stats.BreakdownReplans++
				}
			}
		}

		// Bare advance: the sweep itself never dispatches, only the
		// events and the initial SetTime do.
		sim.mu.Lock()
		sim.advanceTo(t)
		sim.mu.Unlock()

		if !t.Before(nextReport) {
			sim.mu.Lock()
			reports = append(reports, sim.hourlyReportLocked())
			sim.mu.Unlock()
			nextReport = nextReport.Add(time.Duration(reportEvery) * time.Minute)
		}
	}

	e.logger.Infow("day simulated",
		"day_start", FormatMinute(dayStart),
		"day_end", FormatMinute(dayEnd),
		"events_received", stats.EventsReceived,
		"events_applied", stats.EventsApplied,
		"events_ignored", stats.EventsIgnored,
		"replans", stats.Replans,
		"completed_count", len(sim.completed),
	)

	return DayResult{
		DayStart:                    FormatMinute(dayStart),
		DayEnd:                      FormatMinute(dayEnd),
		LatePolicy:                  sim.cfg.LatePolicy,
		MaxEventLatenessMin:         sim.cfg.MaxEventLatenessMin,
		BreakdownReplanThresholdMin: sim.cfg.BreakdownReplanThresholdMin,
		Stats:                       stats,
		Reports:                     reports,
		LastState:                   sim.State(),
		EventLogTail:                sim.JournalTail(50),
	}
}

// HourlySnapshot reports the compact rollup used for periodic
// reporting on the live engine.
func (e *Engine) HourlySnapshot() HourlyReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hourlyReportLocked()
}

func (e *Engine) hourlyReportLocked() HourlyReport {
	r := HourlyReport{
		Time: FormatMinute(e.now),
		Machine: ReportMachine{
			IsRunning:     e.isRunning,
			IsDown:        e.isDown,
			SpeedFactor:   e.speedFactor,
			CurrentFormat: optString(e.currentFormat),
		},
		QueueSize:           len(e.queue),
		CompletedCount:      len(e.completed),
		TotalLatenessMinEst: e.totalLateness(e.queue),
		CountersMin: ReportCounters{
			Downtime:  e.downtimeMin,
			Stopped:   e.stoppedMin,
			Idle:      e.idleMin,
			Producing: e.producingMin,
		},
	}
	if e.currentJob != nil {
		r.Machine.CurrentJobID = optString(e.currentJob.OFID)
	}
	return r
}
