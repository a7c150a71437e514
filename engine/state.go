package engine

// Snapshot is a point-in-time view of the machine, safe to hold after
// the engine moves on and stable under JSON serialization.
type Snapshot struct {
	Now                     string          `json:"now"`
	IsRunning               bool            `json:"is_running"`
	IsDown                  bool            `json:"is_down"`
	SpeedFactor             float64         `json:"speed_factor"`
	CurrentFormat           *string         `json:"current_format"`
	CurrentJob              *CurrentJob     `json:"current_job"`
	RemainingSetupMin       int             `json:"remaining_setup_min"`
	RemainingWorkNominalMin int             `json:"remaining_work_nominal_min"`
	QueueSize               int             `json:"queue_size"`
	PoolRemaining           int             `json:"pool_remaining"`
	Breakdown               BreakdownStatus `json:"breakdown"`
	KPI                     KPICounters     `json:"kpi"`
}

// CurrentJob identifies the order on the machine.
type CurrentJob struct {
	OFID     string `json:"of_id"`
	Format   string `json:"format"`
	DueDate  string `json:"due_date"`
	Priority int    `json:"priority"`
}

// BreakdownStatus reports the outage in progress, if any, and the last
// measured one.
type BreakdownStatus struct {
	DownStartTime            *string `json:"down_start_time"`
	DownReason               string  `json:"down_reason"`
	LastBreakdownDurationMin int     `json:"last_breakdown_duration_min"`
	ReplanThresholdMin       int     `json:"replan_threshold_min"`
}

// KPICounters are the minute buckets accrued since construction. Every
// elapsed machine minute lands in exactly one bucket.
type KPICounters struct {
	DowntimeMin    int `json:"downtime_min"`
	StoppedMin     int `json:"stopped_min"`
	IdleMin        int `json:"idle_min"`
	ProducingMin   int `json:"producing_min"`
	CompletedCount int `json:"completed_count"`
}

// State returns a full snapshot of machine state, progress, breakdown
// status, and KPI counters.
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		Now:                     FormatMinute(e.now),
		IsRunning:               e.isRunning,
		IsDown:                  e.isDown,
		SpeedFactor:             e.speedFactor,
		CurrentFormat:           optString(e.currentFormat),
		RemainingSetupMin:       e.remainingSetupMin,
		RemainingWorkNominalMin: e.remainingWorkNominalMin,
		QueueSize:               len(e.queue),
		PoolRemaining:           len(e.pool),
		Breakdown: BreakdownStatus{
			DownReason:               e.downReason,
			LastBreakdownDurationMin: e.lastBreakdownDurationMin,
			ReplanThresholdMin:       e.cfg.BreakdownReplanThresholdMin,
		},
		KPI: KPICounters{
			DowntimeMin:    e.downtimeMin,
			StoppedMin:     e.stoppedMin,
			IdleMin:        e.idleMin,
			ProducingMin:   e.producingMin,
			CompletedCount: len(e.completed),
		},
	}
	if e.currentJob != nil {
		s.CurrentJob = &CurrentJob{
			OFID:     e.currentJob.OFID,
			Format:   e.currentJob.Format,
			DueDate:  FormatMinute(e.currentJob.DueDate),
			Priority: e.currentJob.Priority,
		}
	}
	if !e.downStartTime.IsZero() {
		s.Breakdown.DownStartTime = optString(FormatMinute(e.downStartTime))
	}
	return s
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
