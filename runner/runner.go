// Package runner drives the engine through a production window against
// wall-clock time at a configurable compression ratio. A background
// ticker converts elapsed wall seconds into whole simulated minutes,
// advances the engine, and emits an hourly snapshot each time simulated
// time passes an hour mark.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
	"github.com/tecpap/lineplan/internal/util"
)

const (
	// DefaultCompressToSeconds maps the whole window to ten wall minutes.
	DefaultCompressToSeconds = 600
	// DefaultTickSeconds is the wall-clock update period.
	DefaultTickSeconds = 0.5

	minTickSeconds  = 0.1
	stopJoinTimeout = 2 * time.Second
)

// Lifecycle statuses returned by Start and Stop.
const (
	StatusStarted        = "started"
	StatusAlreadyRunning = "already_running"
	StatusNotRunning     = "not_running"
	StatusStopped        = "stopped"
)

// runStatusFinished marks a run that reached day_end on its own.
const runStatusFinished = "finished"

// SourceRealtimeAuto tags journal entries generated by the runner
// itself rather than by an operator or a dataset.
const SourceRealtimeAuto = "realtime/auto"

// Config describes one compressed run: the simulated window and how
// fast wall-clock time consumes it.
type Config struct {
	DayStart          time.Time `json:"day_start"`
	DayEnd            time.Time `json:"day_end"`
	CompressToSeconds int       `json:"compress_to_seconds"`
	TickSeconds       float64   `json:"tick_seconds"`
}

// Validate rejects windows the runner cannot play.
func (c Config) Validate() error {
	if !c.DayEnd.After(c.DayStart) {
		return errors.New("day_end must be > day_start")
	}
	if c.CompressToSeconds <= 0 {
		return errors.New("compress_to_seconds must be > 0")
	}
	if c.TickSeconds <= 0 {
		return errors.New("tick_seconds must be > 0")
	}
	return nil
}

// Status is the outcome of a lifecycle call.
type Status struct {
	Status string `json:"status"`
}

// Broadcaster pushes live frames to connected clients as simulated
// time advances. Implementations must not block the runner.
type Broadcaster interface {
	BroadcastState(st State)
	BroadcastReport(rep engine.HourlyReport)
}

// Recorder persists run lifecycle and hourly snapshots. Recorder
// failures are logged and never interrupt the run.
type Recorder interface {
	StartRun(cfg Config) (string, error)
	FinishRun(runID, status string) error
	SaveReport(runID string, rep engine.HourlyReport) error
}

// Runner owns the compressed-clock goroutine. At most one run is
// active at a time; Start while running is rejected.
type Runner struct {
	engine *engine.Engine
	logger *zap.SugaredLogger

	// Guarded state
	mu          sync.Mutex
	running     bool
	cfg         *Config
	runID       string
	reports     []engine.HourlyReport
	nextReport  time.Time
	broadcaster Broadcaster
	recorder    Recorder

	// Control
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a runner around the given engine. A nil logger silences
// the runner.
func New(eng *engine.Engine, logger *zap.SugaredLogger) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{engine: eng, logger: logger}
}

// SetBroadcaster attaches a live frame sink. Call before Start.
func (r *Runner) SetBroadcaster(b Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcaster = b
}

// SetRecorder attaches a persistence sink. Call before Start.
func (r *Runner) SetRecorder(rec Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// IsRunning reports whether a run is in progress.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start rewinds the engine to cfg.DayStart, opens the shift with a
// synthetic SHIFT_START, clears accumulated reports, and spawns the
// ticker goroutine.
func (r *Runner) Start(cfg Config) Status {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Status{Status: StatusAlreadyRunning}
	}

	c := cfg
	r.cfg = &c
	r.reports = nil
	r.nextReport = cfg.DayStart

	// Reset the machine to the start of the window and open the shift.
	r.engine.SetTime(cfg.DayStart)
	r.engine.HandleEvent(engine.Event{
		Timestamp: cfg.DayStart,
		Type:      engine.EventShiftStart,
	}, SourceRealtimeAuto)

	r.runID = ""
	if r.recorder != nil {
		id, err := r.recorder.StartRun(cfg)
		if err != nil {
			r.logger.Warnw("Failed to record run start", "error", err)
		} else {
			r.runID = id
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.loop(ctx, c)
	r.mu.Unlock()

	r.logger.Infow("Realtime run started",
		"day_start", engine.FormatMinute(cfg.DayStart),
		"day_end", engine.FormatMinute(cfg.DayEnd),
		"compress_to_seconds", cfg.CompressToSeconds,
		"tick_seconds", cfg.TickSeconds,
	)
	return Status{Status: StatusStarted}
}

// Stop signals the ticker goroutine and waits for it to exit, with a
// bounded join so a wedged loop cannot hang the caller.
func (r *Runner) Stop() Status {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return Status{Status: StatusNotRunning}
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		r.logger.Warnw("Realtime loop did not stop in time", "timeout", stopJoinTimeout)
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return Status{Status: StatusStopped}
}

// RunnerState is the driver portion of State.
type RunnerState struct {
	Running           bool     `json:"running"`
	DayStart          *string  `json:"day_start"`
	DayEnd            *string  `json:"day_end"`
	CompressToSeconds *int     `json:"compress_to_seconds"`
	TickSeconds       *float64 `json:"tick_seconds"`
	NextReportTime    *string  `json:"next_report_time"`
}

// State pairs the driver status with a full engine snapshot.
type State struct {
	Runner RunnerState     `json:"runner"`
	Engine engine.Snapshot `json:"engine"`
}

// State reports the runner configuration alongside the engine state.
// Window fields are null until the first Start.
func (r *Runner) State() State {
	st := r.engine.State()

	r.mu.Lock()
	defer r.mu.Unlock()

	rs := RunnerState{Running: r.running}
	if r.cfg != nil {
		rs.DayStart = util.Ptr(engine.FormatMinute(r.cfg.DayStart))
		rs.DayEnd = util.Ptr(engine.FormatMinute(r.cfg.DayEnd))
		rs.CompressToSeconds = util.Ptr(r.cfg.CompressToSeconds)
		rs.TickSeconds = util.Ptr(r.cfg.TickSeconds)
	}
	if !r.nextReport.IsZero() {
		rs.NextReportTime = util.Ptr(engine.FormatMinute(r.nextReport))
	}
	return State{Runner: rs, Engine: st}
}

// HourlyReports returns the snapshots accumulated by the current or
// most recent run.
func (r *Runner) HourlyReports() []engine.HourlyReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.HourlyReport, len(r.reports))
	copy(out, r.reports)
	return out
}

func (r *Runner) loop(ctx context.Context, cfg Config) {
	defer r.wg.Done()

	totalSimMin := int(cfg.DayEnd.Sub(cfg.DayStart) / time.Minute)
	totalRealSec := max(1, cfg.CompressToSeconds)
	tick := cfg.TickSeconds
	if tick < minTickSeconds {
		tick = minTickSeconds
	}
	simMinutesPerTick := float64(totalSimMin) / float64(totalRealSec) * tick

	ticker := time.NewTicker(time.Duration(tick * float64(time.Second)))
	defer ticker.Stop()

	acc := 0.0
	for {
		select {
		case <-ctx.Done():
			r.finish(StatusStopped)
			return
		case <-ticker.C:
			if !r.advanceTick(cfg, simMinutesPerTick, &acc) {
				r.finish(runStatusFinished)
				return
			}
		}
	}
}

// advanceTick applies one tick's worth of simulated minutes, carrying
// the fractional remainder forward. It returns false once simulated
// time has reached the end of the window.
func (r *Runner) advanceTick(cfg Config, simMinutesPerTick float64, acc *float64) bool {
	nowSim := r.engine.Now()
	if !nowSim.Before(cfg.DayEnd) {
		return false
	}

	*acc += simMinutesPerTick
	step := int(*acc)
	if step <= 0 {
		return true
	}
	*acc -= float64(step)

	r.engine.SetTime(nowSim.Add(time.Duration(step) * time.Minute))
	r.pushDueReports(cfg)

	r.mu.Lock()
	b := r.broadcaster
	r.mu.Unlock()
	if b != nil {
		b.BroadcastState(r.State())
	}
	return true
}

// pushDueReports emits one snapshot for every hour mark simulated time
// has passed since the last emission, stopping once the next mark
// would fall beyond the end of the window.
func (r *Runner) pushDueReports(cfg Config) {
	for {
		r.mu.Lock()
		next := r.nextReport
		r.mu.Unlock()

		if r.engine.Now().Before(next) {
			return
		}

		rep := r.engine.HourlySnapshot()

		r.mu.Lock()
		r.reports = append(r.reports, rep)
		r.nextReport = next.Add(time.Hour)
		last := r.nextReport.After(cfg.DayEnd)
		runID := r.runID
		rc := r.recorder
		b := r.broadcaster
		r.mu.Unlock()

		if rc != nil && runID != "" {
			if err := rc.SaveReport(runID, rep); err != nil {
				r.logger.Warnw("Failed to persist hourly report", "run_id", runID, "error", err)
			}
		}
		if b != nil {
			b.BroadcastReport(rep)
		}
		r.logger.Debugw("Hourly report emitted",
			"time", rep.Time,
			"queue_size", rep.QueueSize,
			"completed", rep.CompletedCount,
		)

		if last {
			return
		}
	}
}

// finish marks the run over and closes out the persisted run row.
func (r *Runner) finish(status string) {
	r.mu.Lock()
	r.running = false
	runID := r.runID
	r.runID = ""
	rc := r.recorder
	r.mu.Unlock()

	if rc != nil && runID != "" {
		if err := rc.FinishRun(runID, status); err != nil {
			r.logger.Warnw("Failed to record run end", "run_id", runID, "error", err)
		}
	}
	r.logger.Infow("Realtime run ended",
		"status", status,
		"engine_now", engine.FormatMinute(r.engine.Now()),
		"mem_used_pct", memUsedPercent(),
	)
}

// memUsedPercent samples host memory pressure for progress logs.
func memUsedPercent() float64 {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return v.UsedPercent
}
