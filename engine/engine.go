// Package engine implements a minute-granular scheduler for a single
// production machine. The engine consumes shop-floor events, releases
// work orders into a dispatch queue as they become known, tracks setup
// and production progress, and replans the queue when a disruption is
// severe enough to warrant it.
package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// LatePolicy says what to do with events that arrive after their own
// timestamp has already passed on the machine clock.
type LatePolicy string

const (
	// LateApplyNow applies a late event at the current machine time.
	LateApplyNow LatePolicy = "APPLY_NOW"
	// LateIgnore drops late events, journaling them as ignored.
	LateIgnore LatePolicy = "IGNORE"
)

// Config tunes event acceptance and replan triggering.
type Config struct {
	// MaxEventLatenessMin is the oldest an event may be, in minutes,
	// and still be considered at all.
	MaxEventLatenessMin int `json:"max_event_lateness_min" mapstructure:"max_event_lateness_min"`

	// LatePolicy decides the fate of events late by less than the cap.
	LatePolicy LatePolicy `json:"late_policy" mapstructure:"late_policy"`

	// ReplanThresholdTotalLateMin is the queue-wide lateness drift, in
	// minutes, beyond which a changed greedy plan is adopted even when
	// it does not improve total lateness.
	ReplanThresholdTotalLateMin int `json:"replan_threshold_total_late_min" mapstructure:"replan_threshold_total_late_min"`

	// BreakdownReplanThresholdMin separates micro-stops from major
	// breakdowns. Only breakdowns at least this long trigger a replan.
	BreakdownReplanThresholdMin int `json:"breakdown_replan_threshold_min" mapstructure:"breakdown_replan_threshold_min"`
}

// DefaultConfig returns the standing shop tolerances.
func DefaultConfig() Config {
	return Config{
		MaxEventLatenessMin:         120,
		LatePolicy:                  LateApplyNow,
		ReplanThresholdTotalLateMin: 30,
		BreakdownReplanThresholdMin: 30,
	}
}

// Engine is the machine state machine. All exported methods are safe
// for concurrent use; a single mutex serializes every entry point.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	matrix *SetupMatrix
	logger *zap.SugaredLogger

	// Machine clock and flags
	now         time.Time
	isRunning   bool
	isDown      bool
	speedFactor float64

	// Format currently tooled on the machine. Empty until the first
	// order completes.
	currentFormat string

	// Orders not yet released (created_at still in the future), the
	// dispatch queue, and the order on the machine.
	pool       []*WorkOrder
	queue      []*WorkOrder
	currentJob *WorkOrder

	// Progress on the current job. Work is counted in nominal minutes;
	// the accumulator carries fractional progress at non-unit speed.
	remainingSetupMin       int
	remainingWorkNominalMin int
	workAcc                 float64

	// Breakdown bookkeeping. downStartTime is zero while the machine
	// is up.
	downStartTime            time.Time
	downReason               string
	lastBreakdownDurationMin int

	// KPI counters, whole minutes each.
	downtimeMin  int
	stoppedMin   int
	idleMin      int
	producingMin int

	completed []CompletedOrder
	journal   []JournalEntry
}

// New builds an engine over a pool of work orders and a setup matrix.
// The clock starts at the earliest created_at in the pool so no order
// is visible before it exists; an empty pool starts at wall-clock now.
func New(orders []*WorkOrder, matrix *SetupMatrix, cfg Config, log *zap.SugaredLogger) *Engine {
	if matrix == nil {
		matrix = NewSetupMatrix()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.LatePolicy == "" {
		cfg.LatePolicy = LateApplyNow
	}

	e := &Engine{
		cfg:         cfg,
		matrix:      matrix,
		logger:      log,
		speedFactor: 1.0,
		pool:        make([]*WorkOrder, len(orders)),
	}
	copy(e.pool, orders)

	e.now = time.Now().Truncate(time.Minute)
	for i, wo := range e.pool {
		if i == 0 || wo.CreatedAt.Before(e.now) {
			e.now = wo.CreatedAt
		}
	}

	e.refreshQueueFromPool()
	return e
}

// Config returns the engine's acceptance and replan tolerances.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Now returns the current machine time.
func (e *Engine) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// SetupMatrix returns the active changeover matrix.
func (e *Engine) SetupMatrix() *SetupMatrix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matrix
}

// SwapSetupMatrix replaces the changeover matrix for all future
// decisions. Setup already charged to the current job keeps its
// remaining time.
func (e *Engine) SwapSetupMatrix(m *SetupMatrix) {
	if m == nil {
		m = NewSetupMatrix()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matrix = m
}

// AddWorkOrder registers a new order. It joins the dispatch queue as
// soon as the machine clock has reached its creation time.
func (e *Engine) AddWorkOrder(wo *WorkOrder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool = append(e.pool, wo)
	e.refreshQueueFromPool()
	e.logger.Debugw("work order registered",
		"of_id", wo.OFID,
		"format", wo.Format,
		"due_date", FormatMinute(wo.DueDate),
		"queue_size", len(e.queue),
	)
}

// QueueIDs returns the order ids in current dispatch order.
func (e *Engine) QueueIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, len(e.queue))
	for i, wo := range e.queue {
		ids[i] = wo.OFID
	}
	return ids
}

// QueueOrders returns copies of the first orders in dispatch order, up
// to limit. Limits below one return an empty slice.
func (e *Engine) QueueOrders(limit int) []WorkOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit < 0 {
		limit = 0
	}
	if limit > len(e.queue) {
		limit = len(e.queue)
	}
	out := make([]WorkOrder, limit)
	for i := 0; i < limit; i++ {
		out[i] = *e.queue[i]
	}
	return out
}

// HasWorkOrder reports whether an order with the given id exists
// anywhere in the engine: unreleased, queued, on the machine, or
// already completed.
func (e *Engine) HasWorkOrder(ofID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, wo := range e.pool {
		if wo.OFID == ofID {
			return true
		}
	}
	for _, wo := range e.queue {
		if wo.OFID == ofID {
			return true
		}
	}
	if e.currentJob != nil && e.currentJob.OFID == ofID {
		return true
	}
	for _, c := range e.completed {
		if c.OFID == ofID {
			return true
		}
	}
	return false
}

// Completed returns the finished orders in completion order.
func (e *Engine) Completed() []CompletedOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CompletedOrder, len(e.completed))
	copy(out, e.completed)
	return out
}
