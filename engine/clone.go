package engine

// Clone returns a deep, independent copy of the engine. The clone has
// its own mutex and order copies; only the read-only setup matrix and
// the logger are shared. Advancing a clone never touches the original.
func (e *Engine) Clone() *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := &Engine{
		cfg:    e.cfg,
		matrix: e.matrix,
		logger: e.logger,

		now:         e.now,
		isRunning:   e.isRunning,
		isDown:      e.isDown,
		speedFactor: e.speedFactor,

		currentFormat: e.currentFormat,

		remainingSetupMin:       e.remainingSetupMin,
		remainingWorkNominalMin: e.remainingWorkNominalMin,
		workAcc:                 e.workAcc,

		downStartTime:            e.downStartTime,
		downReason:               e.downReason,
		lastBreakdownDurationMin: e.lastBreakdownDurationMin,

		downtimeMin:  e.downtimeMin,
		stoppedMin:   e.stoppedMin,
		idleMin:      e.idleMin,
		producingMin: e.producingMin,
	}

	c.pool = copyOrders(e.pool)
	c.queue = copyOrders(e.queue)
	if e.currentJob != nil {
		cp := *e.currentJob
		c.currentJob = &cp
	}
	c.completed = append([]CompletedOrder(nil), e.completed...)
	c.journal = append([]JournalEntry(nil), e.journal...)
	return c
}
