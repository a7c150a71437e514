package engine

import "time"

// TimeStatus is the acknowledgement returned by SetTime.
type TimeStatus struct {
	Status string `json:"status"`
	Now    string `json:"now"`
}

// SetTime moves the machine clock to target and dispatches any work
// that becomes possible there. Moving forward advances minute by
// minute so counters and job progress accrue along the way; moving
// backward only rewinds the clock and never un-accrues anything.
func (e *Engine) SetTime(target time.Time) TimeStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceTo(target)
	e.refreshQueueFromPool()
	e.startNextIfPossible()
	return TimeStatus{Status: "ok", Now: FormatMinute(e.now)}
}

// advanceTo steps the clock one whole minute at a time up to target,
// then snaps to target to absorb any sub-minute remainder.
func (e *Engine) advanceTo(target time.Time) {
	if !target.After(e.now) {
		e.now = target
		return
	}
	steps := minutesBetween(e.now, target)
	for i := 0; i < steps; i++ {
		e.stepOneMinute()
	}
	e.now = target
}

// stepOneMinute advances exactly one minute of machine time. The
// minute is charged to exactly one KPI bucket, checked in order:
// down, stopped, idle, producing. Setup and work only progress on
// producing minutes.
func (e *Engine) stepOneMinute() {
	switch {
	case e.isDown:
		e.downtimeMin++
	case !e.isRunning:
		e.stoppedMin++
	case e.currentJob == nil:
		e.idleMin++
	default:
		e.producingMin++
	}

	if e.isDown || !e.isRunning || e.currentJob == nil {
		e.now = e.now.Add(time.Minute)
		return
	}

	if e.remainingSetupMin > 0 {
		e.remainingSetupMin--
		e.now = e.now.Add(time.Minute)
		return
	}

	e.workAcc += e.speedFactor
	if done := int(e.workAcc); done > 0 {
		e.workAcc -= float64(done)
		e.remainingWorkNominalMin = max(0, e.remainingWorkNominalMin-done)
	}

	e.now = e.now.Add(time.Minute)

	if e.remainingSetupMin == 0 && e.remainingWorkNominalMin == 0 {
		e.finishCurrentJob()
	}
}

// finishCurrentJob retires the order on the machine. The machine keeps
// the finished order's format as its current tooling.
func (e *Engine) finishCurrentJob() {
	job := e.currentJob
	e.currentFormat = job.Format
	e.completed = append(e.completed, CompletedOrder{
		OFID:       job.OFID,
		FinishedAt: FormatMinute(e.now),
	})
	e.currentJob = nil
	e.workAcc = 0

	e.logger.Infow("order completed",
		"of_id", job.OFID,
		"format", job.Format,
		"finished_at", FormatMinute(e.now),
		"completed_count", len(e.completed),
	)
}

// refreshQueueFromPool releases pool orders whose created_at has been
// reached into the queue, then restores the standing queue order of
// due date ascending, priority descending. Orders whose id is already
// queued or on the machine stay pooled.
func (e *Engine) refreshQueueFromPool() {
	existing := make(map[string]bool, len(e.queue)+1)
	for _, wo := range e.queue {
		existing[wo.OFID] = true
	}
	if e.currentJob != nil {
		existing[e.currentJob.OFID] = true
	}

	remaining := e.pool[:0]
	for _, wo := range e.pool {
		if !wo.CreatedAt.After(e.now) && !existing[wo.OFID] {
			e.queue = append(e.queue, wo)
			existing[wo.OFID] = true
			continue
		}
		remaining = append(remaining, wo)
	}
	e.pool = remaining

	sortQueue(e.queue)
}

// startNextIfPossible puts the head of the queue on the machine when
// the machine is free, up, and running. Setup is charged from the
// current tooled format.
func (e *Engine) startNextIfPossible() {
	if e.currentJob != nil {
		return
	}
	if e.isDown || !e.isRunning {
		return
	}
	if len(e.queue) == 0 {
		return
	}

	wo := e.queue[0]
	e.queue = e.queue[1:]
	e.currentJob = wo
	e.remainingSetupMin = e.matrix.Minutes(e.currentFormat, wo.Format)
	e.remainingWorkNominalMin = wo.NominalDurationMin
	e.workAcc = 0

	e.logger.Debugw("order started",
		"of_id", wo.OFID,
		"format", wo.Format,
		"setup_min", e.remainingSetupMin,
		"work_nominal_min", e.remainingWorkNominalMin,
	)
}
