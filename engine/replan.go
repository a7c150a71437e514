package engine

import (
	"fmt"
	"time"
)

// Scoring weights for the greedy replanner. Lateness dominates; setup
// discourages format churn; high priority pulls orders forward.
const (
	weightLateness = 2.5
	weightSetup    = 0.8
	weightPriority = 20.0

	// minSpeedFactor guards the work-time division against a zero
	// speed snapshot.
	minSpeedFactor = 1e-6

	replanCauseBreakdown = "BREAKDOWN_MAJOR"
	replanCauseUrgent    = "URGENT_ORDER"
	replanCauseSpeed     = "SPEED_CHANGE"
)

// decideReplan maps an applied event to a replan decision and the
// journal reason for it. Only breakdown ends, urgent orders, and speed
// changes ever trigger a replan; a breakdown start has no measured
// duration yet and never does.
func (e *Engine) decideReplan(ev Event, breakdownDur *int) (bool, string) {
	switch ev.Type {
	case EventBreakdownStart, EventBreakdownEnd:
		if breakdownDur == nil {
			return false, "breakdown_start_no_duration"
		}
		if *breakdownDur < e.cfg.BreakdownReplanThresholdMin {
			return false, fmt.Sprintf("breakdown_duration<%dmin", e.cfg.BreakdownReplanThresholdMin)
		}
		changed := e.maybeReplan(replanCauseBreakdown)
		return changed, fmt.Sprintf("breakdown_duration>=%dmin", e.cfg.BreakdownReplanThresholdMin)

	case EventUrgentOrder:
		return e.maybeReplan(replanCauseUrgent), "urgent_order"

	case EventSpeedChange:
		return e.maybeReplan(replanCauseSpeed), "speed_change"
	}
	return false, "not_critical"
}

// maybeReplan builds the greedy candidate order and adopts it when the
// acceptance rules allow. A candidate is adopted when it improves
// total lateness, when the cause is an urgent order, or when lateness
// has drifted past the configured tolerance. Returns whether the
// queue changed.
func (e *Engine) maybeReplan(cause string) bool {
	before := e.totalLateness(e.queue)
	candidate := e.replanQueue(e.queue)
	after := e.totalLateness(candidate)

	if sameOrder(e.queue, candidate) {
		return false
	}
	if after < before {
		e.queue = candidate
		return true
	}
	if cause == replanCauseUrgent {
		e.queue = candidate
		return true
	}
	if after-before > e.cfg.ReplanThresholdTotalLateMin {
		e.queue = candidate
		return true
	}
	return false
}

// totalLateness simulates the queue running in order from the current
// machine state and sums whole minutes of lateness against due dates.
// The speed factor is frozen at its current value for the whole
// projection.
func (e *Engine) totalLateness(queue []*WorkOrder) int {
	simNow := e.now
	simFmt := e.currentFormat
	speed := e.speedFactor
	if speed < minSpeedFactor {
		speed = minSpeedFactor
	}

	total := 0
	for _, wo := range queue {
		setup := e.matrix.Minutes(simFmt, wo.Format)
		realWork := int(float64(wo.NominalDurationMin) / speed)
		finish := simNow.Add(time.Duration(setup+realWork) * time.Minute)
		if late := minutesBetween(wo.DueDate, finish); late > 0 {
			total += late
		}
		simNow = finish
		simFmt = wo.Format
	}
	return total
}

// replanQueue greedily reorders the queue: repeatedly pick the
// lowest-scoring order, then advance a simulated clock and format past
// it. The first minimum wins score ties, so the result is stable.
func (e *Engine) replanQueue(queue []*WorkOrder) []*WorkOrder {
	remaining := make([]*WorkOrder, len(queue))
	copy(remaining, queue)

	ordered := make([]*WorkOrder, 0, len(queue))
	simNow := e.now
	simFmt := e.currentFormat

	speed := e.speedFactor
	if speed < minSpeedFactor {
		speed = minSpeedFactor
	}

	for len(remaining) > 0 {
		bestIdx := 0
		bestScore := e.score(simNow, simFmt, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if s := e.score(simNow, simFmt, remaining[i]); s < bestScore {
				bestIdx, bestScore = i, s
			}
		}

		best := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		ordered = append(ordered, best)

		setup := e.matrix.Minutes(simFmt, best.Format)
		realWork := int(float64(best.NominalDurationMin) / speed)
		simNow = simNow.Add(time.Duration(setup+realWork) * time.Minute)
		simFmt = best.Format
	}
	return ordered
}

// score rates one order as the next pick from a simulated machine
// state. Lower is better.
func (e *Engine) score(simNow time.Time, simFmt string, wo *WorkOrder) float64 {
	speed := e.speedFactor
	if speed < minSpeedFactor {
		speed = minSpeedFactor
	}
	setup := e.matrix.Minutes(simFmt, wo.Format)
	realWork := int(float64(wo.NominalDurationMin) / speed)
	finish := simNow.Add(time.Duration(setup+realWork) * time.Minute)

	late := minutesBetween(wo.DueDate, finish)
	if late < 0 {
		late = 0
	}
	return weightLateness*float64(late) + weightSetup*float64(setup) - weightPriority*float64(wo.Priority)
}
