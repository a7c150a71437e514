package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tecpap/lineplan/errors"
)

// errUnknownEventType is journaled verbatim as the ignore reason.
var errUnknownEventType = errors.New("unknown_type")

// HandleEvent applies an event received directly at the machine at the
// current clock time. Source tags the journal entry; empty means
// "events".
func (e *Engine) HandleEvent(ev Event, source string) JournalEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handleEventLocked(ev, source, e.now)
}

// HandleIncoming first advances the clock to the transport receive
// time, dispatching along the way, then applies the event.
func (e *Engine) HandleIncoming(inc IncomingEvent) JournalEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.advanceTo(inc.ReceiveTime)
	e.refreshQueueFromPool()
	e.startNextIfPossible()

	source := inc.Source
	if source == "" {
		source = "simulation"
	}
	return e.handleEventLocked(inc.Event, source, inc.ReceiveTime)
}

// handleEventLocked is the single path every event goes through. It
// settles the clock against the event timestamp, applies the lateness
// policy, mutates state, decides on a replan, dispatches, and records
// the journal entry.
func (e *Engine) handleEventLocked(ev Event, source string, receivedAt time.Time) JournalEntry {
	if source == "" {
		source = "events"
	}
	entry := JournalEntry{
		ReceivedAt:      FormatMinute(receivedAt),
		Source:          source,
		EngineNowBefore: FormatMinute(e.now),
		EventTimestamp:  FormatMinute(ev.Timestamp),
		Type:            ev.Type,
		Value:           ev.Value,
		Status:          StatusOK,
	}

	// Future event: the machine lives through the gap first.
	if ev.Timestamp.After(e.now) {
		e.advanceTo(ev.Timestamp)
		e.refreshQueueFromPool()
	}

	if ev.Timestamp.Before(e.now) {
		lateness := minutesBetween(ev.Timestamp, e.now)
		if lateness > e.cfg.MaxEventLatenessMin {
			entry.Status = StatusIgnored
			entry.Reason = fmt.Sprintf("late event too old (%dmin > %d)", lateness, e.cfg.MaxEventLatenessMin)
			return e.finalizeEntry(entry)
		}
		if e.cfg.LatePolicy == LateIgnore {
			entry.Status = StatusIgnored
			entry.Reason = fmt.Sprintf("late event ignored by policy (lateness=%dmin)", lateness)
			return e.finalizeEntry(entry)
		}
		entry.LateApplied = true
	}

	breakdownDur, err := e.applyEvent(ev)
	if err != nil {
		entry.Status = StatusIgnored
		entry.Reason = err.Error()
		return e.finalizeEntry(entry)
	}
	entry.BreakdownDurationMin = breakdownDur

	e.refreshQueueFromPool()

	replanned, reason := e.decideReplan(ev, breakdownDur)
	entry.Replanned = replanned
	entry.ReplanReason = reason

	e.startNextIfPossible()

	return e.finalizeEntry(entry)
}

// finalizeEntry stamps the post-event clock, appends to the journal,
// and logs the outcome.
func (e *Engine) finalizeEntry(entry JournalEntry) JournalEntry {
	entry.EngineNowAfter = FormatMinute(e.now)
	e.journal = append(e.journal, entry)

	switch {
	case entry.Status == StatusIgnored:
		e.logger.Infow("event ignored",
			"type", entry.Type,
			"source", entry.Source,
			"reason", entry.Reason,
			"event_timestamp", entry.EventTimestamp,
		)
	case entry.Replanned:
		e.logger.Infow("event applied, queue replanned",
			"type", entry.Type,
			"source", entry.Source,
			"replan_reason", entry.ReplanReason,
			"queue_size", len(e.queue),
		)
	default:
		e.logger.Debugw("event applied",
			"type", entry.Type,
			"source", entry.Source,
			"late_applied", entry.LateApplied,
		)
	}
	return entry
}

// applyEvent mutates machine state for one event. The int result is
// the measured breakdown duration when the event closes a breakdown,
// nil otherwise. An error means the event must be ignored with no
// state left behind.
func (e *Engine) applyEvent(ev Event) (*int, error) {
	switch ev.Type {
	case EventShiftStart:
		e.isRunning = true

	case EventShiftStop:
		e.isRunning = false

	case EventSpeedChange:
		// Unparseable or non-positive factors are silently dropped and
		// the previous speed stays in force.
		if v, err := strconv.ParseFloat(strings.TrimSpace(ev.Value), 64); err == nil && v > 0 {
			e.speedFactor = v
		}

	case EventUrgentOrder:
		wo, err := ParseUrgentPayload(ev.Value, e.now)
		if err != nil {
			return nil, err
		}
		e.queue = append(e.queue, wo)
		sortQueue(e.queue)

	case EventBreakdownStart:
		e.isDown = true
		// Repeated starts keep the original outage clock.
		if e.downStartTime.IsZero() {
			e.downStartTime = e.now
			e.downReason = ev.Value
		}

	case EventBreakdownEnd:
		e.isDown = false
		if e.downStartTime.IsZero() {
			d := 0
			return &d, nil
		}
		d := minutesBetween(e.downStartTime, e.now)
		e.lastBreakdownDurationMin = max(0, d)
		e.downStartTime = time.Time{}
		e.downReason = ""
		return &d, nil

	default:
		return nil, errUnknownEventType
	}
	return nil, nil
}
