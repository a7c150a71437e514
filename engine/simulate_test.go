package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simIncoming(t *testing.T, receive, ts, typ, value string) IncomingEvent {
	t.Helper()
	return IncomingEvent{
		ReceiveTime: mt(t, receive),
		Event:       Event{Timestamp: mt(t, ts), Type: typ, Value: value},
	}
}

func TestSimulateEmptyDay(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")
	e := newTestEngine(t, testOrder("A", "F1", start, end, 1, 60))

	res := e.SimulateDay(start, end, nil, SimOptions{})

	assert.Equal(t, "2026-01-05T08:00", res.DayStart)
	assert.Equal(t, "2026-01-05T16:00", res.DayEnd)
	assert.Equal(t, SimStats{}, res.Stats)

	// Nothing ever starts the shift: the whole day is stopped time.
	assert.Equal(t, 0, res.LastState.KPI.ProducingMin)
	assert.Equal(t, 480, res.LastState.KPI.StoppedMin)
	assert.Equal(t, 0, res.LastState.KPI.CompletedCount)
	assert.False(t, res.LastState.IsRunning)

	require.Len(t, res.Reports, 9, "one report per hour, 08:00 through 16:00")
	assert.Equal(t, "2026-01-05T08:00", res.Reports[0].Time)
	assert.Equal(t, "2026-01-05T16:00", res.Reports[8].Time)
	assert.Empty(t, res.EventLogTail)

	// The live engine never moved.
	assert.Equal(t, "2026-01-05T08:00", e.State().Now)
	assert.Equal(t, 0, e.State().KPI.StoppedMin)
}

func TestSimulateSimpleDay(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")
	e := newTestEngine(t, testOrder("A", "F1", start, end, 1, 60))

	res := e.SimulateDay(start, end, []IncomingEvent{
		simIncoming(t, "2026-01-05T08:00", "2026-01-05T08:00", EventShiftStart, ""),
	}, SimOptions{})

	assert.Equal(t, SimStats{EventsReceived: 1, EventsApplied: 1}, res.Stats)

	// A runs 08:00 to 09:00, then the machine idles out the day.
	assert.Equal(t, 1, res.LastState.KPI.CompletedCount)
	assert.Equal(t, 60, res.LastState.KPI.ProducingMin)
	assert.Equal(t, 420, res.LastState.KPI.IdleMin)
	assert.Equal(t, 0, res.LastState.KPI.StoppedMin)

	// The completion lands inside the first reporting hour.
	require.Len(t, res.Reports, 9)
	assert.Equal(t, 0, res.Reports[0].CompletedCount)
	assert.Equal(t, 1, res.Reports[1].CompletedCount)
	require.NotNil(t, res.Reports[1].Machine.CurrentFormat)
	assert.Equal(t, "F1", *res.Reports[1].Machine.CurrentFormat)

	require.Len(t, res.EventLogTail, 1)
	assert.Equal(t, StatusOK, res.EventLogTail[0].Status)
}

func TestSimulateMicroBreakdown(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")
	e := newTestEngine(t, testOrder("A", "F1", start, end, 1, 60))

	res := e.SimulateDay(start, end, []IncomingEvent{
		simIncoming(t, "2026-01-05T08:00", "2026-01-05T08:00", EventShiftStart, ""),
		simIncoming(t, "2026-01-05T08:30", "2026-01-05T08:30", EventBreakdownStart, "jam"),
		simIncoming(t, "2026-01-05T08:45", "2026-01-05T08:45", EventBreakdownEnd, ""),
	}, SimOptions{})

	assert.Equal(t, SimStats{EventsReceived: 3, EventsApplied: 3}, res.Stats)
	assert.Zero(t, res.Stats.Replans, "15 minutes is a micro stop")

	// The outage pushes completion from 09:00 to 09:15.
	assert.Equal(t, 1, res.LastState.KPI.CompletedCount)
	assert.Equal(t, 60, res.LastState.KPI.ProducingMin)
	assert.Equal(t, 15, res.LastState.KPI.DowntimeMin)
	assert.Equal(t, 405, res.LastState.KPI.IdleMin)
	assert.Equal(t, 15, res.LastState.Breakdown.LastBreakdownDurationMin)

	last := res.EventLogTail[len(res.EventLogTail)-1]
	require.NotNil(t, last.BreakdownDurationMin)
	assert.Equal(t, 15, *last.BreakdownDurationMin)
	assert.False(t, last.Replanned)
	assert.Equal(t, "breakdown_duration<30min", last.ReplanReason)
}

func TestSimulateMajorBreakdownReplans(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")

	e := New([]*WorkOrder{
		testOrder("RUN", "F1", start, mt(t, "2026-01-05T09:00"), 1, 240),
		testOrder("X", "F1", start, mt(t, "2026-01-05T10:00"), 1, 60),
		testOrder("Y", "F1", start, mt(t, "2026-01-05T11:30"), 1, 45),
	}, testMatrix(), DefaultConfig(), nil)

	res := e.SimulateDay(start, end, []IncomingEvent{
		simIncoming(t, "2026-01-05T08:00", "2026-01-05T08:00", EventShiftStart, ""),
		simIncoming(t, "2026-01-05T08:30", "2026-01-05T08:30", EventBreakdownStart, "motor"),
		simIncoming(t, "2026-01-05T09:15", "2026-01-05T09:15", EventBreakdownEnd, ""),
	}, SimOptions{})

	assert.Equal(t, 3, res.Stats.EventsApplied)
	assert.Equal(t, 1, res.Stats.Replans)
	assert.Equal(t, 1, res.Stats.BreakdownReplans)
	assert.Equal(t, 45, res.LastState.Breakdown.LastBreakdownDurationMin)

	last := res.EventLogTail[len(res.EventLogTail)-1]
	assert.True(t, last.Replanned)
	assert.Equal(t, "breakdown_duration>=30min", last.ReplanReason)
}

func TestSimulateUrgentInsertion(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")
	e := newTestEngine(t,
		testOrder("B", "F1", start, mt(t, "2026-01-05T12:00"), 3, 60),
		testOrder("C", "F1", start, mt(t, "2026-01-05T14:00"), 3, 60),
	)

	res := e.SimulateDay(start, end, []IncomingEvent{
		simIncoming(t, "2026-01-05T10:00", "2026-01-05T10:00", EventUrgentOrder,
			"of_id=U1;due=2026-01-05T10:30;format=F1;qty=100;nominal_rate=600;duration_min=10;priority=5"),
	}, SimOptions{})

	assert.Equal(t, 1, res.Stats.EventsApplied)
	assert.Equal(t, 3, res.LastState.QueueSize)

	require.Len(t, res.EventLogTail, 1)
	assert.Equal(t, StatusOK, res.EventLogTail[0].Status)
	assert.Equal(t, "urgent_order", res.EventLogTail[0].ReplanReason)

	// Live engine still has its two original orders and no urgent one.
	assert.Equal(t, []string{"B", "C"}, e.QueueIDs())
}

func TestSimulateLateEventTooOld(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")
	e := newTestEngine(t, testOrder("A", "F1", start, end, 1, 60))

	res := e.SimulateDay(start, end, []IncomingEvent{
		simIncoming(t, "2026-01-05T08:00", "2026-01-05T08:00", EventShiftStart, ""),
		simIncoming(t, "2026-01-05T14:00", "2026-01-05T11:30", EventShiftStop, ""),
	}, SimOptions{})

	assert.Equal(t, 1, res.Stats.EventsApplied)
	assert.Equal(t, 1, res.Stats.EventsIgnored)
	assert.True(t, res.LastState.IsRunning, "the stale stop never applied")

	last := res.EventLogTail[len(res.EventLogTail)-1]
	assert.Equal(t, StatusIgnored, last.Status)
	assert.Contains(t, last.Reason, "150min > 120")
}

func TestSimulateLatePolicyOverride(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")
	e := newTestEngine(t, testOrder("A", "F1", start, end, 1, 60))

	incoming := []IncomingEvent{
		simIncoming(t, "2026-01-05T10:00", "2026-01-05T09:30", EventShiftStart, ""),
	}

	// Default policy applies the late start.
	res := e.SimulateDay(start, end, incoming, SimOptions{})
	assert.Equal(t, 1, res.Stats.LateEventsApplied)
	assert.True(t, res.LastState.IsRunning)
	assert.Equal(t, LateApplyNow, res.LatePolicy)

	// Overridden policy drops it; the live engine's config is intact.
	res = e.SimulateDay(start, end, incoming, SimOptions{LatePolicy: LateIgnore})
	assert.Equal(t, 1, res.Stats.EventsIgnored)
	assert.False(t, res.LastState.IsRunning)
	assert.Equal(t, LateIgnore, res.LatePolicy)
	assert.Equal(t, LateApplyNow, e.Config().LatePolicy)

	// Tightened lateness cap turns the same event into too-old.
	cap := 10
	res = e.SimulateDay(start, end, incoming, SimOptions{MaxEventLatenessMin: &cap})
	assert.Equal(t, 1, res.Stats.EventsIgnored)
	assert.Equal(t, 10, res.MaxEventLatenessMin)
	assert.Contains(t, res.EventLogTail[len(res.EventLogTail)-1].Reason, "too old")
}

func TestSimulateReportCadence(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")
	e := newTestEngine(t, testOrder("A", "F1", start, end, 1, 60))

	res := e.SimulateDay(start, end, nil, SimOptions{ReportEveryMin: 120})
	require.Len(t, res.Reports, 5)
	assert.Equal(t, "2026-01-05T10:00", res.Reports[1].Time)

	// Counters inside a report line up with the sweep position.
	assert.Equal(t, 240, res.Reports[2].CountersMin.Stopped)
}

func TestSimulateEventsSortedByReceiveTime(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	end := mt(t, "2026-01-05T16:00")
	e := newTestEngine(t, testOrder("A", "F1", start, end, 1, 60))

	// Delivered out of order; the stop must still land after the start.
	res := e.SimulateDay(start, end, []IncomingEvent{
		simIncoming(t, "2026-01-05T12:00", "2026-01-05T12:00", EventShiftStop, ""),
		simIncoming(t, "2026-01-05T08:00", "2026-01-05T08:00", EventShiftStart, ""),
	}, SimOptions{})

	assert.Equal(t, 2, res.Stats.EventsApplied)
	assert.False(t, res.LastState.IsRunning)
	assert.Equal(t, 1, res.LastState.KPI.CompletedCount)

	require.Len(t, res.EventLogTail, 2)
	assert.Equal(t, EventShiftStart, res.EventLogTail[0].Type)
	assert.Equal(t, EventShiftStop, res.EventLogTail[1].Type)
}

func TestHourlySnapshotShape(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	e := newTestEngine(t,
		testOrder("A", "F1", start, start.Add(4*time.Hour), 1, 60),
		testOrder("B", "F2", start, start.Add(6*time.Hour), 1, 60),
	)
	e.HandleEvent(Event{Timestamp: start, Type: EventShiftStart}, "test")
	e.SetTime(start.Add(30 * time.Minute))

	r := e.HourlySnapshot()
	assert.Equal(t, "2026-01-05T08:30", r.Time)
	assert.True(t, r.Machine.IsRunning)
	require.NotNil(t, r.Machine.CurrentJobID)
	assert.Equal(t, "A", *r.Machine.CurrentJobID)
	assert.Equal(t, 1, r.QueueSize)
	assert.Equal(t, 0, r.CompletedCount)
	assert.Equal(t, 30, r.CountersMin.Producing)
}
