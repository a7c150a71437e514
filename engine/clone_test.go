package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	e := newTestEngine(t,
		testOrder("OF1", "F1", start, start.Add(4*time.Hour), 1, 60),
		testOrder("OF2", "F2", start, start.Add(6*time.Hour), 1, 60),
	)
	e.HandleEvent(Event{Timestamp: start, Type: EventShiftStart}, "test")
	e.SetTime(mt(t, "2026-01-05T08:30"))

	c := e.Clone()

	// Run the clone far ahead; the original must not move.
	c.SetTime(mt(t, "2026-01-05T09:00"))
	c.SetTime(mt(t, "2026-01-05T12:00"))

	assert.Equal(t, "2026-01-05T08:30", e.State().Now)
	assert.Equal(t, 0, e.State().KPI.CompletedCount)
	assert.Equal(t, 2, c.State().KPI.CompletedCount)

	// And the other way around.
	e.HandleEvent(Event{Timestamp: mt(t, "2026-01-05T08:30"), Type: EventBreakdownStart, Value: "jam"}, "test")
	assert.False(t, c.State().IsDown)
}

func TestCloneCopiesJournalAndCompleted(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	e := newTestEngine(t, testOrder("OF1", "F1", start, start.Add(time.Hour), 1, 30))
	e.HandleEvent(Event{Timestamp: start, Type: EventShiftStart}, "test")
	e.SetTime(start.Add(30 * time.Minute))

	c := e.Clone()
	require.Equal(t, e.JournalLen(), c.JournalLen())
	require.Equal(t, e.Completed(), c.Completed())

	c.HandleEvent(Event{Timestamp: start.Add(30 * time.Minute), Type: EventShiftStop}, "test")
	assert.Equal(t, e.JournalLen()+1, c.JournalLen())
}

func TestCloneReplaySameEventsSameOutcome(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	build := func() []*WorkOrder {
		return []*WorkOrder{
			testOrder("OF1", "F1", start, start.Add(3*time.Hour), 2, 45),
			testOrder("OF2", "F2", start, start.Add(5*time.Hour), 7, 60),
			testOrder("OF3", "F3", start.Add(time.Hour), start.Add(7*time.Hour), 4, 30),
		}
	}

	e := New(build(), testMatrix(), DefaultConfig(), nil)
	c := e.Clone()

	script := []Event{
		{Timestamp: start, Type: EventShiftStart},
		{Timestamp: start.Add(20 * time.Minute), Type: EventSpeedChange, Value: "1.5"},
		{Timestamp: start.Add(40 * time.Minute), Type: EventBreakdownStart, Value: "jam"},
		{Timestamp: start.Add(90 * time.Minute), Type: EventBreakdownEnd},
		{Timestamp: start.Add(3 * time.Hour), Type: EventShiftStop},
	}
	for _, ev := range script {
		e.HandleEvent(ev, "test")
		c.HandleEvent(ev, "test")
	}

	assert.Equal(t, e.State(), c.State())
	assert.Equal(t, e.Completed(), c.Completed())
	assert.Equal(t, e.QueueIDs(), c.QueueIDs())
}

func TestCloneSharesSetupMatrix(t *testing.T) {
	start := mt(t, "2026-01-05T08:00")
	e := newTestEngine(t, testOrder("OF1", "F1", start, start.Add(time.Hour), 1, 30))

	c := e.Clone()
	assert.Same(t, e.SetupMatrix(), c.SetupMatrix())

	// Swapping on the original must not touch the clone.
	e.SwapSetupMatrix(NewSetupMatrix())
	assert.NotSame(t, e.SetupMatrix(), c.SetupMatrix())
}
