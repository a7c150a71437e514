package engine

// Journal entry statuses.
const (
	StatusOK      = "ok"
	StatusIgnored = "ignored"
)

// JournalEntry is the audit record for one event presented to the
// engine. Every event gets exactly one entry whether it was applied or
// ignored. Times are wire-format minute strings so rows serialize and
// compare stably.
type JournalEntry struct {
	ReceivedAt           string `json:"received_at"`
	Source               string `json:"source"`
	EngineNowBefore      string `json:"engine_now_before"`
	EventTimestamp       string `json:"event_timestamp"`
	Type                 string `json:"type"`
	Value                string `json:"value"`
	Status               string `json:"status"`
	Reason               string `json:"reason"`
	LateApplied          bool   `json:"late_applied"`
	Replanned            bool   `json:"replanned"`
	ReplanReason         string `json:"replan_reason"`
	BreakdownDurationMin *int   `json:"breakdown_duration_min"`
	EngineNowAfter       string `json:"engine_now_after"`
}

// JournalTail returns the most recent journal entries, oldest first.
// Limits below one clamp to one.
func (e *Engine) JournalTail(limit int) []JournalEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit < 1 {
		limit = 1
	}
	if limit > len(e.journal) {
		limit = len(e.journal)
	}
	out := make([]JournalEntry, limit)
	copy(out, e.journal[len(e.journal)-limit:])
	return out
}

// JournalLen returns the number of journal entries recorded so far.
func (e *Engine) JournalLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.journal)
}
