package engine

import (
	"sort"
	"time"
)

// PlanRow is one scheduled slot in a plan projection. Start marks the
// beginning of the changeover; End marks the end of the work.
type PlanRow struct {
	OFID           string `json:"of_id"`
	Format         string `json:"format"`
	Start          string `json:"start"`
	End            string `json:"end"`
	SetupMin       int    `json:"setup_min"`
	WorkNominalMin int    `json:"work_nominal_min"`
	Note           string `json:"note"`
}

// planNotePreview tags rows projected straight from the queue.
const planNotePreview = "preview_from_queue"

// PlanPreview projects up to limit queued orders onto the timeline as
// if they ran back to back from now, charging setup between format
// changes. Durations are nominal; the speed factor is not applied.
func (e *Engine) PlanPreview(limit int) []PlanRow {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit < 0 {
		limit = 0
	}
	if limit > len(e.queue) {
		limit = len(e.queue)
	}

	rows := make([]PlanRow, 0, limit)
	t := e.now
	prevFmt := e.currentFormat
	for _, wo := range e.queue[:limit] {
		setup := e.matrix.Minutes(prevFmt, wo.Format)
		start := t
		t = t.Add(time.Duration(setup) * time.Minute)
		end := t.Add(time.Duration(wo.NominalDurationMin) * time.Minute)

		rows = append(rows, PlanRow{
			OFID:           wo.OFID,
			Format:         wo.Format,
			Start:          FormatMinute(start),
			End:            FormatMinute(end),
			SetupMin:       setup,
			WorkNominalMin: wo.NominalDurationMin,
			Note:           planNotePreview,
		})

		t = end
		prevFmt = wo.Format
	}
	return rows
}

// RecomputeResult reports the outcome of a queue recompute.
type RecomputeResult struct {
	OK               bool     `json:"ok"`
	Changed          bool     `json:"changed"`
	Strategy         string   `json:"strategy,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	TotalSetupMinEst int      `json:"total_setup_min_est"`
	Before           []string `json:"before"`
	After            []string `json:"after"`
}

// StrategyFormatPriority is the only recompute strategy implemented.
const StrategyFormatPriority = "FORMAT_PRIORITY"

// RecomputeFormatPriority reorders the queue by format campaigns:
// orders are bucketed by format, each bucket sorted by priority
// descending then due date then id, and buckets are chained to
// minimize changeover from the current tooled format. Ties between
// buckets break toward the one holding the highest-priority order,
// then by format name. The reordering holds until the next pool
// refresh restores the standing due-date order.
func (e *Engine) RecomputeFormatPriority() RecomputeResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return RecomputeResult{
			OK:      true,
			Changed: false,
			Reason:  "empty_queue",
			Before:  []string{},
			After:   []string{},
		}
	}

	before := make([]string, len(e.queue))
	for i, wo := range e.queue {
		before[i] = wo.OFID
	}

	buckets := make(map[string][]*WorkOrder)
	var formats []string
	for _, wo := range e.queue {
		if _, ok := buckets[wo.Format]; !ok {
			formats = append(formats, wo.Format)
		}
		buckets[wo.Format] = append(buckets[wo.Format], wo)
	}
	for _, f := range formats {
		b := buckets[f]
		sort.SliceStable(b, func(i, j int) bool {
			if b[i].Priority != b[j].Priority {
				return b[i].Priority > b[j].Priority
			}
			if !b[i].DueDate.Equal(b[j].DueDate) {
				return b[i].DueDate.Before(b[j].DueDate)
			}
			return b[i].OFID < b[j].OFID
		})
	}

	maxPriority := func(f string) int {
		best := buckets[f][0].Priority
		for _, wo := range buckets[f][1:] {
			if wo.Priority > best {
				best = wo.Priority
			}
		}
		return best
	}

	cur := e.currentFormat
	if cur == "" {
		cur = e.queue[0].Format
	}
	startFmt := cur

	ordered := make([]*WorkOrder, 0, len(e.queue))
	remaining := make([]string, len(formats))
	copy(remaining, formats)
	sort.Strings(remaining)

	for len(remaining) > 0 {
		bestIdx := 0
		bestSetup := e.matrix.Minutes(cur, remaining[0])
		bestPrio := maxPriority(remaining[0])
		for i := 1; i < len(remaining); i++ {
			setup := e.matrix.Minutes(cur, remaining[i])
			prio := maxPriority(remaining[i])
			if setup < bestSetup || (setup == bestSetup && prio > bestPrio) {
				bestIdx, bestSetup, bestPrio = i, setup, prio
			}
		}
		f := remaining[bestIdx]
		ordered = append(ordered, buckets[f]...)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		cur = f
	}

	after := make([]string, len(ordered))
	for i, wo := range ordered {
		after[i] = wo.OFID
	}

	totalSetup := 0
	prev := startFmt
	for _, wo := range ordered {
		totalSetup += e.matrix.Minutes(prev, wo.Format)
		prev = wo.Format
	}

	e.queue = ordered
	changed := !equalStrings(before, after)

	e.logger.Infow("queue recomputed",
		"strategy", StrategyFormatPriority,
		"changed", changed,
		"total_setup_min_est", totalSetup,
		"queue_size", len(ordered),
	)

	return RecomputeResult{
		OK:               true,
		Changed:          changed,
		Strategy:         StrategyFormatPriority,
		TotalSetupMinEst: totalSetup,
		Before:           capIDs(before, 30),
		After:            capIDs(after, 30),
	}
}

func capIDs(ids []string, n int) []string {
	if len(ids) > n {
		return ids[:n]
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
