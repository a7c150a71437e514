package engine

import (
	"sort"
	"time"
)

// WorkOrder is one production order for the machine. Orders are
// immutable once created; the engine only moves them between pool,
// queue, and machine.
type WorkOrder struct {
	OFID               string
	CreatedAt          time.Time
	DueDate            time.Time
	Priority           int
	Product            string
	Format             string
	Qty                int
	NominalRatePerHour int
	NominalDurationMin int
}

// CompletedOrder records a finished order and the minute it finished.
type CompletedOrder struct {
	OFID       string `json:"of_id"`
	FinishedAt string `json:"finished_at"`
}

// sortQueue orders by due date ascending, then priority descending.
// The sort is stable so equal orders keep their arrival order.
func sortQueue(queue []*WorkOrder) {
	sort.SliceStable(queue, func(i, j int) bool {
		if !queue[i].DueDate.Equal(queue[j].DueDate) {
			return queue[i].DueDate.Before(queue[j].DueDate)
		}
		return queue[i].Priority > queue[j].Priority
	})
}

func copyOrders(src []*WorkOrder) []*WorkOrder {
	out := make([]*WorkOrder, len(src))
	for i, wo := range src {
		cp := *wo
		out[i] = &cp
	}
	return out
}

func sameOrder(a, b []*WorkOrder) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].OFID != b[i].OFID {
			return false
		}
	}
	return true
}
