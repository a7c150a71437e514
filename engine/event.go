package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/tecpap/lineplan/errors"
)

// Event types understood by the engine.
const (
	EventShiftStart     = "SHIFT_START"
	EventShiftStop      = "SHIFT_STOP"
	EventBreakdownStart = "BREAKDOWN_START"
	EventBreakdownEnd   = "BREAKDOWN_END"
	EventSpeedChange    = "SPEED_CHANGE"
	EventUrgentOrder    = "URGENT_ORDER"
)

// Event is a machine event stamped with the time it happened on the
// shop floor. Value carries the type-specific payload: a speed factor,
// a breakdown reason, or an urgent-order descriptor.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Value     string    `json:"value"`
}

// IncomingEvent wraps an event with the time it reaches the engine.
// ReceiveTime models transport delay and may be well after the event's
// own timestamp.
type IncomingEvent struct {
	ReceiveTime time.Time
	Event       Event
	Source      string
}

// urgentKeys that must be present in an URGENT_ORDER payload.
var urgentRequiredKeys = []string{"of_id", "due", "format", "qty", "nominal_rate", "duration_min"}

// ParseUrgentPayload decodes the "k=v;k=v" descriptor carried by an
// URGENT_ORDER event into a work order created at the given time.
// Unknown keys are tolerated; missing required keys or unparseable
// values are an error and leave no partial order behind.
func ParseUrgentPayload(payload string, createdAt time.Time) (*WorkOrder, error) {
	kv := make(map[string]string)
	for _, part := range strings.Split(payload, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		kv[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	for _, k := range urgentRequiredKeys {
		if _, ok := kv[k]; !ok {
			return nil, errors.Newf("urgent payload missing key %q", k)
		}
	}

	due, err := ParseMinute(kv["due"])
	if err != nil {
		return nil, errors.Wrap(err, "urgent payload field due")
	}
	qty, err := strconv.Atoi(kv["qty"])
	if err != nil {
		return nil, errors.Wrap(err, "urgent payload field qty")
	}
	rate, err := strconv.Atoi(kv["nominal_rate"])
	if err != nil {
		return nil, errors.Wrap(err, "urgent payload field nominal_rate")
	}
	dur, err := strconv.Atoi(kv["duration_min"])
	if err != nil {
		return nil, errors.Wrap(err, "urgent payload field duration_min")
	}

	prio := 5
	if s, ok := kv["priority"]; ok {
		prio, err = strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrap(err, "urgent payload field priority")
		}
	}

	format := kv["format"]
	return &WorkOrder{
		OFID:               kv["of_id"],
		CreatedAt:          createdAt,
		DueDate:            due,
		Priority:           prio,
		Product:            "PRODUCT_" + format,
		Format:             format,
		Qty:                qty,
		NominalRatePerHour: rate,
		NominalDurationMin: dur,
	}, nil
}
