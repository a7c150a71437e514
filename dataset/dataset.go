// Package dataset reads and writes the CSV bundle a deployment keeps
// on disk: the work order book, the setup matrix, and a machine event
// feed. Column order is irrelevant on load; writers always emit the
// canonical order so files stay diffable.
package dataset

import (
	"os"
	"path/filepath"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
)

// Canonical file names inside a dataset directory.
const (
	WorkOrdersFile  = "work_orders.csv"
	SetupMatrixFile = "setup_matrix.csv"
	EventsFile      = "events.csv"
)

// Bundle is a fully loaded dataset directory.
type Bundle struct {
	Orders []*engine.WorkOrder
	Matrix *engine.SetupMatrix
	Events []engine.Event
}

// LoadDir loads a dataset directory. Work orders and the setup matrix
// are required; the event feed is optional and loads empty when the
// file is absent.
func LoadDir(dir string) (*Bundle, error) {
	orders, err := LoadWorkOrders(filepath.Join(dir, WorkOrdersFile))
	if err != nil {
		return nil, err
	}
	matrix, err := LoadSetupMatrix(filepath.Join(dir, SetupMatrixFile))
	if err != nil {
		return nil, err
	}

	events, err := LoadEvents(filepath.Join(dir, EventsFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		events = nil
	}

	return &Bundle{Orders: orders, Matrix: matrix, Events: events}, nil
}

// AsIncoming wraps plain events for delivery: each event is received
// exactly when it happened, tagged with the given source.
func AsIncoming(events []engine.Event, source string) []engine.IncomingEvent {
	out := make([]engine.IncomingEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, engine.IncomingEvent{
			ReceiveTime: ev.Timestamp,
			Event:       ev,
			Source:      source,
		})
	}
	return out
}
