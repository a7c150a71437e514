package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
)

var (
	workOrderColumns = []string{
		"of_id", "created_at", "due_date", "priority", "product",
		"format", "qty", "nominal_rate_u_per_h", "nominal_duration_min",
	}
	setupMatrixColumns = []string{"from_format", "to_format", "setup_min"}
	eventColumns       = []string{"timestamp", "type", "value"}
)

// LoadWorkOrders reads the order book. Every row must parse; the first
// bad row fails the load with its line number.
func LoadWorkOrders(path string) ([]*engine.WorkOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open work orders file")
	}
	defer f.Close()

	orders, err := readWorkOrders(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return orders, nil
}

func readWorkOrders(src io.Reader) ([]*engine.WorkOrder, error) {
	r := csv.NewReader(src)
	idx, err := readHeader(r, workOrderColumns)
	if err != nil {
		return nil, err
	}

	var orders []*engine.WorkOrder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read row")
		}
		line, _ := r.FieldPos(0)

		wo, err := parseWorkOrderRow(record, idx, line)
		if err != nil {
			return nil, err
		}
		orders = append(orders, wo)
	}
	return orders, nil
}

func parseWorkOrderRow(record []string, idx map[string]int, line int) (*engine.WorkOrder, error) {
	get := func(col string) string { return strings.TrimSpace(record[idx[col]]) }

	createdAt, err := engine.ParseMinute(get("created_at"))
	if err != nil {
		return nil, errors.Newf("line %d: bad created_at %q", line, get("created_at"))
	}
	dueDate, err := engine.ParseMinute(get("due_date"))
	if err != nil {
		return nil, errors.Newf("line %d: bad due_date %q", line, get("due_date"))
	}
	priority, err := parseIntField(get("priority"), "priority", line)
	if err != nil {
		return nil, err
	}
	qty, err := parseIntField(get("qty"), "qty", line)
	if err != nil {
		return nil, err
	}
	rate, err := parseIntField(get("nominal_rate_u_per_h"), "nominal_rate_u_per_h", line)
	if err != nil {
		return nil, err
	}
	duration, err := parseIntField(get("nominal_duration_min"), "nominal_duration_min", line)
	if err != nil {
		return nil, err
	}

	return &engine.WorkOrder{
		OFID:               get("of_id"),
		CreatedAt:          createdAt,
		DueDate:            dueDate,
		Priority:           priority,
		Product:            get("product"),
		Format:             get("format"),
		Qty:                qty,
		NominalRatePerHour: rate,
		NominalDurationMin: duration,
	}, nil
}

// LoadSetupMatrix reads changeover costs. Missing pairs stay at zero;
// listed pairs must carry a non-negative minute count.
func LoadSetupMatrix(path string) (*engine.SetupMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open setup matrix file")
	}
	defer f.Close()

	matrix, err := readSetupMatrix(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return matrix, nil
}

func readSetupMatrix(src io.Reader) (*engine.SetupMatrix, error) {
	r := csv.NewReader(src)
	idx, err := readHeader(r, setupMatrixColumns)
	if err != nil {
		return nil, err
	}

	matrix := engine.NewSetupMatrix()
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read row")
		}
		line, _ := r.FieldPos(0)

		from := strings.TrimSpace(record[idx["from_format"]])
		to := strings.TrimSpace(record[idx["to_format"]])
		setupMin, err := parseIntField(strings.TrimSpace(record[idx["setup_min"]]), "setup_min", line)
		if err != nil {
			return nil, err
		}
		if setupMin < 0 {
			return nil, errors.Newf("line %d: setup_min must be >= 0, got %d", line, setupMin)
		}
		matrix.Set(from, to, setupMin)
	}
	return matrix, nil
}

// LoadEvents reads a machine event feed in file order. Event types are
// not validated here; the engine journals unknown types as ignored.
func LoadEvents(path string) ([]engine.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open events file")
	}
	defer f.Close()

	events, err := readEvents(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return events, nil
}

func readEvents(src io.Reader) ([]engine.Event, error) {
	r := csv.NewReader(src)
	idx, err := readHeader(r, eventColumns)
	if err != nil {
		return nil, err
	}

	var events []engine.Event
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read row")
		}
		line, _ := r.FieldPos(0)

		ts, err := engine.ParseMinute(strings.TrimSpace(record[idx["timestamp"]]))
		if err != nil {
			return nil, errors.Newf("line %d: bad timestamp %q", line, strings.TrimSpace(record[idx["timestamp"]]))
		}
		evType := strings.TrimSpace(record[idx["type"]])
		if evType == "" {
			return nil, errors.Newf("line %d: empty event type", line)
		}
		events = append(events, engine.Event{
			Timestamp: ts,
			Type:      evType,
			Value:     strings.TrimSpace(record[idx["value"]]),
		})
	}
	return events, nil
}

// readHeader consumes the header row and maps required column names to
// their positions. Extra columns are tolerated and ignored.
func readHeader(r *csv.Reader, required []string) (map[string]int, error) {
	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header row")
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Newf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseIntField(s, col string, line int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Newf("line %d: bad %s %q", line, col, s)
	}
	return v, nil
}
