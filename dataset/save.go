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

// SaveWorkOrders rewrites the whole order book in canonical column
// order.
func SaveWorkOrders(path string, orders []*engine.WorkOrder) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create work orders file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(workOrderColumns); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, wo := range orders {
		record := make([]string, len(workOrderColumns))
		for i, col := range workOrderColumns {
			record[i] = workOrderField(wo, col)
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write work order")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to write work orders file")
}

// AppendWorkOrder appends one order following the column order of the
// existing header, so hand-edited files stay loadable. A missing or
// empty file is created with the canonical header first.
func AppendWorkOrder(path string, wo *engine.WorkOrder) error {
	header, err := readFileHeader(path)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open work orders file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if header == nil {
		header = workOrderColumns
		if err := w.Write(header); err != nil {
			return errors.Wrap(err, "failed to write header")
		}
	} else if err := requireColumns(header, workOrderColumns); err != nil {
		return errors.Wrapf(err, "%s", path)
	}

	record := make([]string, len(header))
	for i, col := range header {
		record[i] = workOrderField(wo, strings.TrimSpace(col))
	}
	if err := w.Write(record); err != nil {
		return errors.Wrap(err, "failed to append work order")
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to append work order")
}

// SaveSetupMatrix rewrites the matrix sorted by format pair.
func SaveSetupMatrix(path string, matrix *engine.SetupMatrix) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create setup matrix file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(setupMatrixColumns); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, entry := range matrix.Entries() {
		record := []string{entry.FromFormat, entry.ToFormat, strconv.Itoa(entry.SetupMin)}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write setup entry")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to write setup matrix file")
}

// SaveEvents writes an event feed in the given order.
func SaveEvents(path string, events []engine.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create events file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(eventColumns); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, ev := range events {
		record := []string{engine.FormatMinute(ev.Timestamp), ev.Type, ev.Value}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write event")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to write events file")
}

// PlanColumns is the header of an exported plan.
var PlanColumns = []string{"of_id", "format", "start", "end", "setup_min", "work_nominal_min", "note"}

// WritePlanCSV streams plan rows as CSV, header included.
func WritePlanCSV(dst io.Writer, rows []engine.PlanRow) error {
	w := csv.NewWriter(dst)
	if err := w.Write(PlanColumns); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, row := range rows {
		record := []string{
			row.OFID,
			row.Format,
			row.Start,
			row.End,
			strconv.Itoa(row.SetupMin),
			strconv.Itoa(row.WorkNominalMin),
			row.Note,
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write plan row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to write plan")
}

// workOrderField renders one column of an order. Unknown columns map
// to empty strings so extra columns in an existing header survive an
// append untouched.
func workOrderField(wo *engine.WorkOrder, col string) string {
	switch col {
	case "of_id":
		return wo.OFID
	case "created_at":
		return engine.FormatMinute(wo.CreatedAt)
	case "due_date":
		return engine.FormatMinute(wo.DueDate)
	case "priority":
		return strconv.Itoa(wo.Priority)
	case "product":
		return wo.Product
	case "format":
		return wo.Format
	case "qty":
		return strconv.Itoa(wo.Qty)
	case "nominal_rate_u_per_h":
		return strconv.Itoa(wo.NominalRatePerHour)
	case "nominal_duration_min":
		return strconv.Itoa(wo.NominalDurationMin)
	default:
		return ""
	}
}

// readFileHeader returns the header of an existing CSV file, nil when
// the file is missing or empty.
func readFileHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to open work orders file")
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header row")
	}
	return header, nil
}

func requireColumns(header, required []string) error {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[strings.TrimSpace(col)] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return errors.Newf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
