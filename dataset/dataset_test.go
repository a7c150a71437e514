package dataset_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecpap/lineplan/dataset"
	"github.com/tecpap/lineplan/engine"
)

const ordersCSV = `of_id,created_at,due_date,priority,product,format,qty,nominal_rate_u_per_h,nominal_duration_min
OF100,2026-01-05T08:00,2026-01-05T12:00,5,PRODUCT_F1,F1,12000,10000,72
OF101,2026-01-05T08:30,2026-01-05T14:00,8,PRODUCT_F2,F2,8000,9000,54
`

const matrixCSV = `from_format,to_format,setup_min
F1,F2,20
F2,F1,15
`

const eventsCSV = `timestamp,type,value
2026-01-05T08:00,SHIFT_START,
2026-01-05T09:15,SPEED_CHANGE,0.8
2026-01-05T10:00,URGENT_ORDER,"of_id=URG1;format=F2;qty=5000;nominal_rate=10000;duration_min=30;due=2026-01-05T13:00"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mt(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := engine.ParseMinute(s)
	require.NoError(t, err)
	return ts
}

func TestLoadWorkOrders(t *testing.T) {
	path := writeFile(t, t.TempDir(), "work_orders.csv", ordersCSV)

	orders, err := dataset.LoadWorkOrders(path)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, "OF100", first.OFID)
	assert.Equal(t, mt(t, "2026-01-05T08:00"), first.CreatedAt)
	assert.Equal(t, mt(t, "2026-01-05T12:00"), first.DueDate)
	assert.Equal(t, 5, first.Priority)
	assert.Equal(t, "PRODUCT_F1", first.Product)
	assert.Equal(t, "F1", first.Format)
	assert.Equal(t, 12000, first.Qty)
	assert.Equal(t, 10000, first.NominalRatePerHour)
	assert.Equal(t, 72, first.NominalDurationMin)

	assert.Equal(t, "OF101", orders[1].OFID)
	assert.Equal(t, 54, orders[1].NominalDurationMin)
}

func TestLoadWorkOrdersColumnOrderIrrelevant(t *testing.T) {
	shuffled := `format,of_id,nominal_duration_min,created_at,due_date,priority,product,qty,nominal_rate_u_per_h,plant
F3,OF200,30,2026-01-05T07:00,2026-01-05T11:00,2,PRODUCT_F3,6000,12000,LINE-2
`
	path := writeFile(t, t.TempDir(), "work_orders.csv", shuffled)

	orders, err := dataset.LoadWorkOrders(path)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "OF200", orders[0].OFID)
	assert.Equal(t, "F3", orders[0].Format)
	assert.Equal(t, 30, orders[0].NominalDurationMin)
}

func TestLoadWorkOrdersErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := dataset.LoadWorkOrders(filepath.Join(dir, "nope.csv"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open work orders file")
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, dir, "empty.csv", "")
		_, err := dataset.LoadWorkOrders(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing header row")
	})

	t.Run("missing column", func(t *testing.T) {
		content := strings.Replace(ordersCSV, "due_date", "deadline", 1)
		path := writeFile(t, dir, "badheader.csv", content)
		_, err := dataset.LoadWorkOrders(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required columns: due_date")
	})

	t.Run("bad integer has line number", func(t *testing.T) {
		content := strings.Replace(ordersCSV, "8000", "lots", 1)
		path := writeFile(t, dir, "badint.csv", content)
		_, err := dataset.LoadWorkOrders(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `line 3: bad qty "lots"`)
	})

	t.Run("bad timestamp has line number", func(t *testing.T) {
		content := strings.Replace(ordersCSV, "2026-01-05T08:00", "yesterday", 1)
		path := writeFile(t, dir, "badts.csv", content)
		_, err := dataset.LoadWorkOrders(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `line 2: bad created_at "yesterday"`)
	})
}

func TestLoadSetupMatrix(t *testing.T) {
	path := writeFile(t, t.TempDir(), "setup_matrix.csv", matrixCSV)

	matrix, err := dataset.LoadSetupMatrix(path)
	require.NoError(t, err)
	assert.Equal(t, 20, matrix.Minutes("F1", "F2"))
	assert.Equal(t, 15, matrix.Minutes("F2", "F1"))
	assert.Equal(t, 0, matrix.Minutes("F1", "F9"))
}

func TestLoadSetupMatrixRejectsNegative(t *testing.T) {
	content := strings.Replace(matrixCSV, "20", "-20", 1)
	path := writeFile(t, t.TempDir(), "setup_matrix.csv", content)

	_, err := dataset.LoadSetupMatrix(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: setup_min must be >= 0, got -20")
}

func TestLoadEvents(t *testing.T) {
	path := writeFile(t, t.TempDir(), "events.csv", eventsCSV)

	events, err := dataset.LoadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, engine.EventShiftStart, events[0].Type)
	assert.Equal(t, "", events[0].Value)
	assert.Equal(t, mt(t, "2026-01-05T08:00"), events[0].Timestamp)

	assert.Equal(t, engine.EventSpeedChange, events[1].Type)
	assert.Equal(t, "0.8", events[1].Value)

	// Quoted urgent payloads keep their separators.
	assert.Equal(t, engine.EventUrgentOrder, events[2].Type)
	assert.Equal(t, "of_id=URG1;format=F2;qty=5000;nominal_rate=10000;duration_min=30;due=2026-01-05T13:00", events[2].Value)
}

func TestLoadEventsRejectsEmptyType(t *testing.T) {
	content := "timestamp,type,value\n2026-01-05T08:00,,\n"
	path := writeFile(t, t.TempDir(), "events.csv", content)

	_, err := dataset.LoadEvents(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: empty event type")
}

func TestAsIncoming(t *testing.T) {
	events := []engine.Event{
		{Timestamp: mt(t, "2026-01-05T08:00"), Type: engine.EventShiftStart},
		{Timestamp: mt(t, "2026-01-05T09:00"), Type: engine.EventShiftStop},
	}

	incs := dataset.AsIncoming(events, "dataset")
	require.Len(t, incs, 2)
	assert.Equal(t, events[0].Timestamp, incs[0].ReceiveTime)
	assert.Equal(t, events[0], incs[0].Event)
	assert.Equal(t, "dataset", incs[0].Source)
	assert.Equal(t, events[1].Timestamp, incs[1].ReceiveTime)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "work_orders.csv", ordersCSV)
	writeFile(t, dir, "setup_matrix.csv", matrixCSV)
	writeFile(t, dir, "events.csv", eventsCSV)

	bundle, err := dataset.LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, bundle.Orders, 2)
	assert.Equal(t, 20, bundle.Matrix.Minutes("F1", "F2"))
	assert.Len(t, bundle.Events, 3)
}

func TestLoadDirEventsOptional(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "work_orders.csv", ordersCSV)
	writeFile(t, dir, "setup_matrix.csv", matrixCSV)

	bundle, err := dataset.LoadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, bundle.Events)
}

func TestLoadDirRequiresOrders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "setup_matrix.csv", matrixCSV)

	_, err := dataset.LoadDir(dir)
	require.Error(t, err)
}

func TestSaveWorkOrdersRoundTrip(t *testing.T) {
	orders := []*engine.WorkOrder{
		{
			OFID:               "OF300",
			CreatedAt:          mt(t, "2026-01-06T06:00"),
			DueDate:            mt(t, "2026-01-06T18:00"),
			Priority:           7,
			Product:            "PRODUCT_F4",
			Format:             "F4",
			Qty:                21000,
			NominalRatePerHour: 14000,
			NominalDurationMin: 90,
		},
		{
			OFID:               "OF301",
			CreatedAt:          mt(t, "2026-01-06T07:00"),
			DueDate:            mt(t, "2026-01-06T20:00"),
			Priority:           3,
			Product:            "PRODUCT_F1",
			Format:             "F1",
			Qty:                4000,
			NominalRatePerHour: 8000,
			NominalDurationMin: 30,
		},
	}

	path := filepath.Join(t.TempDir(), "work_orders.csv")
	require.NoError(t, dataset.SaveWorkOrders(path, orders))

	loaded, err := dataset.LoadWorkOrders(path)
	require.NoError(t, err)
	assert.Equal(t, orders, loaded)
}

func TestAppendWorkOrderCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "work_orders.csv")

	wo := &engine.WorkOrder{
		OFID:               "OF400",
		CreatedAt:          mt(t, "2026-01-07T08:00"),
		DueDate:            mt(t, "2026-01-07T12:00"),
		Priority:           5,
		Product:            "PRODUCT_F2",
		Format:             "F2",
		Qty:                9000,
		NominalRatePerHour: 9000,
		NominalDurationMin: 60,
	}
	require.NoError(t, dataset.AppendWorkOrder(path, wo))
	require.NoError(t, dataset.AppendWorkOrder(path, &engine.WorkOrder{
		OFID:               "OF401",
		CreatedAt:          mt(t, "2026-01-07T09:00"),
		DueDate:            mt(t, "2026-01-07T13:00"),
		Priority:           2,
		Product:            "PRODUCT_F2",
		Format:             "F2",
		Qty:                3000,
		NominalRatePerHour: 9000,
		NominalDurationMin: 20,
	}))

	loaded, err := dataset.LoadWorkOrders(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "OF400", loaded[0].OFID)
	assert.Equal(t, "OF401", loaded[1].OFID)
}

func TestAppendWorkOrderFollowsExistingHeader(t *testing.T) {
	// A hand-edited file with reordered columns and an extra one.
	content := `due_date,of_id,priority,created_at,product,format,qty,nominal_rate_u_per_h,nominal_duration_min,plant
2026-01-05T12:00,OF500,5,2026-01-05T08:00,PRODUCT_F1,F1,1000,8000,8,LINE-2
`
	path := writeFile(t, t.TempDir(), "work_orders.csv", content)

	wo := &engine.WorkOrder{
		OFID:               "OF501",
		CreatedAt:          mt(t, "2026-01-05T09:00"),
		DueDate:            mt(t, "2026-01-05T15:00"),
		Priority:           8,
		Product:            "PRODUCT_F1",
		Format:             "F1",
		Qty:                2000,
		NominalRatePerHour: 8000,
		NominalDurationMin: 15,
	}
	require.NoError(t, dataset.AppendWorkOrder(path, wo))

	loaded, err := dataset.LoadWorkOrders(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "OF501", loaded[1].OFID)
	assert.Equal(t, mt(t, "2026-01-05T15:00"), loaded[1].DueDate)

	// The appended row keeps the file's column order.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "2026-01-05T15:00,OF501,"))
	assert.True(t, strings.HasSuffix(lines[2], ",15,"), "unknown plant column stays empty")
}

func TestAppendWorkOrderRejectsForeignHeader(t *testing.T) {
	content := "of_id,quantity\nOF1,5\n"
	path := writeFile(t, t.TempDir(), "work_orders.csv", content)

	err := dataset.AppendWorkOrder(path, &engine.WorkOrder{OFID: "OF2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestSaveSetupMatrixSorted(t *testing.T) {
	matrix := engine.NewSetupMatrix()
	matrix.Set("F2", "F1", 15)
	matrix.Set("F1", "F3", 30)
	matrix.Set("F1", "F2", 20)

	path := filepath.Join(t.TempDir(), "setup_matrix.csv")
	require.NoError(t, dataset.SaveSetupMatrix(path, matrix))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from_format,to_format,setup_min\nF1,F2,20\nF1,F3,30\nF2,F1,15\n", string(raw))

	loaded, err := dataset.LoadSetupMatrix(path)
	require.NoError(t, err)
	assert.Equal(t, 30, loaded.Minutes("F1", "F3"))
}

func TestSaveEventsRoundTrip(t *testing.T) {
	events := []engine.Event{
		{Timestamp: mt(t, "2026-01-05T08:00"), Type: engine.EventShiftStart, Value: ""},
		{Timestamp: mt(t, "2026-01-05T10:30"), Type: engine.EventBreakdownStart, Value: "MICRO"},
		{Timestamp: mt(t, "2026-01-05T11:00"), Type: engine.EventUrgentOrder,
			Value: "of_id=URG9;format=F1;qty=3000;nominal_rate=9000;duration_min=20;due=2026-01-05T16:00"},
	}

	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, dataset.SaveEvents(path, events))

	loaded, err := dataset.LoadEvents(path)
	require.NoError(t, err)
	assert.Equal(t, events, loaded)
}

func TestWritePlanCSV(t *testing.T) {
	rows := []engine.PlanRow{
		{
			OFID:           "OF100",
			Format:         "F1",
			Start:          "2026-01-05T08:00",
			End:            "2026-01-05T09:12",
			SetupMin:       0,
			WorkNominalMin: 72,
			Note:           "preview_from_queue",
		},
		{
			OFID:           "OF101",
			Format:         "F2",
			Start:          "2026-01-05T09:12",
			End:            "2026-01-05T10:26",
			SetupMin:       20,
			WorkNominalMin: 54,
			Note:           `rush, "approved"`,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, dataset.WritePlanCSV(&buf, rows))

	want := "of_id,format,start,end,setup_min,work_nominal_min,note\n" +
		"OF100,F1,2026-01-05T08:00,2026-01-05T09:12,0,72,preview_from_queue\n" +
		"OF101,F2,2026-01-05T09:12,2026-01-05T10:26,20,54,\"rush, \"\"approved\"\"\"\n"
	assert.Equal(t, want, buf.String())
}
