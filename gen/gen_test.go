package gen_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecpap/lineplan/dataset"
	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/gen"
)

func TestGenerateIsDeterministic(t *testing.T) {
	opts := gen.DefaultOptions()

	dirA := t.TempDir()
	dirB := t.TempDir()

	sumA, err := gen.Generate(dirA, opts)
	require.NoError(t, err)
	sumB, err := gen.Generate(dirB, opts)
	require.NoError(t, err)

	assert.Equal(t, sumA, sumB)

	for _, name := range []string{dataset.WorkOrdersFile, dataset.SetupMatrixFile, dataset.EventsFile} {
		bytesA, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		bytesB, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		assert.Equal(t, bytesA, bytesB, "file %s differs between runs with the same seed", name)
	}
}

func TestGenerateSeedsDiffer(t *testing.T) {
	optsA := gen.DefaultOptions()
	optsB := gen.DefaultOptions()
	optsB.Seed = 7

	dirA := t.TempDir()
	dirB := t.TempDir()

	_, err := gen.Generate(dirA, optsA)
	require.NoError(t, err)
	_, err = gen.Generate(dirB, optsB)
	require.NoError(t, err)

	bytesA, err := os.ReadFile(filepath.Join(dirA, dataset.WorkOrdersFile))
	require.NoError(t, err)
	bytesB, err := os.ReadFile(filepath.Join(dirB, dataset.WorkOrdersFile))
	require.NoError(t, err)
	assert.NotEqual(t, bytesA, bytesB)
}

func TestGenerateWorkOrderShape(t *testing.T) {
	opts := gen.DefaultOptions()
	dir := t.TempDir()

	sum, err := gen.Generate(dir, opts)
	require.NoError(t, err)

	bundle, err := dataset.LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, sum.WorkOrders, len(bundle.Orders))

	// 10 working days in the default two-week horizon, 8 to 20 orders
	// each.
	assert.GreaterOrEqual(t, len(bundle.Orders), 80)
	assert.LessOrEqual(t, len(bundle.Orders), 200)

	formats := map[string]bool{}
	for _, f := range opts.Formats {
		formats[f] = true
	}

	for _, wo := range bundle.Orders {
		assert.Regexp(t, `^OF\d{5}$`, wo.OFID)
		assert.True(t, formats[wo.Format], "unknown format %q on %s", wo.Format, wo.OFID)
		assert.Equal(t, "PRODUCT_"+wo.Format, wo.Product)

		assert.GreaterOrEqual(t, wo.Qty, 2000)
		assert.LessOrEqual(t, wo.Qty, 80000)
		assert.GreaterOrEqual(t, wo.NominalRatePerHour, 8000)
		assert.LessOrEqual(t, wo.NominalRatePerHour, 14000)
		assert.GreaterOrEqual(t, wo.NominalDurationMin, 5)
		assert.GreaterOrEqual(t, wo.Priority, 1)
		assert.LessOrEqual(t, wo.Priority, 5)

		assert.Equal(t, "07:30", wo.CreatedAt.Format("15:04"), "order %s", wo.OFID)
		assert.Equal(t, "16:00", wo.DueDate.Format("15:04"), "order %s", wo.OFID)
		assert.False(t, wo.DueDate.Before(wo.CreatedAt), "order %s due before creation", wo.OFID)
		assert.NotEqual(t, time.Saturday, wo.CreatedAt.Weekday())
		assert.NotEqual(t, time.Sunday, wo.CreatedAt.Weekday())
	}
}

func TestGenerateSetupMatrixShape(t *testing.T) {
	opts := gen.DefaultOptions()
	dir := t.TempDir()

	sum, err := gen.Generate(dir, opts)
	require.NoError(t, err)

	bundle, err := dataset.LoadDir(dir)
	require.NoError(t, err)

	require.Equal(t, len(opts.Formats)*len(opts.Formats), bundle.Matrix.Len())
	require.Equal(t, sum.SetupEntries, bundle.Matrix.Len())

	for i, from := range opts.Formats {
		for j, to := range opts.Formats {
			setup := bundle.Matrix.Minutes(from, to)

			dist := i - j
			if dist < 0 {
				dist = -dist
			}
			switch {
			case dist == 0:
				assert.Equal(t, 0, setup, "pair %s -> %s", from, to)
			case dist == 1:
				assert.GreaterOrEqual(t, setup, 5, "pair %s -> %s", from, to)
				assert.LessOrEqual(t, setup, 15, "pair %s -> %s", from, to)
			default:
				assert.GreaterOrEqual(t, setup, 20, "pair %s -> %s", from, to)
				assert.LessOrEqual(t, setup, 55, "pair %s -> %s", from, to)
			}
		}
	}
}

func TestGenerateEventFeed(t *testing.T) {
	opts := gen.DefaultOptions()
	dir := t.TempDir()

	sum, err := gen.Generate(dir, opts)
	require.NoError(t, err)

	bundle, err := dataset.LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, sum.Events, len(bundle.Events))
	require.NotEmpty(t, bundle.Events)

	first := bundle.Events[0]
	assert.Equal(t, engine.EventShiftStart, first.Type)
	assert.Equal(t, "2026-01-05T08:00", engine.FormatMinute(first.Timestamp))

	starts, stops, urgents := 0, 0, 0
	for i, ev := range bundle.Events {
		if i > 0 {
			prev := bundle.Events[i-1].Timestamp
			assert.False(t, ev.Timestamp.Before(prev), "event %d out of order", i)
		}
		assert.NotEqual(t, time.Saturday, ev.Timestamp.Weekday())
		assert.NotEqual(t, time.Sunday, ev.Timestamp.Weekday())

		switch ev.Type {
		case engine.EventShiftStart:
			starts++
		case engine.EventShiftStop:
			stops++
		case engine.EventUrgentOrder:
			urgents++
			wo, err := engine.ParseUrgentPayload(ev.Value, ev.Timestamp)
			require.NoError(t, err, "urgent payload %q", ev.Value)
			assert.Regexp(t, `^URG\d{4}$`, wo.OFID)
			assert.Equal(t, 5, wo.Priority)
			assert.False(t, wo.DueDate.Before(ev.Timestamp))
		}
	}

	// Two shift openings and two closings per working day.
	assert.Equal(t, 20, starts)
	assert.Equal(t, 20, stops)

	assert.GreaterOrEqual(t, urgents, 4)
	assert.LessOrEqual(t, urgents, 12)
}

func TestGenerateSpeedDriftsRestoreNominal(t *testing.T) {
	opts := gen.DefaultOptions()
	opts.Seed = 3
	dir := t.TempDir()

	_, err := gen.Generate(dir, opts)
	require.NoError(t, err)

	bundle, err := dataset.LoadDir(dir)
	require.NoError(t, err)

	slowed, restored := 0, 0
	for _, ev := range bundle.Events {
		if ev.Type != engine.EventSpeedChange {
			continue
		}
		if ev.Value == "1.0" {
			restored++
		} else {
			slowed++
		}
	}
	assert.Equal(t, slowed, restored, "every drift must be paired with a restore")
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	dir := t.TempDir()

	opts := gen.DefaultOptions()
	opts.Days = 0
	_, err := gen.Generate(dir, opts)
	assert.ErrorContains(t, err, "days must be > 0")

	opts = gen.DefaultOptions()
	opts.Formats = nil
	_, err = gen.Generate(dir, opts)
	assert.ErrorContains(t, err, "formats must not be empty")

	opts = gen.DefaultOptions()
	opts.StartDate = time.Time{}
	_, err = gen.Generate(dir, opts)
	assert.ErrorContains(t, err, "start date must be set")
}
