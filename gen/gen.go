// Package gen produces a synthetic dataset for demos and stress
// tests: a multi-week order book over a format family, a setup matrix
// with index-distance changeover costs, and a day-by-day event feed
// with shifts, breakdowns, urgent orders, and speed drifts. Output is
// reproducible for a given seed.
package gen

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/tecpap/lineplan/dataset"
	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
)

const (
	orderCreationTime = "07:30"
	shiftStartTime    = "08:00"
	shiftEndTime      = "16:00"
	lunchStartTime    = "12:00"
	lunchEndTime      = "12:30"
	urgentWindowFrom  = "09:00"
	urgentWindowTo    = "15:00"

	ordersPerDayMean   = 12.0
	ordersPerDayStdDev = 3.0
	ordersPerDayMin    = 8
	ordersPerDayMax    = 20

	nominalRateMin = 8000
	nominalRateMax = 14000

	probSmallQty = 0.10
	probLargeQty = 0.15
	probTightDue = 0.18
	dueDaysMax   = 5

	majorBreakdownEveryDays = 5
	probBreakdownCascade    = 0.25
	probSpeedDriftPerDay    = 0.20
	probUrgentDueSameDay    = 0.75
)

var (
	qtySmallRange  = [2]int{2000, 8000}
	qtyMediumRange = [2]int{8000, 30000}
	qtyLargeRange  = [2]int{30000, 80000}

	setupCloseRange = [2]int{5, 15}
	setupFarRange   = [2]int{20, 55}

	microBreakdownsPerDay  = [2]int{3, 8}
	microBreakdownDurRange = [2]int{5, 15}
	majorBreakdownDurRange = [2]int{60, 180}

	urgentPerWeekRange = [2]int{2, 6}
	urgentQtyRange     = [2]int{3000, 25000}

	speedFactorRange   = [2]float64{0.6, 0.9}
	speedDriftDurRange = [2]int{45, 120}
)

// Options selects the horizon and the format family. Everything else
// about the dataset's shape is fixed.
type Options struct {
	Seed      int64
	StartDate time.Time
	Days      int
	Formats   []string
}

// DefaultOptions is a two-week horizon starting on a Monday, over six
// formats.
func DefaultOptions() Options {
	return Options{
		Seed:      42,
		StartDate: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		Days:      14,
		Formats:   []string{"F1", "F2", "F3", "F4", "F5", "F6"},
	}
}

// Summary reports what was written.
type Summary struct {
	WorkOrders   int `json:"work_orders"`
	SetupEntries int `json:"setup_entries"`
	Events       int `json:"events"`
}

// Generate writes the three dataset files into dir, creating it if
// needed.
func Generate(dir string, opts Options) (*Summary, error) {
	if opts.Days <= 0 {
		return nil, errors.New("days must be > 0")
	}
	if len(opts.Formats) == 0 {
		return nil, errors.New("formats must not be empty")
	}
	if opts.StartDate.IsZero() {
		return nil, errors.New("start date must be set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	g := &generator{rng: rand.New(rand.NewSource(opts.Seed)), opts: opts}

	matrix := g.setupMatrix()
	orders := g.workOrders()
	events := g.events()

	if err := dataset.SaveSetupMatrix(filepath.Join(dir, dataset.SetupMatrixFile), matrix); err != nil {
		return nil, err
	}
	if err := dataset.SaveWorkOrders(filepath.Join(dir, dataset.WorkOrdersFile), orders); err != nil {
		return nil, err
	}
	if err := dataset.SaveEvents(filepath.Join(dir, dataset.EventsFile), events); err != nil {
		return nil, err
	}

	return &Summary{
		WorkOrders:   len(orders),
		SetupEntries: matrix.Len(),
		Events:       len(events),
	}, nil
}

type generator struct {
	rng  *rand.Rand
	opts Options
}

// setupMatrix charges nothing for staying on a format, a small setup
// between neighboring formats, and a large one for far jumps.
func (g *generator) setupMatrix() *engine.SetupMatrix {
	index := make(map[string]int, len(g.opts.Formats))
	for i, f := range g.opts.Formats {
		index[f] = i
	}

	matrix := engine.NewSetupMatrix()
	for _, from := range g.opts.Formats {
		for _, to := range g.opts.Formats {
			setup := 0
			if from != to {
				dist := index[from] - index[to]
				if dist < 0 {
					dist = -dist
				}
				if dist <= 1 {
					setup = g.intBetween(setupCloseRange)
				} else {
					setup = g.intBetween(setupFarRange)
				}
			}
			matrix.Set(from, to, setup)
		}
	}
	return matrix
}

func (g *generator) workOrders() []*engine.WorkOrder {
	var orders []*engine.WorkOrder
	counter := 1

	for d := 0; d < g.opts.Days; d++ {
		day := g.opts.StartDate.AddDate(0, 0, d)
		if isWeekend(day) {
			continue
		}

		n := int(g.rng.NormFloat64()*ordersPerDayStdDev + ordersPerDayMean)
		if n < ordersPerDayMin {
			n = ordersPerDayMin
		}
		if n > ordersPerDayMax {
			n = ordersPerDayMax
		}

		for i := 0; i < n; i++ {
			format := g.pick(g.opts.Formats)
			qty := g.sampleQty()
			rate := g.intBetween([2]int{nominalRateMin, nominalRateMax})
			due := g.sampleDueDay(day)

			orders = append(orders, &engine.WorkOrder{
				OFID:               fmt.Sprintf("OF%05d", counter),
				CreatedAt:          dayAt(day, orderCreationTime),
				DueDate:            dayAt(due, shiftEndTime),
				Priority:           g.samplePriority(due, day),
				Product:            "PRODUCT_" + format,
				Format:             format,
				Qty:                qty,
				NominalRatePerHour: rate,
				NominalDurationMin: nominalDurationMin(qty, rate),
			})
			counter++
		}
	}
	return orders
}

func (g *generator) sampleQty() int {
	r := g.rng.Float64()
	if r < probSmallQty {
		return g.intBetween(qtySmallRange)
	}
	if r > 1.0-probLargeQty {
		return g.intBetween(qtyLargeRange)
	}
	return g.intBetween(qtyMediumRange)
}

// sampleDueDay returns the calendar day an order is due. A tight
// fraction lands today or tomorrow, biased to today.
func (g *generator) sampleDueDay(day time.Time) time.Time {
	if g.rng.Float64() < probTightDue {
		add := []int{0, 0, 1}[g.rng.Intn(3)]
		return day.AddDate(0, 0, add)
	}
	return day.AddDate(0, 0, g.intBetween([2]int{0, dueDaysMax}))
}

// samplePriority rises as the due day approaches.
func (g *generator) samplePriority(due, day time.Time) int {
	delta := int(due.Sub(day).Hours() / 24)
	switch {
	case delta <= 0:
		return 5
	case delta == 1:
		return []int{4, 5}[g.rng.Intn(2)]
	case delta == 2:
		return []int{3, 4}[g.rng.Intn(2)]
	default:
		return []int{1, 2, 3}[g.rng.Intn(3)]
	}
}

func (g *generator) events() []engine.Event {
	var events []engine.Event
	events = append(events, g.shiftEvents()...)
	events = append(events, g.breakdownEvents()...)
	events = append(events, g.speedDriftEvents()...)
	events = append(events, g.urgentOrderEvents()...)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// shiftEvents opens and closes each working day, with a lunch stop in
// the middle.
func (g *generator) shiftEvents() []engine.Event {
	var events []engine.Event
	for d := 0; d < g.opts.Days; d++ {
		day := g.opts.StartDate.AddDate(0, 0, d)
		if isWeekend(day) {
			continue
		}
		events = append(events,
			engine.Event{Timestamp: dayAt(day, shiftStartTime), Type: engine.EventShiftStart, Value: ""},
			engine.Event{Timestamp: dayAt(day, lunchStartTime), Type: engine.EventShiftStop, Value: "LUNCH"},
			engine.Event{Timestamp: dayAt(day, lunchEndTime), Type: engine.EventShiftStart, Value: "AFTER_LUNCH"},
			engine.Event{Timestamp: dayAt(day, shiftEndTime), Type: engine.EventShiftStop, Value: "END_OF_SHIFT"},
		)
	}
	return events
}

func (g *generator) breakdownEvents() []engine.Event {
	var events []engine.Event
	for d := 0; d < g.opts.Days; d++ {
		day := g.opts.StartDate.AddDate(0, 0, d)
		if isWeekend(day) {
			continue
		}

		micros := g.intBetween(microBreakdownsPerDay)
		for i := 0; i < micros; i++ {
			start := dayAt(day, shiftStartTime).Add(minutes(g.intBetween([2]int{20, 420})))
			end := start.Add(minutes(g.intBetween(microBreakdownDurRange)))
			events = append(events,
				engine.Event{Timestamp: start, Type: engine.EventBreakdownStart, Value: "MICRO"},
				engine.Event{Timestamp: end, Type: engine.EventBreakdownEnd, Value: "MICRO"},
			)
		}

		if d%majorBreakdownEveryDays == 0 {
			start := dayAt(day, shiftStartTime).Add(minutes(g.intBetween([2]int{60, 330})))
			end := start.Add(minutes(g.intBetween(majorBreakdownDurRange)))
			endLimit := dayAt(day, shiftEndTime).Add(-5 * time.Minute)
			if end.After(endLimit) {
				end = endLimit
			}
			events = append(events,
				engine.Event{Timestamp: start, Type: engine.EventBreakdownStart, Value: "MAJOR"},
				engine.Event{Timestamp: end, Type: engine.EventBreakdownEnd, Value: "MAJOR"},
			)

			// A major outage sometimes drags a couple of micro stops
			// behind it.
			if g.rng.Float64() < probBreakdownCascade {
				cascadeStart := end.Add(minutes(g.intBetween([2]int{10, 40})))
				for i := 0; i < 2; i++ {
					cascadeEnd := cascadeStart.Add(minutes(g.intBetween(microBreakdownDurRange)))
					if !cascadeEnd.After(dayAt(day, shiftEndTime)) {
						events = append(events,
							engine.Event{Timestamp: cascadeStart, Type: engine.EventBreakdownStart, Value: "CASCADE"},
							engine.Event{Timestamp: cascadeEnd, Type: engine.EventBreakdownEnd, Value: "CASCADE"},
						)
					}
					cascadeStart = cascadeEnd.Add(minutes(g.intBetween([2]int{10, 30})))
				}
			}
		}
	}
	return events
}

// speedDriftEvents slows the machine for a stretch, then restores the
// nominal factor.
func (g *generator) speedDriftEvents() []engine.Event {
	var events []engine.Event
	for d := 0; d < g.opts.Days; d++ {
		day := g.opts.StartDate.AddDate(0, 0, d)
		if isWeekend(day) {
			continue
		}
		if g.rng.Float64() >= probSpeedDriftPerDay {
			continue
		}

		start := dayAt(day, shiftStartTime).Add(minutes(g.intBetween([2]int{30, 360})))
		end := start.Add(minutes(g.intBetween(speedDriftDurRange)))
		factor := math.Round(g.floatBetween(speedFactorRange)*100) / 100

		events = append(events,
			engine.Event{
				Timestamp: start,
				Type:      engine.EventSpeedChange,
				Value:     strconv.FormatFloat(factor, 'g', -1, 64),
			},
			engine.Event{Timestamp: end, Type: engine.EventSpeedChange, Value: "1.0"},
		)
	}
	return events
}

func (g *generator) urgentOrderEvents() []engine.Event {
	total := g.intBetween(urgentPerWeekRange) * 2
	if total < 4 {
		total = 4
	}
	if total > 12 {
		total = 12
	}

	days := g.workingDays()
	g.rng.Shuffle(len(days), func(i, j int) { days[i], days[j] = days[j], days[i] })
	if total > len(days) {
		total = len(days)
	}

	var events []engine.Event
	for i := 0; i < total; i++ {
		day := days[i]
		windowStart := dayAt(day, urgentWindowFrom)
		windowMin := int(dayAt(day, urgentWindowTo).Sub(windowStart) / time.Minute)
		at := windowStart.Add(minutes(g.intBetween([2]int{0, windowMin})))

		format := g.pick(g.opts.Formats)
		qty := g.intBetween(urgentQtyRange)
		rate := g.intBetween([2]int{nominalRateMin, nominalRateMax})

		due := dayAt(day, shiftEndTime)
		if g.rng.Float64() >= probUrgentDueSameDay {
			due = dayAt(day.AddDate(0, 0, 1), shiftEndTime)
		}

		payload := fmt.Sprintf(
			"of_id=URG%04d;format=%s;qty=%d;nominal_rate=%d;duration_min=%d;due=%s;priority=5",
			i+1, format, qty, rate, nominalDurationMin(qty, rate), engine.FormatMinute(due),
		)
		events = append(events, engine.Event{Timestamp: at, Type: engine.EventUrgentOrder, Value: payload})
	}
	return events
}

func (g *generator) workingDays() []time.Time {
	var days []time.Time
	for d := 0; d < g.opts.Days; d++ {
		day := g.opts.StartDate.AddDate(0, 0, d)
		if !isWeekend(day) {
			days = append(days, day)
		}
	}
	return days
}

func (g *generator) intBetween(r [2]int) int {
	return r[0] + g.rng.Intn(r[1]-r[0]+1)
}

func (g *generator) floatBetween(r [2]float64) float64 {
	return r[0] + g.rng.Float64()*(r[1]-r[0])
}

func (g *generator) pick(vals []string) string {
	return vals[g.rng.Intn(len(vals))]
}

func nominalDurationMin(qty, rate int) int {
	return max(5, int(float64(qty)/float64(rate)*60))
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func dayAt(day time.Time, hhmm string) time.Time {
	h, _ := strconv.Atoi(hhmm[:2])
	m, _ := strconv.Atoi(hhmm[3:])
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}
