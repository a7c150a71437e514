package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tecpap/lineplan/config"
	"github.com/tecpap/lineplan/dataset"
	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
	"github.com/tecpap/lineplan/logger"
)

// SimulateCmd plays a full day offline against the dataset
var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play a full day offline and print the outcome",
	Long: `Run a whole-day simulation over a dataset without serving anything.
The event feed comes from the dataset's events.csv, clipped to the day
window; the simulation runs on a clone, so nothing is persisted.

Examples:
  lineplan simulate --dataset data --day-start 2026-01-05T08:00 --day-end 2026-01-05T16:00
  lineplan simulate --dataset data --day-start 2026-01-05T08:00 --day-end 2026-01-05T16:00 \
      --late-policy IGNORE --report-every 120 --out day.json`,
	RunE: runSimulate,
}

var (
	simDatasetDir   string
	simDayStart     string
	simDayEnd       string
	simReportEvery  int
	simLatePolicy   string
	simMaxLateness  int
	simBreakdownMin int
	simOutPath      string
)

func init() {
	SimulateCmd.Flags().StringVar(&simDatasetDir, "dataset", "", "Dataset directory (overrides config)")
	SimulateCmd.Flags().StringVar(&simDayStart, "day-start", "", "Day window start, YYYY-MM-DDTHH:MM (required)")
	SimulateCmd.Flags().StringVar(&simDayEnd, "day-end", "", "Day window end, YYYY-MM-DDTHH:MM (required)")
	SimulateCmd.Flags().IntVar(&simReportEvery, "report-every", 60, "Minutes between hourly reports")
	SimulateCmd.Flags().StringVar(&simLatePolicy, "late-policy", "", "Late event policy override: APPLY_NOW or IGNORE")
	SimulateCmd.Flags().IntVar(&simMaxLateness, "max-lateness", -1, "Max event lateness override in minutes (-1 = config)")
	SimulateCmd.Flags().IntVar(&simBreakdownMin, "breakdown-threshold", -1, "Breakdown replan threshold override in minutes (-1 = config)")
	SimulateCmd.Flags().StringVar(&simOutPath, "out", "", "Write the full day result as JSON to this file")
	SimulateCmd.MarkFlagRequired("day-start")
	SimulateCmd.MarkFlagRequired("day-end")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	datasetDir := cfg.Dataset.Dir
	if simDatasetDir != "" {
		datasetDir = simDatasetDir
	}

	dayStart, err := engine.ParseMinute(simDayStart)
	if err != nil {
		return errors.Wrapf(err, "invalid --day-start %q", simDayStart)
	}
	dayEnd, err := engine.ParseMinute(simDayEnd)
	if err != nil {
		return errors.Wrapf(err, "invalid --day-end %q", simDayEnd)
	}
	if !dayEnd.After(dayStart) {
		return errors.New("--day-end must be after --day-start")
	}

	opts := engine.SimOptions{ReportEveryMin: simReportEvery}
	if simLatePolicy != "" {
		policy := engine.LatePolicy(strings.ToUpper(simLatePolicy))
		if policy != engine.LateApplyNow && policy != engine.LateIgnore {
			return errors.Newf("invalid --late-policy %q: use APPLY_NOW or IGNORE", simLatePolicy)
		}
		opts.LatePolicy = policy
	}
	if simMaxLateness >= 0 {
		opts.MaxEventLatenessMin = &simMaxLateness
	}
	if simBreakdownMin >= 0 {
		opts.BreakdownReplanThresholdMin = &simBreakdownMin
	}

	bundle, err := dataset.LoadDir(datasetDir)
	if err != nil {
		return errors.Wrapf(err, "failed to load dataset from %s", datasetDir)
	}

	eng := engine.New(bundle.Orders, bundle.Matrix, cfg.Engine, logger.ComponentLogger("engine"))

	// Only the day's slice of the feed is delivered; everything earlier
	// would arrive as hours-late noise at the first minute.
	incoming := dataset.AsIncoming(clipEvents(bundle.Events, dayStart, dayEnd), "dataset/events")

	result := eng.SimulateDay(dayStart, dayEnd, incoming, opts)
	printDayResult(result)

	if simOutPath != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode day result")
		}
		if err := os.WriteFile(simOutPath, data, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", simOutPath)
		}
		pterm.Success.Printf("Day result written to %s\n", simOutPath)
	}

	return nil
}

// clipEvents keeps feed events whose timestamp falls inside the day
// window, inclusive on both ends.
func clipEvents(events []engine.Event, dayStart, dayEnd time.Time) []engine.Event {
	clipped := make([]engine.Event, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp.Before(dayStart) || ev.Timestamp.After(dayEnd) {
			continue
		}
		clipped = append(clipped, ev)
	}
	return clipped
}

func printDayResult(result engine.DayResult) {
	fmt.Printf("Day Simulation  %s → %s\n", result.DayStart, result.DayEnd)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Late policy:         %s (max lateness %d min)\n", result.LatePolicy, result.MaxEventLatenessMin)
	fmt.Printf("Breakdown threshold: %d min\n\n", result.BreakdownReplanThresholdMin)

	stats := result.Stats
	fmt.Printf("Events:  %d received, %d applied, %d ignored, %d applied late\n",
		stats.EventsReceived, stats.EventsApplied, stats.EventsIgnored, stats.LateEventsApplied)
	fmt.Printf("Replans: %d total, %d after major breakdowns\n\n", stats.Replans, stats.BreakdownReplans)

	fmt.Printf("Reports (every report shows the state at that minute):\n")
	fmt.Printf("  %-17s %-8s %-9s %6s %6s %10s\n", "time", "machine", "job", "queue", "done", "late(min)")
	for _, rep := range result.Reports {
		job := "-"
		if rep.Machine.CurrentJobID != nil {
			job = *rep.Machine.CurrentJobID
		}
		fmt.Printf("  %-17s %-8s %-9s %6d %6d %10d\n",
			rep.Time, machineWord(rep.Machine), job,
			rep.QueueSize, rep.CompletedCount, rep.TotalLatenessMinEst)
	}
	fmt.Println()

	last := result.LastState
	fmt.Printf("End of day: %d completed, %d queued, %d in pool\n",
		last.KPI.CompletedCount, last.QueueSize, last.PoolRemaining)
	fmt.Printf("Minutes:    %d producing, %d down, %d stopped, %d idle\n",
		last.KPI.ProducingMin, last.KPI.DowntimeMin, last.KPI.StoppedMin, last.KPI.IdleMin)
}

// machineWord compresses the machine flags into one column.
func machineWord(m engine.ReportMachine) string {
	switch {
	case m.IsDown:
		return "down"
	case !m.IsRunning:
		return "stopped"
	default:
		return fmt.Sprintf("x%.2g", m.SpeedFactor)
	}
}
