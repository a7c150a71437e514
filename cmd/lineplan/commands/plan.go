package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tecpap/lineplan/config"
	"github.com/tecpap/lineplan/dataset"
	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
	"github.com/tecpap/lineplan/logger"
)

// PlanCmd prints the plan preview for a dataset without serving it
var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the plan preview for a dataset",
	Long: `Project the release queue into a schedule from the machine clock,
chaining setup times between formats. The preview is read-only: the
machine does not move and nothing is written.

Examples:
  lineplan plan --dataset data              # First 20 queued orders
  lineplan plan --dataset data --limit 0    # Whole queue
  lineplan plan --dataset data --out plan.csv`,
	RunE: runPlan,
}

var (
	planDatasetDir string
	planLimit      int
	planOutPath    string
)

func init() {
	PlanCmd.Flags().StringVar(&planDatasetDir, "dataset", "", "Dataset directory (overrides config)")
	PlanCmd.Flags().IntVar(&planLimit, "limit", 20, "Maximum rows to project (0 = whole queue)")
	PlanCmd.Flags().StringVar(&planOutPath, "out", "", "Also write the preview as CSV to this file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	datasetDir := cfg.Dataset.Dir
	if planDatasetDir != "" {
		datasetDir = planDatasetDir
	}

	bundle, err := dataset.LoadDir(datasetDir)
	if err != nil {
		return errors.Wrapf(err, "failed to load dataset from %s", datasetDir)
	}

	eng := engine.New(bundle.Orders, bundle.Matrix, cfg.Engine, logger.ComponentLogger("engine"))

	limit := planLimit
	if limit <= 0 {
		limit = len(eng.QueueIDs())
	}
	rows := eng.PlanPreview(limit)

	fmt.Printf("Plan Preview  (machine clock %s)\n", engine.FormatMinute(eng.Now()))
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	if len(rows) == 0 {
		fmt.Println("Queue is empty: nothing released yet")
		return nil
	}

	fmt.Printf("  %-9s %-7s %-17s %-17s %6s %6s\n", "of_id", "format", "start", "end", "setup", "work")
	totalSetup, totalWork := 0, 0
	for _, row := range rows {
		fmt.Printf("  %-9s %-7s %-17s %-17s %6d %6d\n",
			row.OFID, row.Format, row.Start, row.End, row.SetupMin, row.WorkNominalMin)
		totalSetup += row.SetupMin
		totalWork += row.WorkNominalMin
	}
	fmt.Println()
	fmt.Printf("Rows:      %d of %d queued\n", len(rows), len(eng.QueueIDs()))
	fmt.Printf("Totals:    %d min setup, %d min nominal work\n", totalSetup, totalWork)
	fmt.Printf("Projected: queue drains at %s\n", rows[len(rows)-1].End)

	if planOutPath != "" {
		f, err := os.Create(planOutPath)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", planOutPath)
		}
		defer f.Close()
		if err := dataset.WritePlanCSV(f, rows); err != nil {
			return errors.Wrap(err, "failed to write plan CSV")
		}
		pterm.Success.Printf("Plan written to %s\n", planOutPath)
	}

	return nil
}
