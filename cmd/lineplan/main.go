package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tecpap/lineplan/cmd/lineplan/commands"
	"github.com/tecpap/lineplan/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lineplan",
	Short: "lineplan - Production line scheduling engine",
	Long: `lineplan - Event-driven scheduling for a single production machine.

lineplan keeps a minute-resolution model of one machine: a pool of work
orders, a release queue ordered by a setup-aware greedy heuristic, and a
journal of every event that touched the plan. Shift, breakdown, speed
and urgent-order events move the machine clock; the plan follows.

Available commands:
  serve     - Start the HTTP/WebSocket API server over a dataset
  simulate  - Play a full day offline and print the outcome
  plan      - Print the plan preview for a dataset
  generate  - Write a synthetic demo dataset
  config    - Manage lineplan configuration
  version   - Show version information

Examples:
  lineplan generate --dir data     # Create a demo dataset
  lineplan serve --dataset data    # Serve it on :8000
  lineplan plan --dataset data     # Preview the queue as a schedule
  lineplan simulate --dataset data --day-start 2026-01-05T08:00 --day-end 2026-01-05T16:00`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize the global logger before any command runs. Plain
		// invocations stay quiet (warnings only); -v and -vv raise it.
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithLevel(false, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.SimulateCmd)
	rootCmd.AddCommand(commands.PlanCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
