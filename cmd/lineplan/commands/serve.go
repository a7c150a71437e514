package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tecpap/lineplan/config"
	"github.com/tecpap/lineplan/dataset"
	"github.com/tecpap/lineplan/db"
	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
	"github.com/tecpap/lineplan/history"
	"github.com/tecpap/lineplan/logger"
	"github.com/tecpap/lineplan/runner"
	"github.com/tecpap/lineplan/server"
)

// ServeCmd starts the lineplan API server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the lineplan HTTP/WebSocket server",
	Long: `Launch the scheduling API over a dataset directory. The server exposes
machine state, event ingestion, day simulation, plan previews, realtime
runs, and a WebSocket feed of state changes and hourly reports.`,
	RunE: runServe,
}

var (
	servePort       int
	serveDatasetDir string
	serveDBPath     string
	serveNoDB       bool
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().StringVar(&serveDatasetDir, "dataset", "", "Dataset directory (overrides config)")
	ServeCmd.Flags().StringVar(&serveDBPath, "db", "", "History database path (overrides config)")
	ServeCmd.Flags().BoolVar(&serveNoDB, "no-db", false, "Run without the history store")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Get verbosity flag - default to 1 (Info) for serve
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	// Reinitialize the logger now that the effective output format and
	// level are known.
	if err := logger.InitializeWithLevel(cfg.Log.JSON, logger.VerbosityToLevel(verbosity)); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	// Flag overrides: --port > config, --dataset > config, --db > config
	datasetDir := cfg.Dataset.Dir
	if serveDatasetDir != "" {
		datasetDir = serveDatasetDir
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	dbPath := cfg.Database.Path
	if serveDBPath != "" {
		dbPath = serveDBPath
	}

	bundle, err := dataset.LoadDir(datasetDir)
	if err != nil {
		return errors.Wrapf(err, "failed to load dataset from %s", datasetDir)
	}

	eng := engine.New(bundle.Orders, bundle.Matrix, cfg.Engine, logger.ComponentLogger("engine"))
	run := runner.New(eng, logger.ComponentLogger("runner"))

	// Open and migrate the history database unless disabled
	var store *history.Store
	if serveNoDB {
		dbPath = ""
	} else {
		conn, err := db.OpenWithMigrations(dbPath, logger.ComponentLogger("db"))
		if err != nil {
			return errors.Wrap(err, "failed to open history database")
		}
		defer conn.Close()
		store = history.New(conn)
		run.SetRecorder(store)
	}

	srv, err := server.New(eng, run, server.Options{
		Store:          store,
		DatasetDir:     datasetDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger.ComponentLogger("server"),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	// Print startup banner
	printStartupBanner(verbosity, datasetDir, dbPath, port)
	pterm.Info.Printf("Loaded %d work orders, %d setup pairs, %d feed events\n",
		len(bundle.Orders), bundle.Matrix.Len(), len(bundle.Events))

	watcher := startConfigWatcher(verbosity)
	if watcher != nil {
		defer watcher.Stop()
	}

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	// Wait for shutdown signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		// Server failed to start or stopped unexpectedly
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		// Start graceful shutdown in background
		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		// Wait for either shutdown completion or second Ctrl+C
		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			// Second Ctrl+C - force immediate exit
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// startConfigWatcher watches lineplan.toml while the server runs.
// Reloads only adjust what can change live; the engine and the server
// keep the settings they were built with until restart.
func startConfigWatcher(verbosity int) *config.ConfigWatcher {
	path := config.FindConfigPath()
	if path == "" {
		return nil
	}

	watcher, err := config.NewConfigWatcher(path)
	if err != nil {
		logger.Warnw("Config watcher unavailable",
			"path", path,
			"error", err)
		return nil
	}

	watcher.OnReload(func(cfg *config.Config) error {
		if cfg.Log.JSON != logger.JSONOutput {
			if err := logger.InitializeWithLevel(cfg.Log.JSON, logger.VerbosityToLevel(verbosity)); err != nil {
				return errors.Wrap(err, "failed to reinitialize logger")
			}
		}
		logger.Infow("Configuration reloaded; dataset, port and engine settings apply on restart",
			"path", path)
		return nil
	})

	config.SetGlobalWatcher(watcher)
	watcher.Start()
	logger.Debugw("Config watcher started", "path", path)
	return watcher
}
