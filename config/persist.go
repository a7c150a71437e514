package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/tecpap/lineplan/errors"
	"github.com/tecpap/lineplan/logger"
)

// createBackup rotates .back1 -> .back2 -> .back3 and copies the
// current file to .back1 before a write.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old config backup",
			"path", back3,
			"error", err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// AsTOML renders cfg in the same layout Write persists.
func AsTOML(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(asMap(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}

// Write persists cfg as TOML to path, rotating backups first.
func Write(cfg *Config, path string) error {
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create config directory")
		}
	}

	data, err := AsTOML(cfg)
	if err != nil {
		return err
	}

	// Mark this as our own write to prevent reload loops.
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	return Write(Default(), path)
}

// asMap lays the config out section by section so the TOML keys match
// what Load reads back.
func asMap(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"dataset": map[string]interface{}{
			"dir": cfg.Dataset.Dir,
		},
		"database": map[string]interface{}{
			"path": cfg.Database.Path,
		},
		"server": map[string]interface{}{
			"port":            cfg.Server.Port,
			"allowed_origins": cfg.Server.AllowedOrigins,
		},
		"engine": map[string]interface{}{
			"late_policy":                     string(cfg.Engine.LatePolicy),
			"max_event_lateness_min":          cfg.Engine.MaxEventLatenessMin,
			"replan_threshold_total_late_min": cfg.Engine.ReplanThresholdTotalLateMin,
			"breakdown_replan_threshold_min":  cfg.Engine.BreakdownReplanThresholdMin,
		},
		"realtime": map[string]interface{}{
			"compress_to_seconds": cfg.Realtime.CompressToSeconds,
			"tick_seconds":        cfg.Realtime.TickSeconds,
		},
		"log": map[string]interface{}{
			"json": cfg.Log.JSON,
		},
	}
}
