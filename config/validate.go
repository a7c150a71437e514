package config

import (
	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Dataset.Dir == "" {
		return errors.New("dataset.dir cannot be empty")
	}
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be in 1..65535, got %d", c.Server.Port)
	}

	switch c.Engine.LatePolicy {
	case engine.LateApplyNow, engine.LateIgnore:
	default:
		return errors.Newf("engine.late_policy must be %s or %s, got %q",
			engine.LateApplyNow, engine.LateIgnore, c.Engine.LatePolicy)
	}
	if c.Engine.MaxEventLatenessMin < 0 {
		return errors.Newf("engine.max_event_lateness_min must be >= 0, got %d", c.Engine.MaxEventLatenessMin)
	}
	if c.Engine.ReplanThresholdTotalLateMin < 0 {
		return errors.Newf("engine.replan_threshold_total_late_min must be >= 0, got %d", c.Engine.ReplanThresholdTotalLateMin)
	}
	if c.Engine.BreakdownReplanThresholdMin < 0 {
		return errors.Newf("engine.breakdown_replan_threshold_min must be >= 0, got %d", c.Engine.BreakdownReplanThresholdMin)
	}

	if c.Realtime.CompressToSeconds <= 0 {
		return errors.Newf("realtime.compress_to_seconds must be > 0, got %d", c.Realtime.CompressToSeconds)
	}
	if c.Realtime.TickSeconds <= 0 {
		return errors.Newf("realtime.tick_seconds must be > 0, got %f", c.Realtime.TickSeconds)
	}

	return nil
}
