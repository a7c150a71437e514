package logger

import "go.uber.org/zap"

// Standard field names for consistent structured logging across lineplan.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldOrderID = "of_id"
	FieldRunID   = "run_id"
	FieldEntryID = "entry_id"

	// Events and decisions
	FieldEventType    = "event_type"
	FieldEventStatus  = "status"
	FieldReason       = "reason"
	FieldReplanReason = "replan_reason"
	FieldSource       = "source"

	// Simulated time
	FieldSimTime  = "sim_time"
	FieldDayStart = "day_start"
	FieldDayEnd   = "day_end"

	// Counts and durations
	FieldQueueSize   = "queue_size"
	FieldCount       = "count"
	FieldDurationMS  = "duration_ms"
	FieldLatenessMin = "lateness_min"

	// Errors
	FieldError = "error"

	// Components
	FieldComponent = "component"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Runner struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewRunner() *Runner {
//	    return &Runner{
//	        logger: logger.ComponentLogger("runner"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
// Use for sub-operations that need extra context fields.
//
// Example:
//
//	runLogger := logger.ChildLogger(baseLogger, "run_id", run.ID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
