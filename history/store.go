// Package history persists the engine's decision trail: journal
// entries, realtime runs, and the hourly snapshots each run emits.
// Writers are fire-and-forget from the callers' point of view; a
// failed insert is logged upstream and never disturbs the engine.
package history

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
	"github.com/tecpap/lineplan/runner"
)

// DefaultJournalLimit bounds journal listings when the caller does not
// ask for a specific page size.
const DefaultJournalLimit = 100

// Store handles reads and writes on the history tables.
type Store struct {
	db *sql.DB
}

// Store doubles as the runner's persistence sink.
var _ runner.Recorder = (*Store)(nil)

// New creates a store over an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// JournalRecord is one archived journal entry.
type JournalRecord struct {
	ID string `json:"id"`
	engine.JournalEntry
	CreatedAt string `json:"created_at"`
}

// RunRecord is one realtime run.
type RunRecord struct {
	ID                string  `json:"id"`
	DayStart          string  `json:"day_start"`
	DayEnd            string  `json:"day_end"`
	CompressToSeconds int     `json:"compress_to_seconds"`
	TickSeconds       float64 `json:"tick_seconds"`
	Status            string  `json:"status"`
	StartedAt         string  `json:"started_at"`
	StoppedAt         *string `json:"stopped_at"`
}

// ReportRecord is one persisted hourly snapshot.
type ReportRecord struct {
	ID               string  `json:"id"`
	RunID            string  `json:"run_id"`
	SimTime          string  `json:"sim_time"`
	IsRunning        bool    `json:"is_running"`
	IsDown           bool    `json:"is_down"`
	SpeedFactor      float64 `json:"speed_factor"`
	CurrentFormat    *string `json:"current_format"`
	CurrentJobID     *string `json:"current_job_id"`
	QueueSize        int     `json:"queue_size"`
	CompletedCount   int     `json:"completed_count"`
	TotalLatenessMin int     `json:"total_lateness_min"`
	DowntimeMin      int     `json:"downtime_min"`
	StoppedMin       int     `json:"stopped_min"`
	IdleMin          int     `json:"idle_min"`
	ProducingMin     int     `json:"producing_min"`
	CreatedAt        string  `json:"created_at"`
}

// InsertJournal archives one journal entry and returns its row id.
func (s *Store) InsertJournal(entry engine.JournalEntry) (string, error) {
	id := uuid.New().String()

	var dur *int64
	if entry.BreakdownDurationMin != nil {
		v := int64(*entry.BreakdownDurationMin)
		dur = &v
	}

	_, err := s.db.Exec(`
		INSERT INTO journal_entries (
			id, received_at, source, engine_now_before, event_timestamp,
			event_type, event_value, status, reason,
			late_applied, replanned, replan_reason, breakdown_duration_min,
			engine_now_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, entry.ReceivedAt, entry.Source, entry.EngineNowBefore, entry.EventTimestamp,
		entry.Type, entry.Value, entry.Status, entry.Reason,
		entry.LateApplied, entry.Replanned, entry.ReplanReason, dur,
		entry.EngineNowAfter, nowRFC3339(),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert journal entry")
	}
	return id, nil
}

// ListJournal returns archived journal entries, newest first.
func (s *Store) ListJournal(limit, offset int) ([]JournalRecord, error) {
	if limit <= 0 {
		limit = DefaultJournalLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(`
		SELECT id, received_at, source, engine_now_before, event_timestamp,
			event_type, event_value, status, reason,
			late_applied, replanned, replan_reason, breakdown_duration_min,
			engine_now_after, created_at
		FROM journal_entries
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list journal entries")
	}
	defer rows.Close()

	records := make([]JournalRecord, 0, limit)
	for rows.Next() {
		rec, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountJournal returns the number of archived journal entries.
func (s *Store) CountJournal() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM journal_entries`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count journal entries")
	}
	return n, nil
}

// StartRun records a new realtime run and returns its id.
func (s *Store) StartRun(cfg runner.Config) (string, error) {
	id := uuid.New().String()

	_, err := s.db.Exec(`
		INSERT INTO runs (id, day_start, day_end, compress_to_seconds, tick_seconds, status, started_at)
		VALUES (?, ?, ?, ?, ?, 'running', ?)`,
		id,
		engine.FormatMinute(cfg.DayStart),
		engine.FormatMinute(cfg.DayEnd),
		cfg.CompressToSeconds,
		cfg.TickSeconds,
		nowRFC3339(),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert run")
	}
	return id, nil
}

// FinishRun closes out a run with its final status.
func (s *Store) FinishRun(runID, status string) error {
	res, err := s.db.Exec(`
		UPDATE runs SET status = ?, stopped_at = ? WHERE id = ?`,
		status, nowRFC3339(), runID)
	if err != nil {
		return errors.Wrap(err, "failed to update run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check run update")
	}
	if n == 0 {
		return errors.NewNotFoundError("run %s not found", runID)
	}
	return nil
}

// SaveReport persists one hourly snapshot under a run.
func (s *Store) SaveReport(runID string, rep engine.HourlyReport) error {
	_, err := s.db.Exec(`
		INSERT INTO hourly_reports (
			id, run_id, sim_time,
			is_running, is_down, speed_factor, current_format, current_job_id,
			queue_size, completed_count, total_lateness_min,
			downtime_min, stopped_min, idle_min, producing_min,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, rep.Time,
		rep.Machine.IsRunning, rep.Machine.IsDown, rep.Machine.SpeedFactor,
		rep.Machine.CurrentFormat, rep.Machine.CurrentJobID,
		rep.QueueSize, rep.CompletedCount, rep.TotalLatenessMinEst,
		rep.CountersMin.Downtime, rep.CountersMin.Stopped,
		rep.CountersMin.Idle, rep.CountersMin.Producing,
		nowRFC3339(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert hourly report")
	}
	return nil
}

// GetRun fetches a single run by id.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, day_start, day_end, compress_to_seconds, tick_seconds, status, started_at, stopped_at
		FROM runs WHERE id = ?`, runID)

	var rec RunRecord
	var stoppedAt sql.NullString
	err := row.Scan(&rec.ID, &rec.DayStart, &rec.DayEnd, &rec.CompressToSeconds,
		&rec.TickSeconds, &rec.Status, &rec.StartedAt, &stoppedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("run %s not found", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan run")
	}
	if stoppedAt.Valid {
		rec.StoppedAt = &stoppedAt.String
	}
	return &rec, nil
}

// ListRuns returns runs, most recently started first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultJournalLimit
	}

	rows, err := s.db.Query(`
		SELECT id, day_start, day_end, compress_to_seconds, tick_seconds, status, started_at, stopped_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var stoppedAt sql.NullString
		err := rows.Scan(&rec.ID, &rec.DayStart, &rec.DayEnd, &rec.CompressToSeconds,
			&rec.TickSeconds, &rec.Status, &rec.StartedAt, &stoppedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		if stoppedAt.Valid {
			rec.StoppedAt = &stoppedAt.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListReports returns a run's hourly snapshots in emission order.
func (s *Store) ListReports(runID string) ([]ReportRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, sim_time,
			is_running, is_down, speed_factor, current_format, current_job_id,
			queue_size, completed_count, total_lateness_min,
			downtime_min, stopped_min, idle_min, producing_min,
			created_at
		FROM hourly_reports
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list hourly reports")
	}
	defer rows.Close()

	var records []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var format, jobID sql.NullString
		err := rows.Scan(&rec.ID, &rec.RunID, &rec.SimTime,
			&rec.IsRunning, &rec.IsDown, &rec.SpeedFactor, &format, &jobID,
			&rec.QueueSize, &rec.CompletedCount, &rec.TotalLatenessMin,
			&rec.DowntimeMin, &rec.StoppedMin, &rec.IdleMin, &rec.ProducingMin,
			&rec.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan hourly report")
		}
		if format.Valid {
			rec.CurrentFormat = &format.String
		}
		if jobID.Valid {
			rec.CurrentJobID = &jobID.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanJournal(rows *sql.Rows) (JournalRecord, error) {
	var rec JournalRecord
	var dur sql.NullInt64
	err := rows.Scan(
		&rec.ID, &rec.ReceivedAt, &rec.Source, &rec.EngineNowBefore, &rec.EventTimestamp,
		&rec.Type, &rec.Value, &rec.Status, &rec.Reason,
		&rec.LateApplied, &rec.Replanned, &rec.ReplanReason, &dur,
		&rec.EngineNowAfter, &rec.CreatedAt,
	)
	if err != nil {
		return rec, errors.Wrap(err, "failed to scan journal entry")
	}
	if dur.Valid {
		v := int(dur.Int64)
		rec.BreakdownDurationMin = &v
	}
	return rec, nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
