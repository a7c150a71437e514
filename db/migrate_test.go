package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("successfully opens database and runs migrations", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		conn, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, conn)
		defer conn.Close()

		// Verify schema_migrations table exists (created by migrations)
		for _, table := range []string{"schema_migrations", "journal_entries", "runs", "hourly_reports"} {
			var exists int
			err = conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&exists)
			require.NoError(t, err)
			assert.Equal(t, 1, exists, "table %s should exist after migrations", table)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		conn, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NoError(t, Migrate(conn, nil))
		conn.Close()

		// Reopen: all migrations recorded, nothing to apply
		conn, err = OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer conn.Close()

		var count int
		err = conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("foreign keys enforced on hourly_reports", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		conn, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Exec(`INSERT INTO hourly_reports
			(id, run_id, sim_time, is_running, is_down, speed_factor, queue_size,
			 completed_count, total_lateness_min, downtime_min, stopped_min,
			 idle_min, producing_min, created_at)
			VALUES ('r1', 'missing-run', '2026-01-05T09:00', 1, 0, 1.0, 3, 1, 0, 0, 0, 0, 60, '2026-01-05T09:00:00Z')`)
		assert.Error(t, err, "insert referencing a missing run must fail")
	})
}
