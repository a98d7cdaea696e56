package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plan.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"recipes", "recipe_facets", "dietary_rules", "meal_plan_entries", "plan_weeks", "calendar_events", "scheduler_runs"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	t.Run("MigrationsAreIdempotent", func(t *testing.T) {
		require.NoError(t, RunMigrations(path))
	})
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 9, 18, 30, 0, 0, time.UTC)
	parsed, err := ParseTime(FormatTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
}
