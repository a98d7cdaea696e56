package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meal-scheduler/internal/database"
	"meal-scheduler/internal/ledger"
)

// RunMetric records the shape and cost of a single scheduler run.
type RunMetric struct {
	WeekStart   time.Time
	OpenDates   int
	Filled      int
	Unfilled    int
	PoolSize    int
	ActiveRules int
	LatencyMS   int64
	Timestamp   time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m RunMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduler_runs (week_start, open_dates, filled, unfilled, pool_size, active_rules, latency_ms, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ledger.FormatDay(m.WeekStart), m.OpenDates, m.Filled, m.Unfilled, m.PoolSize, m.ActiveRules, m.LatencyMS,
		database.FormatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to record scheduler run: %w", err)
	}
	return nil
}

// DailySummary aggregates scheduler runs for a single day.
type DailySummary struct {
	Date         string
	Runs         int
	Filled       int
	Unfilled     int
	AvgLatencyMS float64
}

// GetDailySummary retrieves run totals for the last N days, newest first.
func (s *Store) GetDailySummary(ctx context.Context, days int) ([]DailySummary, error) {
	since := database.FormatTime(time.Now().AddDate(0, 0, -days))
	rows, err := s.db.QueryContext(ctx,
		`SELECT substr(timestamp, 1, 10) AS day, COUNT(*), SUM(filled), SUM(unfilled), AVG(latency_ms)
		 FROM scheduler_runs WHERE timestamp >= ? GROUP BY day ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summary: %w", err)
	}
	defer rows.Close()

	var results []DailySummary
	for rows.Next() {
		var d DailySummary
		if err := rows.Scan(&d.Date, &d.Runs, &d.Filled, &d.Unfilled, &d.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan daily summary: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := database.FormatTime(time.Now().AddDate(0, 0, -olderThanDays))
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduler_runs WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up scheduler runs: %w", err)
	}
	return res.RowsAffected()
}
