package calendar

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meal-scheduler/internal/database"
	"meal-scheduler/internal/ledger"
)

// Repository is a database-backed store of calendar events.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Add stores an event. The dinner-conflict flag is derived from the event
// unless force is set, in which case the given flag is kept.
func (r *Repository) Add(ctx context.Context, e Event, force bool) (Event, error) {
	if !force {
		e.DinnerConflict = IsDinnerConflict(e)
	}
	if e.Source == "" {
		e.Source = "manual"
	}
	e.Date = ledger.Day(e.Date)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO calendar_events (date, start_time, end_time, summary, is_dinner_conflict, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ledger.FormatDay(e.Date), e.Start, e.End, e.Summary, e.DinnerConflict, e.Source, database.FormatTime(time.Now()))
	if err != nil {
		return Event{}, fmt.Errorf("failed to insert calendar event: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Event{}, fmt.Errorf("failed to read calendar event id: %w", err)
	}
	return e, nil
}

// Delete removes an event.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete calendar event %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("calendar event %d not found", id)
	}
	return nil
}

// ListBetween returns the events dated inside w.
func (r *Repository) ListBetween(ctx context.Context, w ledger.Window) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, start_time, end_time, summary, is_dinner_conflict, source
		 FROM calendar_events WHERE date BETWEEN ? AND ? ORDER BY date, start_time, id`,
		ledger.FormatDay(w.Start), ledger.FormatDay(w.End))
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			date string
		)
		if err := rows.Scan(&e.ID, &date, &e.Start, &e.End, &e.Summary, &e.DinnerConflict, &e.Source); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		if e.Date, err = ledger.ParseDay(date); err != nil {
			return nil, fmt.Errorf("failed to parse calendar event date %q: %w", date, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
