package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meal-scheduler/internal/database"
)

// ErrVersionConflict is returned when a week changed after it was read.
var ErrVersionConflict = errors.New("plan week changed since snapshot")

// DefaultMealType is used when an entry carries no meal type.
const DefaultMealType = "dinner"

// Versions maps a week start (YYYY-MM-DD) to the week's version counter.
type Versions map[string]int64

// Repository is a database-backed repository for meal plan entries.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

const entryColumns = `id, date, meal_type, recipe_id, status, notes`

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var (
		e      Entry
		date   string
		status string
	)
	if err := row.Scan(&e.ID, &date, &e.MealType, &e.RecipeID, &status, &e.Notes); err != nil {
		return Entry{}, err
	}
	d, err := ParseDay(date)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to parse entry date %q: %w", date, err)
	}
	e.Date = d
	e.Status = Status(status)
	return e, nil
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListBetween returns every entry dated inside w, skipped ones included.
func (r *Repository) ListBetween(ctx context.Context, w Window) ([]Entry, error) {
	entries, err := r.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM meal_plan_entries WHERE date BETWEEN ? AND ? ORDER BY date, id`,
		FormatDay(w.Start), FormatDay(w.End))
	if err != nil {
		return nil, fmt.Errorf("failed to list plan entries: %w", err)
	}
	return entries, nil
}

// ListAll returns the full plan history.
func (r *Repository) ListAll(ctx context.Context) ([]Entry, error) {
	entries, err := r.queryEntries(ctx, `SELECT `+entryColumns+` FROM meal_plan_entries ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan entries: %w", err)
	}
	return entries, nil
}

// Get retrieves an entry by ID. It returns nil when the entry does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (*Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM meal_plan_entries WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan entry %d: %w", id, err)
	}
	return &e, nil
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Add inserts an entry and bumps the version of its week.
func (r *Repository) Add(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertEntry(ctx, tx, e)
		if err != nil {
			return err
		}
		return bumpWeek(ctx, tx, e.Date)
	})
	return id, err
}

// UpdateStatus changes an entry's status, e.g. marking it cooked or skipped.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		date, err := entryDate(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE meal_plan_entries SET status = ? WHERE id = ?`, string(status), id); err != nil {
			return fmt.Errorf("failed to update plan entry %d: %w", id, err)
		}
		return bumpWeek(ctx, tx, date)
	})
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		date, err := entryDate(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM meal_plan_entries WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete plan entry %d: %w", id, err)
		}
		return bumpWeek(ctx, tx, date)
	})
}

// WeekVersions reads the version of every week overlapping w.
func (r *Repository) WeekVersions(ctx context.Context, w Window) (Versions, error) {
	return weekVersions(ctx, r.db, w)
}

// AcceptBatch inserts entries only if none of the weeks in expected changed
// since they were read. It returns ErrVersionConflict otherwise.
func (r *Repository) AcceptBatch(ctx context.Context, expected Versions, entries []Entry) ([]int64, error) {
	var ids []int64
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		for week, want := range expected {
			got, err := weekVersion(ctx, tx, week)
			if err != nil {
				return err
			}
			if got != want {
				return fmt.Errorf("%w: week %s at version %d, expected %d", ErrVersionConflict, week, got, want)
			}
		}
		for _, e := range entries {
			id, err := insertEntry(ctx, tx, e)
			if err != nil {
				return err
			}
			if err := bumpWeek(ctx, tx, e.Date); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertEntry(ctx context.Context, tx *sql.Tx, e Entry) (int64, error) {
	if e.MealType == "" {
		e.MealType = DefaultMealType
	}
	if e.Status == "" {
		e.Status = StatusPlanned
	}
	if _, err := ParseStatus(string(e.Status)); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO meal_plan_entries (date, meal_type, recipe_id, status, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		FormatDay(e.Date), e.MealType, e.RecipeID, string(e.Status), e.Notes, database.FormatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to insert plan entry: %w", err)
	}
	return res.LastInsertId()
}

func entryDate(ctx context.Context, tx *sql.Tx, id int64) (time.Time, error) {
	var date string
	err := tx.QueryRowContext(ctx, `SELECT date FROM meal_plan_entries WHERE id = ?`, id).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("plan entry %d not found", id)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read plan entry %d: %w", id, err)
	}
	return ParseDay(date)
}

func bumpWeek(ctx context.Context, tx *sql.Tx, date time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO plan_weeks (week_start, version, updated_at) VALUES (?, 1, ?)
		 ON CONFLICT(week_start) DO UPDATE SET version = version + 1, updated_at = excluded.updated_at`,
		FormatDay(WeekStart(date)), database.FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to bump plan week version: %w", err)
	}
	return nil
}

func weekVersion(ctx context.Context, q queryer, week string) (int64, error) {
	var v int64
	err := q.QueryRowContext(ctx, `SELECT version FROM plan_weeks WHERE week_start = ?`, week).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read version of week %s: %w", week, err)
	}
	return v, nil
}

func weekVersions(ctx context.Context, q queryer, w Window) (Versions, error) {
	out := Versions{}
	for ws := WeekStart(w.Start); !ws.After(w.End); ws = ws.AddDate(0, 0, 7) {
		key := FormatDay(ws)
		v, err := weekVersion(ctx, q, key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
