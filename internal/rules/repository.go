package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meal-scheduler/internal/database"
)

// Repository is a database-backed store of dietary rules. Configs are
// validated on the way in and on the way out.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

const ruleColumns = `id, name, rule_type, config, active, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (Rule, error) {
	var (
		r                    Rule
		kind, cfg            string
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.Name, &kind, &cfg, &r.Active, &createdAt, &updatedAt); err != nil {
		return Rule{}, err
	}
	r.Kind = Kind(kind)
	c, err := DecodeConfig(r.Kind, []byte(cfg))
	if err != nil {
		return Rule{}, withRuleID(err, r.ID)
	}
	r.Config = c
	r.CreatedAt, _ = database.ParseTime(createdAt)
	r.UpdatedAt, _ = database.ParseTime(updatedAt)
	return r, nil
}

func (s *Repository) query(ctx context.Context, query string, args ...any) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return out, nil
}

// List returns every rule ordered by id. A stored rule with a malformed
// config fails the whole call rather than being skipped.
func (s *Repository) List(ctx context.Context) ([]Rule, error) {
	return s.query(ctx, `SELECT `+ruleColumns+` FROM dietary_rules ORDER BY id`)
}

// ListActive returns the active rules ordered by id.
func (s *Repository) ListActive(ctx context.Context) ([]Rule, error) {
	return s.query(ctx, `SELECT `+ruleColumns+` FROM dietary_rules WHERE active = 1 ORDER BY id`)
}

// Get retrieves a rule by id, returning ErrNotFound if it does not exist.
func (s *Repository) Get(ctx context.Context, id int64) (Rule, error) {
	r, err := scanRule(s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM dietary_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Rule{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Create validates and stores a new rule, returning it with its id.
func (s *Repository) Create(ctx context.Context, r Rule) (Rule, error) {
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	cfg, err := EncodeConfig(r.Config)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to encode rule config: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO dietary_rules (name, rule_type, config, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, string(r.Kind), string(cfg), r.Active, database.FormatTime(now), database.FormatTime(now))
	if err != nil {
		return Rule{}, fmt.Errorf("failed to insert rule: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return Rule{}, fmt.Errorf("failed to read rule id: %w", err)
	}
	r.CreatedAt, r.UpdatedAt = now, now
	return r, nil
}

// Update replaces a rule's name, kind, config and active flag. The change
// only affects evaluations made after it.
func (s *Repository) Update(ctx context.Context, r Rule) (Rule, error) {
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	cfg, err := EncodeConfig(r.Config)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to encode rule config: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE dietary_rules SET name = ?, rule_type = ?, config = ?, active = ?, updated_at = ? WHERE id = ?`,
		r.Name, string(r.Kind), string(cfg), r.Active, database.FormatTime(now), r.ID)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to update rule %d: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Rule{}, fmt.Errorf("%w: %d", ErrNotFound, r.ID)
	}
	return s.Get(ctx, r.ID)
}

// SetActive toggles a rule without touching its config.
func (s *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dietary_rules SET active = ?, updated_at = ? WHERE id = ?`,
		active, database.FormatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// Delete removes a rule.
func (s *Repository) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dietary_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
