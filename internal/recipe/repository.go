package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"meal-scheduler/internal/database"
)

const (
	kindProtein = "protein"
	kindTag     = "tag"
)

// Record is a catalog row as imported from the recipe source.
type Record struct {
	ExternalID string
	Title      string
	Proteins   []string
	Tags       []string
	Rating     *float64
	Archived   bool
	UpdatedAt  time.Time
}

// Repository is a database-backed repository for recipe facets.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Upsert inserts or updates a recipe keyed by its external id and replaces its facets.
func (r *Repository) Upsert(ctx context.Context, rec Record) (int64, error) {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO recipes (external_id, title, archived, rating, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			title = excluded.title,
			archived = excluded.archived,
			rating = excluded.rating,
			updated_at = excluded.updated_at
		RETURNING id`,
		rec.ExternalID, rec.Title, rec.Archived, rec.Rating, database.FormatTime(rec.UpdatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert recipe %s: %w", rec.ExternalID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_facets WHERE recipe_id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to clear facets of recipe %d: %w", id, err)
	}
	insert := func(kind string, names []string) error {
		for _, n := range NewSet(names...).Sorted() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO recipe_facets (recipe_id, kind, name) VALUES (?, ?, ?)`, id, kind, n); err != nil {
				return fmt.Errorf("failed to insert %s facet %q: %w", kind, n, err)
			}
		}
		return nil
	}
	if err := insert(kindProtein, rec.Proteins); err != nil {
		return 0, err
	}
	if err := insert(kindTag, rec.Tags); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit recipe %s: %w", rec.ExternalID, err)
	}
	return id, nil
}

// SetArchived toggles whether a recipe is offered for planning.
func (r *Repository) SetArchived(ctx context.Context, id int64, archived bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recipes SET archived = ? WHERE id = ?`, archived, id)
	if err != nil {
		return fmt.Errorf("failed to update recipe %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recipe %d not found", id)
	}
	return nil
}

// Get retrieves a facet by id. It returns nil when the recipe does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (*Facet, error) {
	f, err := r.scanFacet(r.db.QueryRowContext(ctx,
		`SELECT id, title, archived, rating FROM recipes WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe %d: %w", id, err)
	}
	if err := r.loadFacets(ctx, map[int64]*Facet{f.ID: &f}); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindByTitle returns the recipes whose title contains q, ignoring case.
func (r *Repository) FindByTitle(ctx context.Context, q string) ([]Facet, error) {
	return r.list(ctx, `SELECT id, title, archived, rating FROM recipes WHERE title LIKE ? ORDER BY id`, "%"+q+"%")
}

// ListFacets returns every recipe, archived ones included.
func (r *Repository) ListFacets(ctx context.Context) ([]Facet, error) {
	return r.list(ctx, `SELECT id, title, archived, rating FROM recipes ORDER BY id`)
}

// Catalog loads the whole catalog as a snapshot.
func (r *Repository) Catalog(ctx context.Context) (*Catalog, error) {
	facets, err := r.ListFacets(ctx)
	if err != nil {
		return nil, err
	}
	return NewCatalog(facets), nil
}

// Count returns the number of recipes in the database.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return n, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Facet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	var facets []Facet
	for rows.Next() {
		f, err := r.scanFacet(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		facets = append(facets, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	byID := make(map[int64]*Facet, len(facets))
	for i := range facets {
		byID[facets[i].ID] = &facets[i]
	}
	if err := r.loadFacets(ctx, byID); err != nil {
		return nil, err
	}
	return facets, nil
}

func (r *Repository) scanFacet(row interface{ Scan(...any) error }) (Facet, error) {
	var (
		f      Facet
		rating sql.NullFloat64
	)
	if err := row.Scan(&f.ID, &f.Title, &f.Archived, &rating); err != nil {
		return Facet{}, err
	}
	if rating.Valid {
		v := rating.Float64
		f.Rating = &v
	}
	f.Proteins, f.Tags = Set{}, Set{}
	return f, nil
}

// loadFacets fills proteins and tags for the given recipes.
func (r *Repository) loadFacets(ctx context.Context, byID map[int64]*Facet) error {
	if len(byID) == 0 {
		return nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT recipe_id, kind, name FROM recipe_facets`)
	if err != nil {
		return fmt.Errorf("failed to load recipe facets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id         int64
			kind, name string
		)
		if err := rows.Scan(&id, &kind, &name); err != nil {
			return fmt.Errorf("failed to scan recipe facet: %w", err)
		}
		f, ok := byID[id]
		if !ok {
			continue
		}
		switch kind {
		case kindProtein:
			f.Proteins[name] = struct{}{}
		case kindTag:
			f.Tags[name] = struct{}{}
		}
	}
	return rows.Err()
}

// ArchiveMissing archives imported recipes whose external id is not in keep.
// Recipes created without an external id are left alone.
func (r *Repository) ArchiveMissing(ctx context.Context, keep []string) (int64, error) {
	query := `UPDATE recipes SET archived = 1 WHERE external_id IS NOT NULL AND archived = 0`
	args := make([]any, 0, len(keep))
	if len(keep) > 0 {
		query += ` AND external_id NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to archive missing recipes: %w", err)
	}
	return res.RowsAffected()
}
