package catalog

import (
	"context"
	"fmt"

	"meal-scheduler/internal/ghost"
	"meal-scheduler/internal/logger"
	"meal-scheduler/internal/recipe"
)

// SyncResult summarises one catalog sync.
type SyncResult struct {
	Imported int
	Archived int64
}

// Syncer imports recipe facets from Ghost into the local catalog.
type Syncer struct {
	ghost         ghost.Client
	recipes       *recipe.Repository
	proteinPrefix string
	log           *logger.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(client ghost.Client, recipes *recipe.Repository, proteinPrefix string, log *logger.Logger) *Syncer {
	return &Syncer{ghost: client, recipes: recipes, proteinPrefix: proteinPrefix, log: log}
}

// Sync upserts every Ghost post and archives local recipes whose post is gone.
func (s *Syncer) Sync(ctx context.Context) (SyncResult, error) {
	posts, err := s.ghost.FetchRecipes(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to fetch recipes from ghost: %w", err)
	}

	var res SyncResult
	seen := make([]string, 0, len(posts))
	for _, post := range posts {
		rec := ExtractRecord(post, s.proteinPrefix)
		if rec.Title == "" {
			s.log.Warn("Skipping untitled post", "post_id", post.ID)
			continue
		}
		if _, err := s.recipes.Upsert(ctx, rec); err != nil {
			return res, err
		}
		if len(rec.Proteins) == 0 {
			s.log.Debug("Recipe has no protein facet", "post_id", post.ID, "title", rec.Title)
		}
		seen = append(seen, post.ID)
		res.Imported++
	}

	if len(posts) > 0 {
		if res.Archived, err = s.recipes.ArchiveMissing(ctx, seen); err != nil {
			return res, err
		}
	}
	s.log.Info("Catalog synced", "imported", res.Imported, "archived", res.Archived)
	return res, nil
}
