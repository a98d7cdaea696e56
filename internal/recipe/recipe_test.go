package recipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-scheduler/internal/database"
)

func TestSet(t *testing.T) {
	s := NewSet(" Chicken", "SALMON", "", "chicken")
	assert.Len(t, s, 2)
	assert.True(t, s.Has("chicken"))
	assert.True(t, s.Has("Salmon"))
	assert.False(t, s.Has("beef"))
	assert.Equal(t, []string{"chicken", "salmon"}, s.Sorted())
}

func TestNewPool(t *testing.T) {
	catalog := NewCatalog([]Facet{
		{ID: 3, Title: "Tacos", Tags: NewSet("weeknight")},
		{ID: 1, Title: "Roast", Tags: NewSet("date_night")},
		{ID: 2, Title: "Old Stew", Tags: NewSet("weeknight"), Archived: true},
		{ID: 4, Title: "Soup"},
	})

	tests := []struct {
		name       string
		contextTag string
		want       []int64
	}{
		{name: "NoContextTag", contextTag: "", want: []int64{1, 3, 4}},
		{name: "ContextTag", contextTag: "weeknight", want: []int64{3}},
		{name: "ContextTagIgnoresCase", contextTag: "Date_Night", want: []int64{1}},
		{name: "NoMatch", contextTag: "brunch", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for _, f := range NewPool(catalog, tt.contextTag) {
				got = append(got, f.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("ArchivedStaysInCatalog", func(t *testing.T) {
		f, ok := catalog.Get(2)
		require.True(t, ok)
		assert.True(t, f.Archived)
		assert.Equal(t, 4, catalog.Len())
	})
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	db := database.NewTestDB(t)
	repo := NewRepository(db.SQL)
	rating := 4.5

	id, err := repo.Upsert(ctx, Record{
		ExternalID: "ghost-1",
		Title:      "Lemon Chicken",
		Proteins:   []string{"Chicken"},
		Tags:       []string{"weeknight", "Quick"},
		Rating:     &rating,
	})
	require.NoError(t, err)

	t.Run("Get", func(t *testing.T) {
		f, err := repo.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, "Lemon Chicken", f.Title)
		assert.True(t, f.HasProtein("chicken"))
		assert.True(t, f.HasTag("quick"))
		require.NotNil(t, f.Rating)
		assert.InDelta(t, 4.5, *f.Rating, 1e-9)
	})

	t.Run("UpsertReplacesFacets", func(t *testing.T) {
		again, err := repo.Upsert(ctx, Record{ExternalID: "ghost-1", Title: "Lemon Tofu", Proteins: []string{"tofu"}})
		require.NoError(t, err)
		assert.Equal(t, id, again)

		f, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, f.HasProtein("chicken"))
		assert.True(t, f.HasProtein("tofu"))
		assert.Empty(t, f.Tags)
		assert.Nil(t, f.Rating)
	})

	t.Run("ArchiveAndCatalog", func(t *testing.T) {
		other, err := repo.Upsert(ctx, Record{ExternalID: "ghost-2", Title: "Salmon Bowl", Proteins: []string{"salmon"}})
		require.NoError(t, err)
		require.NoError(t, repo.SetArchived(ctx, other, true))

		catalog, err := repo.Catalog(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, catalog.Len())
		pool := NewPool(catalog, "")
		require.Len(t, pool, 1)
		assert.Equal(t, id, pool[0].ID)
	})

	t.Run("FindByTitle", func(t *testing.T) {
		found, err := repo.FindByTitle(ctx, "salmon")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Salmon Bowl", found[0].Title)
	})

	t.Run("Missing", func(t *testing.T) {
		f, err := repo.Get(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.Error(t, repo.SetArchived(ctx, 404, true))
	})
}
