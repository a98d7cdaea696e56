package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/catalog"
	"meal-scheduler/internal/database"
	"meal-scheduler/internal/ghost"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/logger"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/rules"
	"meal-scheduler/internal/storage"
)

var week = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return ledger.AddDays(week, offset)
}

type fakeGhost struct {
	title string
	html  string
}

func (f *fakeGhost) FetchRecipes(ctx context.Context) ([]ghost.Post, error) {
	return nil, nil
}

func (f *fakeGhost) CreatePost(ctx context.Context, title, html string, publish bool) (*ghost.Post, error) {
	f.title, f.html = title, html
	return &ghost.Post{ID: "draft-1", Title: title}, nil
}

type fixture struct {
	svc     *Service
	db      *database.DB
	ghost   *fakeGhost
	metrics *metrics.Store
	recipes map[string]int64
	chicken rules.Rule
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := database.NewTestDB(t)
	snapshots, err := storage.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	recipeRepo := recipe.NewRepository(db.SQL)
	ruleRepo := rules.NewRepository(db.SQL)
	fg := &fakeGhost{}
	f := &fixture{db: db, ghost: fg, metrics: metrics.NewStore(db.SQL), recipes: map[string]int64{}}
	f.svc = NewService(
		recipeRepo,
		ruleRepo,
		ledger.NewRepository(db.SQL),
		calendar.NewRepository(db.SQL),
		snapshots,
		f.metrics,
		planner.NewScheduler(planner.DefaultWeights()),
		catalog.NewPublisher(fg),
		logger.NewNop(),
	)
	f.svc.now = func() time.Time { return week.Add(-24 * time.Hour) }

	for _, rec := range []recipe.Record{
		{ExternalID: "p1", Title: "Lemon Chicken", Proteins: []string{"chicken"}},
		{ExternalID: "p2", Title: "Chicken Curry", Proteins: []string{"chicken"}},
		{ExternalID: "p3", Title: "Salmon Bowl", Proteins: []string{"salmon"}},
		{ExternalID: "p4", Title: "Veg Chili", Tags: []string{"vegetarian"}},
		{ExternalID: "p5", Title: "Beef Tacos", Proteins: []string{"beef"}},
	} {
		id, err := recipeRepo.Upsert(ctx, rec)
		require.NoError(t, err)
		f.recipes[rec.Title] = id
	}

	f.chicken, err = ruleRepo.Create(ctx, rules.Rule{
		Name:   "Chicken once a week",
		Kind:   rules.KindProteinMax,
		Config: rules.ProteinMax{Protein: "chicken", Max: 1, PeriodDays: 7},
		Active: true,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) add(t *testing.T, title string, date time.Time) ledger.Entry {
	t.Helper()
	e, _, err := f.svc.AddEntry(context.Background(), ledger.Entry{Date: date, RecipeID: f.recipes[title]})
	require.NoError(t, err)
	return e
}

func TestPlanWeekAndAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddEvent(ctx, calendar.Event{Date: day(2), Start: "19:00", End: "21:00", Summary: "Dinner with friends"}, false)
	require.NoError(t, err)
	f.add(t, "Veg Chili", day(3))

	plan, err := f.svc.PlanWeek(ctx, day(4), "")
	require.NoError(t, err)
	assert.Equal(t, week, plan.WeekStart)
	assert.Equal(t, 5, len(plan.Suggestions)+len(plan.Unfilled))

	chicken := 0
	for _, sg := range plan.Suggestions {
		assert.NotEqual(t, day(2), sg.Date, "conflicting evening")
		assert.NotEqual(t, day(3), sg.Date, "already planned")
		if sg.RecipeTitle == "Lemon Chicken" || sg.RecipeTitle == "Chicken Curry" {
			chicken++
		}
	}
	assert.LessOrEqual(t, chicken, 1)

	summary, err := f.metrics.GetDailySummary(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].Runs)

	last, err := f.svc.LastPlan(week)
	require.NoError(t, err)
	assert.Equal(t, plan.Suggestions, last.Suggestions)

	accepted, err := f.svc.Accept(ctx, week)
	require.NoError(t, err)
	require.Len(t, accepted, len(plan.Suggestions))
	for i, e := range accepted {
		assert.NotZero(t, e.ID)
		assert.Equal(t, plan.Suggestions[i].RecipeID, e.RecipeID)
		assert.Equal(t, ledger.StatusPlanned, e.Status)
	}

	_, err = f.svc.Accept(ctx, week)
	assert.ErrorIs(t, err, storage.ErrNoSnapshot)

	open, err := f.svc.OpenDates(ctx, week)
	require.NoError(t, err)
	assert.Len(t, open, 5-len(plan.Suggestions))
}

func TestAcceptRejectsStaleSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("SameWeek", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.PlanWeek(ctx, week, "")
		require.NoError(t, err)

		f.add(t, "Salmon Bowl", day(1))

		_, err = f.svc.Accept(ctx, week)
		assert.ErrorIs(t, err, ErrStaleSnapshot)
		assert.ErrorIs(t, err, ledger.ErrVersionConflict)
	})

	t.Run("WeekInsideRuleWindow", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.PlanWeek(ctx, week, "")
		require.NoError(t, err)

		f.add(t, "Lemon Chicken", day(-2))

		_, err = f.svc.Accept(ctx, week)
		assert.ErrorIs(t, err, ErrStaleSnapshot)
	})

	t.Run("UnrelatedWeek", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.PlanWeek(ctx, week, "")
		require.NoError(t, err)

		f.add(t, "Lemon Chicken", day(-30))

		_, err = f.svc.Accept(ctx, week)
		assert.NoError(t, err)
	})
}

func TestPlanWeekContextTag(t *testing.T) {
	f := newFixture(t)
	plan, err := f.svc.PlanWeek(context.Background(), week, "vegetarian")
	require.NoError(t, err)
	for _, sg := range plan.Suggestions {
		assert.Equal(t, f.recipes["Veg Chili"], sg.RecipeID)
	}
}

func TestPlanWeekEmptyPool(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlanWeek(context.Background(), week, "brunch")
	assert.ErrorIs(t, err, planner.ErrEmptyPool)
}

func TestPlanWeekMeasuresMinimumsFromToday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := rules.NewRepository(f.db.SQL).Create(ctx, rules.Rule{
		Name:   "Salmon weekly",
		Kind:   rules.KindProteinMin,
		Config: rules.ProteinMin{Protein: "salmon", Min: 1, PeriodDays: 7},
		Active: true,
	})
	require.NoError(t, err)
	// Thursday morning of the planned week.
	f.svc.now = func() time.Time { return day(3).Add(9 * time.Hour) }

	plan, err := f.svc.PlanWeek(ctx, week, "vegetarian")
	require.NoError(t, err)
	require.Len(t, plan.Unfilled, 3)
	for i, u := range plan.Unfilled {
		assert.Equal(t, day(i), u.Date)
		assert.Equal(t, "no candidate satisfies all active rules (salmon at least 1 per 7 days)", u.Reason)
	}
	require.Len(t, plan.Suggestions, 4)
	assert.Equal(t, day(3), plan.Suggestions[0].Date)

	// The dashboard agrees about Monday.
	statuses, err := f.svc.EvaluateAll(ctx, f.recipes["Veg Chili"], day(0))
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, rules.StatusViolated, statuses[1].Status)
	assert.Contains(t, statuses[1].Message, "deadline passed")
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "Lemon Chicken", day(0))

	st, err := f.svc.Evaluate(ctx, f.chicken.ID, f.recipes["Chicken Curry"], day(2))
	require.NoError(t, err)
	assert.Equal(t, rules.StatusViolated, st.Status)

	st, err = f.svc.Evaluate(ctx, f.chicken.ID, f.recipes["Salmon Bowl"], day(2))
	require.NoError(t, err)
	assert.Equal(t, rules.StatusWarning, st.Status, "chicken is at its limit around this date")

	all, err := f.svc.EvaluateAll(ctx, f.recipes["Salmon Bowl"], day(9))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rules.StatusOK, all[0].Status)

	_, err = f.svc.Evaluate(ctx, f.chicken.ID, 999, day(2))
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	_, err = f.svc.Evaluate(ctx, 999, f.recipes["Salmon Bowl"], day(2))
	assert.ErrorIs(t, err, rules.ErrNotFound)

	require.NoError(t, rules.NewRepository(f.db.SQL).SetActive(ctx, f.chicken.ID, false))
	_, err = f.svc.Evaluate(ctx, f.chicken.ID, f.recipes["Salmon Bowl"], day(2))
	assert.ErrorIs(t, err, rules.ErrInactive)
}

func TestAddEntryReportsViolationsWithoutBlocking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "Lemon Chicken", day(0))

	e, statuses, err := f.svc.AddEntry(ctx, ledger.Entry{Date: day(1), RecipeID: f.recipes["Chicken Curry"]})
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.Equal(t, ledger.StatusPlanned, e.Status)
	require.Len(t, statuses, 1)
	assert.Equal(t, rules.StatusViolated, statuses[0].Status)

	report, err := f.svc.WeekRuleStatus(ctx, week)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, rules.StatusViolated, report[0].Status)

	require.NoError(t, f.svc.MarkEntry(ctx, e.ID, ledger.StatusSkipped))
	report, err = f.svc.WeekRuleStatus(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, rules.StatusWarning, report[0].Status)

	require.NoError(t, f.svc.DeleteEntry(ctx, e.ID))
	assert.Error(t, f.svc.DeleteEntry(ctx, e.ID))

	_, _, err = f.svc.AddEntry(ctx, ledger.Entry{Date: day(1), RecipeID: 999})
	assert.ErrorIs(t, err, ErrRecipeNotFound)
}

func TestWeek(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "Lemon Chicken", day(0))
	_, err := f.svc.AddEvent(ctx, calendar.Event{Date: day(4), Summary: "Flight to Lisbon"}, false)
	require.NoError(t, err)

	view, err := f.svc.Week(ctx, day(3))
	require.NoError(t, err)
	require.Len(t, view.Days, 7)
	assert.Equal(t, week, view.WeekStart)

	require.Len(t, view.Days[0].Meals, 1)
	assert.Equal(t, "Lemon Chicken", view.Days[0].Meals[0].RecipeTitle)
	assert.True(t, view.Days[0].Available)
	assert.False(t, view.Days[4].Available)
	require.Len(t, view.Rules, 1)
	assert.Equal(t, f.chicken.ID, view.Rules[0].RuleID)
}

func TestImportRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	src := `
rules:
  - name: No repeats
    rule_type: no_repeat_within_days
    config: {min_days_between_repeat: 10}
  - name: Veg weekly
    rule_type: min_tag_per_week
    config: {tag: vegetarian, min: 1, period_days: 7}
    active: false
`
	imported, err := f.svc.ImportRules(ctx, strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.NotZero(t, imported[0].ID)

	all, err := f.svc.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.False(t, all[2].Active)
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "Salmon Bowl", day(0))
	skipped := f.add(t, "Beef Tacos", day(1))
	require.NoError(t, f.svc.MarkEntry(ctx, skipped.ID, ledger.StatusSkipped))

	id, err := f.svc.Publish(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, "draft-1", id)
	assert.Equal(t, "Meal plan: week of 2026-03-02", f.ghost.title)
	assert.Contains(t, f.ghost.html, "Salmon Bowl")
	assert.NotContains(t, f.ghost.html, "Beef Tacos")

	f.svc.publisher = nil
	_, err = f.svc.Publish(ctx, week)
	assert.ErrorIs(t, err, ErrPublishingDisabled)
}
