package telegram

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-scheduler/internal/app"
	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/database"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/logger"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/rules"
	"meal-scheduler/internal/storage"
)

// Thursday; next Monday is 2026-03-02.
var today = time.Date(2026, 2, 26, 9, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	ctx := context.Background()
	db := database.NewTestDB(t)
	snapshots, err := storage.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	recipeRepo := recipe.NewRepository(db.SQL)
	for _, rec := range []recipe.Record{
		{ExternalID: "p1", Title: "Lemon_Chicken", Proteins: []string{"chicken"}},
		{ExternalID: "p2", Title: "Salmon Bowl", Proteins: []string{"salmon"}},
	} {
		_, err := recipeRepo.Upsert(ctx, rec)
		require.NoError(t, err)
	}
	ruleRepo := rules.NewRepository(db.SQL)
	_, err = ruleRepo.Create(ctx, rules.Rule{
		Name:   "Chicken twice",
		Kind:   rules.KindProteinMax,
		Config: rules.ProteinMax{Protein: "chicken", Max: 2, PeriodDays: 7},
		Active: true,
	})
	require.NoError(t, err)

	store := metrics.NewStore(db.SQL)
	svc := app.NewService(recipeRepo, ruleRepo, ledger.NewRepository(db.SQL), calendar.NewRepository(db.SQL),
		snapshots, store, planner.NewScheduler(planner.DefaultWeights()), nil, logger.NewNop())

	return &Bot{
		svc:          svc,
		metricsStore: store,
		cfg:          &config.Config{AdminTelegramID: 42, TelegramAllowedUserIDs: []int64{7}},
		log:          logger.NewNop(),
		now:          func() time.Time { return today },
	}
}

func TestAllowed(t *testing.T) {
	b := &Bot{cfg: &config.Config{AdminTelegramID: 42, TelegramAllowedUserIDs: []int64{7}}}
	assert.True(t, b.allowed(7))
	assert.True(t, b.allowed(42))
	assert.False(t, b.allowed(8))

	b.cfg.AdminTelegramID = 0
	assert.False(t, b.allowed(0))
}

func TestSuggestAndAccept(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t)

	out := b.handleCommand(ctx, 7, "/suggest")
	assert.Contains(t, out.text, "*Suggestions for the week of 2026-03-02*")
	assert.Contains(t, out.text, "Lemon\\_Chicken")
	require.NotNil(t, out.keyboard)
	assert.Equal(t, "accept|2026-03-02", *out.keyboard.InlineKeyboard[0][0].CallbackData)

	out = b.handleCommand(ctx, 7, "/suggest@MealBot weeknight")
	require.NotNil(t, out.keyboard)
	assert.Contains(t, out.text, "already exist")
	assert.Equal(t, "redo|2026-03-02|weeknight", *out.keyboard.InlineKeyboard[0][0].CallbackData)

	out = b.handleCallback(ctx, "accept|2026-03-02")
	assert.Contains(t, out.text, "Added 7 meals")

	out = b.handleCommand(ctx, 7, "/accept")
	assert.Contains(t, out.text, "Nothing to accept")

	out = b.handleCommand(ctx, 7, "/week 2026-03-02")
	assert.Contains(t, out.text, "*Week of 2026-03-02*")
	assert.Contains(t, out.text, "Chicken twice")
}

func TestAcceptStale(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t)

	b.handleCommand(ctx, 7, "/suggest")
	_, _, err := b.svc.AddEntry(ctx, ledger.Entry{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), RecipeID: 2})
	require.NoError(t, err)

	out := b.handleCommand(ctx, 7, "/accept")
	assert.Contains(t, out.text, "Run /suggest again")
}

func TestCallbackNextWeek(t *testing.T) {
	b := newTestBot(t)
	out := b.handleCallback(context.Background(), "next|2026-03-02")
	assert.Contains(t, out.text, "week of 2026-03-09")

	out = b.handleCallback(context.Background(), "bogus")
	assert.Contains(t, out.text, "Unknown action")
}

func TestCheckAndMark(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t)

	out := b.handleCommand(ctx, 7, "/check 1 2026-03-04")
	assert.Contains(t, out.text, "🟢 *Chicken twice*")

	assert.Contains(t, b.handleCommand(ctx, 7, "/check 99 2026-03-04").text, "No recipe with id 99")
	assert.Contains(t, b.handleCommand(ctx, 7, "/check one").text, "Usage")

	e, _, err := b.svc.AddEntry(ctx, ledger.Entry{Date: today, RecipeID: 1})
	require.NoError(t, err)
	out = b.handleCommand(ctx, 7, "/cooked "+strconv.FormatInt(e.ID, 10))
	assert.Contains(t, out.text, "marked cooked")
	assert.Contains(t, b.handleCommand(ctx, 7, "/skipped").text, "Usage")
}

func TestRulesAndStatus(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t)

	out := b.handleCommand(ctx, 7, "/rules")
	assert.Contains(t, out.text, "1. *Chicken twice*: chicken max 2 per 7 days")

	out = b.handleCommand(ctx, 7, "/status")
	assert.Contains(t, out.text, "week of 2026-02-23")
	assert.Contains(t, out.text, "Chicken twice")
}

func TestMetricsAdminOnly(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t)

	assert.Contains(t, b.handleCommand(ctx, 7, "/metrics").text, "Admin only")

	out := b.handleCommand(ctx, 42, "/metrics")
	assert.Contains(t, out.text, "Usage & Health Report")
	assert.Contains(t, out.text, "_No data yet_")
}

func TestHelp(t *testing.T) {
	b := newTestBot(t)
	assert.Equal(t, helpText, b.handleCommand(context.Background(), 7, "hello").text)
	assert.Equal(t, helpText, b.handleCommand(context.Background(), 7, "   ").text)
}

func TestFormatPlan(t *testing.T) {
	ws := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	out := formatPlan(&planner.Plan{
		WeekStart:   ws,
		Suggestions: []planner.Suggestion{{Date: ws, RecipeTitle: "Tacos", Reason: "not planned recently"}},
		Unfilled:    []planner.Unfilled{{Date: ws.AddDate(0, 0, 1), Reason: "no candidate satisfies all active rules"}},
	})
	assert.Contains(t, out, "*Mon 02 Mar*: Tacos\n_not planned recently_")
	assert.Contains(t, out, "*Tue 03 Mar*: ❔ no candidate")

	empty := formatPlan(&planner.Plan{WeekStart: ws})
	assert.Contains(t, empty, "No open nights")
}

func TestFormatStatuses(t *testing.T) {
	out := formatStatuses([]rules.RuleStatus{
		{RuleName: "a", Status: rules.StatusOK, Message: "fine"},
		{RuleName: "b", Status: rules.StatusWarning, Message: "close"},
		{RuleName: "c", Status: rules.StatusViolated, Message: "over"},
	})
	assert.Equal(t, "🟢 *a*: fine\n🟡 *b*: close\n🔴 *c*: over", out)
	assert.Equal(t, "_No active rules._", formatStatuses(nil))
}

func TestCallbackDataLimit(t *testing.T) {
	ws := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	long := "a-very-long-context-tag-that-goes-on-and-on-and-on"
	data := callbackData("redo", ws, long)
	assert.LessOrEqual(t, len(data), 64)
	assert.Equal(t, "redo|2026-03-02|"+long[:32], data)
}
