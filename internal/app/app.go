package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/catalog"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/logger"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/rules"
	"meal-scheduler/internal/storage"
)

var (
	// ErrStaleSnapshot is returned by Accept when the ledger changed after
	// the suggestions were computed.
	ErrStaleSnapshot = errors.New("suggestions are stale, run suggest again")
	// ErrRecipeNotFound is returned when a recipe id is not in the catalog.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrPublishingDisabled is returned by Publish when no Ghost client is configured.
	ErrPublishingDisabled = errors.New("publishing is not configured")
)

// Service holds the application's dependencies and serialises the
// snapshot, suggest and persist cycle per week.
type Service struct {
	recipeRepo   *recipe.Repository
	ruleRepo     *rules.Repository
	entryRepo    *ledger.Repository
	calendarRepo *calendar.Repository
	snapshots    *storage.SnapshotStore
	metricsStore *metrics.Store
	scheduler    *planner.Scheduler
	publisher    *catalog.Publisher
	log          *logger.Logger

	now func() time.Time

	mu    sync.Mutex
	weeks map[string]*sync.Mutex
}

// NewService creates a Service. publisher may be nil.
func NewService(
	recipeRepo *recipe.Repository,
	ruleRepo *rules.Repository,
	entryRepo *ledger.Repository,
	calendarRepo *calendar.Repository,
	snapshots *storage.SnapshotStore,
	metricsStore *metrics.Store,
	scheduler *planner.Scheduler,
	publisher *catalog.Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		recipeRepo:   recipeRepo,
		ruleRepo:     ruleRepo,
		entryRepo:    entryRepo,
		calendarRepo: calendarRepo,
		snapshots:    snapshots,
		metricsStore: metricsStore,
		scheduler:    scheduler,
		publisher:    publisher,
		log:          log,
		now:          time.Now,
		weeks:        map[string]*sync.Mutex{},
	}
}

func (s *Service) lockWeek(weekStart time.Time) func() {
	key := ledger.FormatDay(weekStart)
	s.mu.Lock()
	m, ok := s.weeks[key]
	if !ok {
		m = &sync.Mutex{}
		s.weeks[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (s *Service) today() time.Time {
	return ledger.Day(s.now())
}

// state is a consistent read of everything the core needs.
type state struct {
	catalog *recipe.Catalog
	ledger  *ledger.Ledger
	rules   []rules.Rule
}

func (s *Service) loadState(ctx context.Context) (*state, error) {
	active, err := s.ruleRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range active {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	cat, err := s.recipeRepo.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.entryRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	l := ledger.New(entries)
	if err := rules.ResolveLedger(l, cat); err != nil {
		return nil, err
	}
	return &state{catalog: cat, ledger: l, rules: active}, nil
}

// versionWindow covers every week whose entries can influence a rule
// evaluated on any day of the week.
func versionWindow(weekStart time.Time, rs []rules.Rule) ledger.Window {
	reach := 0
	for _, r := range rs {
		if n := r.Reach(); n > reach {
			reach = n
		}
	}
	week := ledger.Week(weekStart)
	return ledger.Window{Start: ledger.AddDays(week.Start, -reach), End: ledger.AddDays(week.End, reach)}
}

// OpenDates returns the days of the week with no dinner conflict and no
// planned or cooked meal.
func (s *Service) OpenDates(ctx context.Context, weekStart time.Time) ([]time.Time, error) {
	week := ledger.Week(ledger.WeekStart(weekStart))
	events, err := s.calendarRepo.ListBetween(ctx, week)
	if err != nil {
		return nil, err
	}
	entries, err := s.entryRepo.ListBetween(ctx, week)
	if err != nil {
		return nil, err
	}
	return calendar.OpenDates(calendar.Availability(week, events), occupied(entries)), nil
}

func occupied(entries []ledger.Entry) []time.Time {
	var out []time.Time
	for _, e := range entries {
		if e.Status.Counts() {
			out = append(out, e.Date)
		}
	}
	return out
}

// PlanWeek suggests recipes for the open dates of the week starting at
// weekStart and saves the result as the week's snapshot.
func (s *Service) PlanWeek(ctx context.Context, weekStart time.Time, contextTag string) (*planner.Plan, error) {
	ws := ledger.WeekStart(weekStart)
	defer s.lockWeek(ws)()

	active, err := s.ruleRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	// Versions are read before the ledger so a concurrent write can only make
	// the snapshot look older than it is.
	versions, err := s.entryRepo.WeekVersions(ctx, versionWindow(ws, active))
	if err != nil {
		return nil, err
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	open, err := s.OpenDates(ctx, ws)
	if err != nil {
		return nil, err
	}

	pool := recipe.NewPool(st.catalog, contextTag)
	start := time.Now()
	plan, err := s.scheduler.Suggest(planner.Request{
		WeekStart:  ws,
		OpenDates:  open,
		ContextTag: contextTag,
		AsOf:       s.today(),
	}, pool, st.catalog, st.ledger, st.rules)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest week %s: %w", ledger.FormatDay(ws), err)
	}
	latency := time.Since(start)

	if err := s.metricsStore.Record(ctx, metrics.RunMetric{
		WeekStart:   ws,
		OpenDates:   len(open),
		Filled:      len(plan.Suggestions),
		Unfilled:    len(plan.Unfilled),
		PoolSize:    len(pool),
		ActiveRules: len(st.rules),
		LatencyMS:   latency.Milliseconds(),
	}); err != nil {
		s.log.Warn("Failed to record scheduler run", "error", err)
	}

	if err := s.snapshots.Save(storage.Snapshot{
		WeekStart:  ws,
		ContextTag: contextTag,
		Versions:   versions,
		Plan:       *plan,
	}); err != nil {
		return nil, err
	}

	s.log.Info("Week planned",
		"week_start", ledger.FormatDay(ws),
		"context_tag", contextTag,
		"filled", len(plan.Suggestions),
		"unfilled", len(plan.Unfilled),
		"pool_size", len(pool),
	)
	return plan, nil
}

// LastPlan returns the saved suggestions for the week.
func (s *Service) LastPlan(weekStart time.Time) (*planner.Plan, error) {
	snap, err := s.snapshots.Load(ledger.WeekStart(weekStart))
	if err != nil {
		return nil, err
	}
	return &snap.Plan, nil
}

// Accept persists the week's saved suggestions as planned entries. It fails
// with ErrStaleSnapshot if any week the suggestions depended on changed.
func (s *Service) Accept(ctx context.Context, weekStart time.Time) ([]ledger.Entry, error) {
	ws := ledger.WeekStart(weekStart)
	defer s.lockWeek(ws)()

	snap, err := s.snapshots.Load(ws)
	if err != nil {
		return nil, err
	}

	entries := make([]ledger.Entry, 0, len(snap.Plan.Suggestions))
	for _, sg := range snap.Plan.Suggestions {
		entries = append(entries, ledger.Entry{
			Date:     sg.Date,
			MealType: ledger.DefaultMealType,
			RecipeID: sg.RecipeID,
			Status:   ledger.StatusPlanned,
		})
	}

	ids, err := s.entryRepo.AcceptBatch(ctx, snap.Versions, entries)
	if err != nil {
		if errors.Is(err, ledger.ErrVersionConflict) {
			s.log.Warn("Rejected stale suggestions", "week_start", ledger.FormatDay(ws), "error", err)
			return nil, fmt.Errorf("%w: %w", ErrStaleSnapshot, err)
		}
		return nil, err
	}
	for i := range entries {
		entries[i].ID = ids[i]
	}

	if err := s.snapshots.RemoveStaleVersions(ws); err != nil {
		s.log.Warn("Failed to remove accepted snapshot", "week_start", ledger.FormatDay(ws), "error", err)
	}
	s.log.Info("Suggestions accepted", "week_start", ledger.FormatDay(ws), "entries", len(entries))
	return entries, nil
}

// Evaluate classifies placing recipeID on date against a single rule.
func (s *Service) Evaluate(ctx context.Context, ruleID, recipeID int64, date time.Time) (rules.RuleStatus, error) {
	r, err := s.ruleRepo.Get(ctx, ruleID)
	if err != nil {
		return rules.RuleStatus{}, err
	}
	if !r.Active {
		return rules.RuleStatus{}, fmt.Errorf("rule %d: %w", ruleID, rules.ErrInactive)
	}
	if err := r.Validate(); err != nil {
		return rules.RuleStatus{}, err
	}
	f, cat, l, err := s.target(ctx, recipeID)
	if err != nil {
		return rules.RuleStatus{}, err
	}
	t := rules.Target{Date: date, Recipe: f, AsOf: s.today()}
	return rules.NewEvaluator(cat).Evaluate(r, t, ledger.NewOverlay(l)), nil
}

// EvaluateAll classifies placing recipeID on date against every active rule.
func (s *Service) EvaluateAll(ctx context.Context, recipeID int64, date time.Time) ([]rules.RuleStatus, error) {
	active, err := s.ruleRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range active {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	f, cat, l, err := s.target(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	t := rules.Target{Date: date, Recipe: f, AsOf: s.today()}
	return rules.NewEvaluator(cat).EvaluateAll(active, t, ledger.NewOverlay(l)), nil
}

func (s *Service) target(ctx context.Context, recipeID int64) (*recipe.Facet, *recipe.Catalog, *ledger.Ledger, error) {
	f, err := s.recipeRepo.Get(ctx, recipeID)
	if err != nil {
		return nil, nil, nil, err
	}
	if f == nil {
		return nil, nil, nil, fmt.Errorf("%w: %d", ErrRecipeNotFound, recipeID)
	}
	cat, err := s.recipeRepo.Catalog(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	entries, err := s.entryRepo.ListAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	l := ledger.New(entries)
	if err := rules.ResolveLedger(l, cat); err != nil {
		return nil, nil, nil, err
	}
	return f, cat, l, nil
}

// WeekRuleStatus reports the worst status of every active rule for the week.
func (s *Service) WeekRuleStatus(ctx context.Context, weekStart time.Time) ([]rules.RuleStatus, error) {
	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	return rules.WeekReport(st.rules, st.ledger, st.catalog, ledger.WeekStart(weekStart), s.today())
}

// PlannedMeal is a ledger entry with its recipe title resolved.
type PlannedMeal struct {
	ledger.Entry
	RecipeTitle string `json:"recipe_title"`
}

// DayView is one day of the week view.
type DayView struct {
	Date      time.Time        `json:"date"`
	Available bool             `json:"available"`
	Events    []calendar.Event `json:"events"`
	Meals     []PlannedMeal    `json:"meals"`
}

// WeekView is the week's calendar, meals and rule chips.
type WeekView struct {
	WeekStart time.Time          `json:"week_start"`
	Days      []DayView          `json:"days"`
	Rules     []rules.RuleStatus `json:"rules"`
}

// Week assembles the week view.
func (s *Service) Week(ctx context.Context, weekStart time.Time) (*WeekView, error) {
	ws := ledger.WeekStart(weekStart)
	st, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	week := ledger.Week(ws)
	events, err := s.calendarRepo.ListBetween(ctx, week)
	if err != nil {
		return nil, err
	}

	byDay := map[time.Time][]PlannedMeal{}
	for _, e := range st.ledger.Between(week) {
		m := PlannedMeal{Entry: e}
		if f, ok := st.catalog.Get(e.RecipeID); ok {
			m.RecipeTitle = f.Title
		}
		byDay[e.Date] = append(byDay[e.Date], m)
	}

	report, err := rules.WeekReport(st.rules, st.ledger, st.catalog, ws, s.today())
	if err != nil {
		return nil, err
	}
	view := &WeekView{WeekStart: ws, Rules: report}
	for _, d := range calendar.Availability(week, events) {
		view.Days = append(view.Days, DayView{
			Date:      d.Date,
			Available: d.Available,
			Events:    d.Events,
			Meals:     byDay[d.Date],
		})
	}
	return view, nil
}

// AddEntry records a meal by hand. Rules are evaluated first and their
// statuses returned, but a violation does not block the insert.
func (s *Service) AddEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, []rules.RuleStatus, error) {
	e.Date = ledger.Day(e.Date)
	if e.MealType == "" {
		e.MealType = ledger.DefaultMealType
	}
	if e.Status == "" {
		e.Status = ledger.StatusPlanned
	}
	defer s.lockWeek(ledger.WeekStart(e.Date))()

	statuses, err := s.EvaluateAll(ctx, e.RecipeID, e.Date)
	if err != nil {
		return ledger.Entry{}, nil, err
	}
	id, err := s.entryRepo.Add(ctx, e)
	if err != nil {
		return ledger.Entry{}, nil, err
	}
	e.ID = id
	for _, st := range statuses {
		if st.Status == rules.StatusViolated {
			s.log.Warn("Entry violates rule", "entry_id", id, "rule", st.RuleName, "message", st.Message)
		}
	}
	return e, statuses, nil
}

// MarkEntry moves an entry to a new status, e.g. planned to cooked.
func (s *Service) MarkEntry(ctx context.Context, id int64, status ledger.Status) error {
	return s.entryRepo.UpdateStatus(ctx, id, status)
}

// DeleteEntry removes an entry.
func (s *Service) DeleteEntry(ctx context.Context, id int64) error {
	return s.entryRepo.Delete(ctx, id)
}

// ImportRules loads a YAML rule set and stores every rule in it.
func (s *Service) ImportRules(ctx context.Context, r io.Reader) ([]rules.Rule, error) {
	loaded, err := rules.LoadYAML(r)
	if err != nil {
		return nil, err
	}
	out := make([]rules.Rule, 0, len(loaded))
	for _, rule := range loaded {
		created, err := s.ruleRepo.Create(ctx, rule)
		if err != nil {
			return out, err
		}
		out = append(out, created)
	}
	s.log.Info("Rules imported", "count", len(out))
	return out, nil
}

// Publish posts the week's planned and cooked meals to Ghost as a draft.
func (s *Service) Publish(ctx context.Context, weekStart time.Time) (string, error) {
	if s.publisher == nil {
		return "", ErrPublishingDisabled
	}
	ws := ledger.WeekStart(weekStart)
	entries, err := s.entryRepo.ListBetween(ctx, ledger.Week(ws))
	if err != nil {
		return "", err
	}
	cat, err := s.recipeRepo.Catalog(ctx)
	if err != nil {
		return "", err
	}

	plan := &planner.Plan{WeekStart: ws}
	for _, e := range entries {
		if !e.Status.Counts() {
			continue
		}
		sg := planner.Suggestion{Date: e.Date, RecipeID: e.RecipeID, Reason: e.Notes}
		if f, ok := cat.Get(e.RecipeID); ok {
			sg.RecipeTitle = f.Title
		}
		plan.Suggestions = append(plan.Suggestions, sg)
	}

	id, err := s.publisher.Publish(ctx, plan)
	if err != nil {
		return "", err
	}
	s.log.Info("Week published", "week_start", ledger.FormatDay(ws), "post_id", id)
	return id, nil
}

// Rules lists every stored rule, inactive ones included.
func (s *Service) Rules(ctx context.Context) ([]rules.Rule, error) {
	return s.ruleRepo.List(ctx)
}

// AddEvent stores a calendar event. Unless force is set the dinner-conflict
// flag is derived from the event's times and summary.
func (s *Service) AddEvent(ctx context.Context, e calendar.Event, force bool) (calendar.Event, error) {
	return s.calendarRepo.Add(ctx, e, force)
}

// SetRuleActive switches a rule on or off.
func (s *Service) SetRuleActive(ctx context.Context, id int64, active bool) error {
	return s.ruleRepo.SetActive(ctx, id, active)
}
