package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/rules"
)

// ErrEmptyPool is returned when dates are requested but no recipe is eligible.
var ErrEmptyPool = errors.New("candidate pool is empty")

// Request is one planning request.
type Request struct {
	WeekStart  time.Time
	OpenDates  []time.Time
	ContextTag string
	// AsOf is when the plan is made. Zero means WeekStart.
	AsOf time.Time
}

// Suggestion is a proposed recipe for an open date.
type Suggestion struct {
	Date              time.Time          `json:"date"`
	RecipeID          int64              `json:"recipe_id"`
	RecipeTitle       string             `json:"recipe_title"`
	Reason            string             `json:"reason"`
	Score             float64            `json:"score"`
	RuleStatusSummary []rules.RuleStatus `json:"rule_status_summary"`
}

// Unfilled marks an open date no candidate could take.
type Unfilled struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// Plan is the scheduler's answer. Nothing in it has been persisted.
type Plan struct {
	WeekStart   time.Time    `json:"week_start"`
	Suggestions []Suggestion `json:"suggestions"`
	Unfilled    []Unfilled   `json:"unfilled"`
}

// Scheduler assigns recipes to open dates one date at a time, carrying
// earlier picks of the same pass as tentative assignments so the batch as a
// whole respects every active rule. It is pure and holds no state between calls.
type Scheduler struct {
	weights Weights
}

// NewScheduler creates a Scheduler with the given weights.
func NewScheduler(w Weights) *Scheduler {
	return &Scheduler{weights: w}
}

// Suggest plans req. pool is the eligible candidate set (see recipe.NewPool);
// catalog resolves recipes referenced by the ledger and may include archived
// ones. It fails only on malformed input: an invalid active rule, a planned
// or cooked entry whose recipe is in neither catalog nor pool
// (rules.ErrUnknownRecipe), or an empty pool when dates are requested. A
// date nothing can fill is reported in Plan.Unfilled.
func (s *Scheduler) Suggest(req Request, pool []recipe.Facet, catalog *recipe.Catalog, l *ledger.Ledger, rs []rules.Rule) (*Plan, error) {
	var active []rules.Rule
	for _, r := range rs {
		if !r.Active {
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		active = append(active, r)
	}

	known := []recipe.Facet{}
	if catalog != nil {
		known = catalog.All()
	}
	resolver := recipe.NewCatalog(append(known, pool...))
	if err := rules.ResolveLedger(l, resolver); err != nil {
		return nil, err
	}

	dates := normalizeDates(req.OpenDates)
	plan := &Plan{WeekStart: ledger.Day(req.WeekStart), Suggestions: []Suggestion{}, Unfilled: []Unfilled{}}
	if len(dates) == 0 {
		return plan, nil
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = req.WeekStart
	}
	ev := rules.NewEvaluator(resolver)
	view := ledger.NewOverlay(l)

	for _, date := range dates {
		var (
			best     *score
			bestSt   []rules.RuleStatus
			blocked  = map[int64]int{}
			eligible int
		)
		for _, f := range pool {
			statuses := ev.EvaluateAll(active, rules.Target{Date: date, Recipe: &f, AsOf: asOf}, view)

			sc := score{facet: f, planCount: view.PlanCount(f.ID)}
			violated := false
			for _, st := range statuses {
				switch {
				case st.Status == rules.StatusViolated:
					blocked[st.RuleID]++
					violated = true
				case st.Status == rules.StatusWarning:
					sc.warnings++
				case st.Fulfilling:
					sc.unmetMin++
				}
			}
			if violated {
				continue
			}
			eligible++

			sc.sinceLast = s.weights.RecencyCapDays
			if last, ok := view.LastOnOrBefore(f.ID, date); ok {
				sc.everPlanned = true
				sc.lastGap = ledger.DaysBetween(last, date)
				if sc.lastGap < sc.sinceLast {
					sc.sinceLast = sc.lastGap
				}
			}
			s.weights.apply(&sc)

			if best == nil || better(sc, *best) {
				picked := sc
				best, bestSt = &picked, statuses
			}
		}

		if best == nil {
			plan.Unfilled = append(plan.Unfilled, Unfilled{
				Date:   date,
				Reason: fmt.Sprintf("no candidate satisfies all active rules (%s)", strings.Join(blockingSummaries(active, blocked), "; ")),
			})
			continue
		}

		view = view.With(ledger.Assignment{Date: date, RecipeID: best.facet.ID})
		plan.Suggestions = append(plan.Suggestions, Suggestion{
			Date:              date,
			RecipeID:          best.facet.ID,
			RecipeTitle:       best.facet.Title,
			Reason:            reason(*best, bestSt, active, blocked, len(pool)-eligible),
			Score:             best.total,
			RuleStatusSummary: bestSt,
		})
	}
	return plan, nil
}

// normalizeDates truncates to calendar days, sorts ascending and drops duplicates.
func normalizeDates(in []time.Time) []time.Time {
	out := make([]time.Time, 0, len(in))
	for _, d := range in {
		out = append(out, ledger.Day(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	uniq := out[:0]
	for i, d := range out {
		if i == 0 || !d.Equal(out[i-1]) {
			uniq = append(uniq, d)
		}
	}
	return uniq
}

// blockingSummaries lists, in rule order, the rules that blocked at least one candidate.
func blockingSummaries(active []rules.Rule, blocked map[int64]int) []string {
	var out []string
	for _, r := range active {
		if blocked[r.ID] > 0 {
			out = append(out, r.Summary())
		}
	}
	return out
}

func reason(sc score, statuses []rules.RuleStatus, active []rules.Rule, blocked map[int64]int, blockedCount int) string {
	var parts, fulfils, limits []string
	for _, st := range statuses {
		switch {
		case st.Fulfilling:
			fulfils = append(fulfils, st.RuleName)
		case st.Status == rules.StatusWarning:
			limits = append(limits, st.RuleName)
		}
	}
	if len(fulfils) > 0 {
		parts = append(parts, "meets "+strings.Join(fulfils, ", "))
	}
	if blockedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d other candidate(s) blocked by %s",
			blockedCount, strings.Join(blockingSummaries(active, blocked), ", ")))
	}
	if sc.everPlanned {
		parts = append(parts, fmt.Sprintf("last planned %d days ago", sc.lastGap))
	} else {
		parts = append(parts, "not planned recently")
	}
	if sc.facet.Rating != nil {
		parts = append(parts, fmt.Sprintf("rated %.1f", *sc.facet.Rating))
	}
	if len(limits) > 0 {
		parts = append(parts, "at limit for "+strings.Join(limits, ", "))
	}
	return strings.Join(parts, "; ")
}
