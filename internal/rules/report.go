package rules

import (
	"time"

	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/recipe"
)

// WeekReport reduces every active rule to the worst status observed for the
// week starting at weekStart. One baseline evaluation without a candidate is
// made at the end of the week. Caps and repeats are also evaluated against
// each planned or cooked entry of the week, with the entry as the candidate
// and removed from the view. Minimums are judged only where the week closes.
// It fails with ErrUnknownRecipe when the ledger cannot be resolved.
func WeekReport(rs []Rule, l *ledger.Ledger, catalog *recipe.Catalog, weekStart, asOf time.Time) ([]RuleStatus, error) {
	if err := ResolveLedger(l, catalog); err != nil {
		return nil, err
	}
	ev := NewEvaluator(catalog)
	week := ledger.Week(weekStart)
	base := ledger.NewOverlay(l)
	from, to := 0, 0
	if l != nil {
		from, to = l.Range(week)
	}

	var out []RuleStatus
	for _, r := range rs {
		if !r.Active {
			continue
		}
		worst := ev.Evaluate(r, Target{Date: week.End, AsOf: asOf}, base)
		if !r.Kind.IsMin() {
			for pos := from; pos < to; pos++ {
				e := l.At(pos)
				if !e.Status.Counts() {
					continue
				}
				facet, _ := ev.catalog.Get(e.RecipeID)
				st := ev.Evaluate(r, Target{Date: e.Date, Recipe: &facet, AsOf: asOf}, base.WithoutAt(pos))
				if worse(st, worst) {
					worst = st
				}
			}
		}
		out = append(out, worst)
	}
	return out, nil
}
