package rules

import (
	"fmt"
	"time"

	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/recipe"
)

// Target is the (recipe, date) pair under evaluation.
type Target struct {
	Date time.Time
	// Recipe is the candidate. A nil Recipe evaluates the date's standing
	// without adding anything to it.
	Recipe *recipe.Facet
	// AsOf is the moment minimum deadlines are measured from. The zero value
	// means Date.
	AsOf time.Time
}

// Evaluator classifies targets against rules. It holds no mutable state.
type Evaluator struct {
	catalog *recipe.Catalog
}

// NewEvaluator creates an evaluator that resolves recipe ids through catalog.
func NewEvaluator(catalog *recipe.Catalog) *Evaluator {
	if catalog == nil {
		catalog = recipe.NewCatalog(nil)
	}
	return &Evaluator{catalog: catalog}
}

// EvaluateAll evaluates every active rule in order. Inactive rules are skipped.
func (e *Evaluator) EvaluateAll(rs []Rule, t Target, view ledger.View) []RuleStatus {
	var out []RuleStatus
	for _, r := range rs {
		if !r.Active {
			continue
		}
		out = append(out, e.Evaluate(r, t, view))
	}
	return out
}

// Evaluate classifies t against a single rule using view as the union of
// committed and tentative plan state. The candidate must not already be in view.
func (e *Evaluator) Evaluate(r Rule, t Target, view ledger.View) RuleStatus {
	t.Date = ledger.Day(t.Date)
	if t.AsOf.IsZero() {
		t.AsOf = t.Date
	}

	var st RuleStatus
	switch c := r.Config.(type) {
	case ProteinMax:
		st = e.evalMax(c.Protein, c.Max, c.PeriodDays, e.hasProtein(c.Protein), t, view)
	case TagMax:
		st = e.evalMax(quote(c.Tag), c.Max, c.PeriodDays, e.hasTag(c.Tag), t, view)
	case ProteinMin:
		st = e.evalMin(c.Protein, c.Min, c.PeriodDays, e.hasProtein(c.Protein), t, view)
	case TagMin:
		st = e.evalMin(quote(c.Tag), c.Min, c.PeriodDays, e.hasTag(c.Tag), t, view)
	case NoRepeat:
		st = evalNoRepeat(c, t, view)
	default:
		st = RuleStatus{Status: StatusViolated, Message: fmt.Sprintf("unsupported rule type %q", r.Kind)}
	}
	st.RuleID = r.ID
	st.RuleName = r.Name
	st.Kind = r.Kind
	return st
}

type facetMatch func(f recipe.Facet) bool

func (e *Evaluator) hasProtein(p string) facetMatch {
	return func(f recipe.Facet) bool { return f.HasProtein(p) }
}

func (e *Evaluator) hasTag(tag string) facetMatch {
	return func(f recipe.Facet) bool { return f.HasTag(tag) }
}

// byID lifts a facet predicate to recipe ids. Unknown ids never match;
// ResolveLedger rejects ledgers that would rely on that.
func (e *Evaluator) byID(m facetMatch) func(int64) bool {
	return func(id int64) bool {
		f, ok := e.catalog.Get(id)
		return ok && m(f)
	}
}

// ResolveLedger fails with ErrUnknownRecipe when a planned or cooked entry
// refers to a recipe the catalog does not hold.
func ResolveLedger(l *ledger.Ledger, catalog *recipe.Catalog) error {
	if l == nil {
		return nil
	}
	if catalog == nil {
		catalog = recipe.NewCatalog(nil)
	}
	for i := 0; i < l.Len(); i++ {
		e := l.At(i)
		if !e.Status.Counts() {
			continue
		}
		if _, ok := catalog.Get(e.RecipeID); !ok {
			return fmt.Errorf("%w: entry %d on %s refers to recipe %d",
				ErrUnknownRecipe, e.ID, ledger.FormatDay(e.Date), e.RecipeID)
		}
	}
	return nil
}

// evalMax counts matches in the trailing window ending at the date,
// candidate included.
func (e *Evaluator) evalMax(label string, max, period int, m facetMatch, t Target, view ledger.View) RuleStatus {
	count := view.CountInWindow(ledger.Trailing(t.Date, period), e.byID(m))
	if t.Recipe != nil && m(*t.Recipe) {
		count++
	}

	st := RuleStatus{CurrentCount: count, Threshold: max}
	switch {
	case count > max:
		st.Status = StatusViolated
		st.Message = fmt.Sprintf("%s would appear %dx in %d days (max %d)", label, count, period, max)
	case count == max:
		st.Status = StatusWarning
		st.Message = fmt.Sprintf("%s at limit: adding this would exceed max (%d/%d in %d days)", label, count, max, period)
	default:
		st.Status = StatusOK
		st.Message = fmt.Sprintf("%s: %d/%d in %d days", label, count, max, period)
	}
	return st
}

// evalMin judges the trailing window ending at the date, candidate excluded.
// The window closes at the end of the date, so remaining days count the
// date itself.
func (e *Evaluator) evalMin(label string, min, period int, m facetMatch, t Target, view ledger.View) RuleStatus {
	w := ledger.Trailing(t.Date, period)
	count := view.CountInWindow(w, e.byID(m))
	remaining := ledger.DaysBetween(t.AsOf, t.Date) + 1

	st := RuleStatus{CurrentCount: count, Threshold: min}
	switch {
	case count >= min:
		st.Status = StatusOK
		st.Message = fmt.Sprintf("%s: %d/%d+ in %d days", label, count, min, period)
	case t.Recipe != nil && m(*t.Recipe):
		st.Status = StatusOK
		st.Fulfilling = true
		st.Message = fmt.Sprintf("%s: this meets the minimum (%d/%d+ in %d days)", label, count+1, min, period)
	case remaining <= 0:
		st.Status = StatusViolated
		st.Message = fmt.Sprintf("%s only %dx in %d days (need %d+), deadline passed", label, count, period, min)
	default:
		st.Status = StatusWarning
		st.Message = fmt.Sprintf("%s only %dx in %d days (need %d+), %d days left", label, count, period, min, remaining)
	}
	return st
}

// evalNoRepeat looks for the nearest occurrence of the candidate on either
// side of the date, so back-filling a day before an existing entry is caught
// as well as repeating a recent one.
func evalNoRepeat(c NoRepeat, t Target, view ledger.View) RuleStatus {
	st := RuleStatus{Threshold: c.MinDaysBetweenRepeat, Status: StatusOK}
	if t.Recipe == nil {
		st.Message = fmt.Sprintf("no repeat within %d days", c.MinDaysBetweenRepeat)
		return st
	}
	gap, found := view.NearestGap(t.Recipe.ID, t.Date)
	if found {
		st.CurrentCount = gap
	}
	if found && gap < c.MinDaysBetweenRepeat {
		st.Status = StatusViolated
		st.Message = fmt.Sprintf("no repeat within %d days: %s is already planned %d days apart",
			c.MinDaysBetweenRepeat, titleOf(t.Recipe), gap)
		return st
	}
	st.Message = fmt.Sprintf("not repeated within %d days", c.MinDaysBetweenRepeat)
	return st
}

func titleOf(f *recipe.Facet) string {
	if f.Title != "" {
		return f.Title
	}
	return fmt.Sprintf("recipe #%d", f.ID)
}

func quote(tag string) string {
	return "'" + tag + "'"
}
