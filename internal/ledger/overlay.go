package ledger

import (
	"sort"
	"time"
)

// View answers window queries over committed and tentative plan state.
type View interface {
	// CountInWindow counts planned or cooked occurrences inside w whose
	// recipe satisfies match.
	CountInWindow(w Window, match func(recipeID int64) bool) int
	// NearestGap returns the smallest absolute day distance between date and
	// another occurrence of recipeID.
	NearestGap(recipeID int64, date time.Time) (gap int, found bool)
	// LastOnOrBefore returns the latest occurrence of recipeID not after date.
	LastOnOrBefore(recipeID int64, date time.Time) (time.Time, bool)
	// PlanCount is the number of occurrences of recipeID in the view.
	PlanCount(recipeID int64) int
}

// Overlay is the union of a ledger snapshot and the tentative assignments
// of one planning pass. Overlays are values: With and WithoutAt return new
// overlays and never touch the receiver or the ledger.
//
// Window counts cost a binary search plus the entries inside the window;
// recipe lookups cost a binary search over that recipe's history.
type Overlay struct {
	base      *Ledger
	tentative []Assignment
	// exclude is a ledger position hidden from every query, or -1.
	exclude int
}

var _ View = (*Overlay)(nil)

// NewOverlay starts an overlay with no tentative assignments.
func NewOverlay(base *Ledger) *Overlay {
	if base == nil {
		base = New(nil)
	}
	return &Overlay{base: base, exclude: -1}
}

// With returns a new overlay that also contains a.
func (o *Overlay) With(a Assignment) *Overlay {
	next := make([]Assignment, len(o.tentative), len(o.tentative)+1)
	copy(next, o.tentative)
	a.Date = Day(a.Date)
	next = append(next, a)
	return &Overlay{base: o.base, tentative: next, exclude: o.exclude}
}

// WithoutAt returns a new overlay that ignores the committed entry at
// position pos of the ledger (see Ledger.Range and Ledger.At). pos is a
// position, not an entry id: unsaved entries all carry ID 0.
func (o *Overlay) WithoutAt(pos int) *Overlay {
	return &Overlay{base: o.base, tentative: o.tentative, exclude: pos}
}

// Tentative returns a copy of the assignments made so far.
func (o *Overlay) Tentative() []Assignment {
	out := make([]Assignment, len(o.tentative))
	copy(out, o.tentative)
	return out
}

func (o *Overlay) counts(pos int) bool {
	return pos != o.exclude && o.base.entries[pos].Status.Counts()
}

func (o *Overlay) CountInWindow(w Window, match func(recipeID int64) bool) int {
	n := 0
	from, to := o.base.Range(w)
	for i := from; i < to; i++ {
		if o.counts(i) && match(o.base.entries[i].RecipeID) {
			n++
		}
	}
	for _, a := range o.tentative {
		if w.Contains(a.Date) && match(a.RecipeID) {
			n++
		}
	}
	return n
}

// history returns the committed positions of recipeID and the index of the
// first one dated on or after day.
func (o *Overlay) history(recipeID int64, day time.Time) ([]int, int) {
	pos := o.base.byRecipe[recipeID]
	i := sort.Search(len(pos), func(k int) bool { return !o.base.entries[pos[k]].Date.Before(day) })
	return pos, i
}

func (o *Overlay) NearestGap(recipeID int64, date time.Time) (int, bool) {
	day := Day(date)
	best, found := 0, false
	consider := func(d time.Time) {
		gap := DaysBetween(d, day)
		if gap < 0 {
			gap = -gap
		}
		if !found || gap < best {
			best, found = gap, true
		}
	}

	pos, i := o.history(recipeID, day)
	for k := i; k < len(pos); k++ {
		if pos[k] != o.exclude {
			consider(o.base.entries[pos[k]].Date)
			break
		}
	}
	for k := i - 1; k >= 0; k-- {
		if pos[k] != o.exclude {
			consider(o.base.entries[pos[k]].Date)
			break
		}
	}
	for _, a := range o.tentative {
		if a.RecipeID == recipeID {
			consider(a.Date)
		}
	}
	return best, found
}

func (o *Overlay) LastOnOrBefore(recipeID int64, date time.Time) (time.Time, bool) {
	var last time.Time
	found := false
	day := Day(date)

	pos := o.base.byRecipe[recipeID]
	after := sort.Search(len(pos), func(k int) bool { return o.base.entries[pos[k]].Date.After(day) })
	for k := after - 1; k >= 0; k-- {
		if pos[k] != o.exclude {
			last, found = o.base.entries[pos[k]].Date, true
			break
		}
	}
	for _, a := range o.tentative {
		if a.RecipeID != recipeID || a.Date.After(day) {
			continue
		}
		if !found || a.Date.After(last) {
			last, found = a.Date, true
		}
	}
	return last, found
}

func (o *Overlay) PlanCount(recipeID int64) int {
	n := len(o.base.byRecipe[recipeID])
	if o.exclude >= 0 && o.exclude < len(o.base.entries) &&
		o.base.entries[o.exclude].RecipeID == recipeID && o.base.entries[o.exclude].Status.Counts() {
		n--
	}
	for _, a := range o.tentative {
		if a.RecipeID == recipeID {
			n++
		}
	}
	return n
}
