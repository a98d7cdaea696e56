package ledger

import (
	"fmt"
	"sort"
	"time"
)

// Status is the lifecycle state of a meal plan entry.
type Status string

const (
	StatusPlanned Status = "planned"
	StatusCooked  Status = "cooked"
	StatusSkipped Status = "skipped"
)

// Counts reports whether entries with this status occupy a slot in rule windows.
// Skipped meals do not.
func (s Status) Counts() bool {
	return s == StatusPlanned || s == StatusCooked
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPlanned, StatusCooked, StatusSkipped:
		return st, nil
	}
	return "", fmt.Errorf("unknown meal status %q", s)
}

// Entry is a committed meal plan entry.
type Entry struct {
	ID       int64     `json:"id"`
	Date     time.Time `json:"date"`
	MealType string    `json:"meal_type"`
	RecipeID int64     `json:"recipe_id"`
	Status   Status    `json:"status"`
	Notes    string    `json:"notes,omitempty"`
}

// Assignment is a suggestion held in memory during a single planning pass.
type Assignment struct {
	Date     time.Time `json:"date"`
	RecipeID int64     `json:"recipe_id"`
}

// Ledger is an immutable snapshot of committed entries, ordered by date.
type Ledger struct {
	entries []Entry
	// byRecipe holds the positions of planned or cooked entries per recipe, in date order.
	byRecipe map[int64][]int
}

// New builds a snapshot. The input slice is copied and dates are normalised.
func New(entries []Entry) *Ledger {
	cp := make([]Entry, len(entries))
	for i, e := range entries {
		e.Date = Day(e.Date)
		cp[i] = e
	}
	sort.SliceStable(cp, func(i, j int) bool {
		if !cp[i].Date.Equal(cp[j].Date) {
			return cp[i].Date.Before(cp[j].Date)
		}
		return cp[i].ID < cp[j].ID
	})
	byRecipe := map[int64][]int{}
	for i, e := range cp {
		if e.Status.Counts() {
			byRecipe[e.RecipeID] = append(byRecipe[e.RecipeID], i)
		}
	}
	return &Ledger{entries: cp, byRecipe: byRecipe}
}

// Entries returns a copy of every entry in date order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Between returns entries whose date falls in w, skipped ones included.
func (l *Ledger) Between(w Window) []Entry {
	from, to := l.Range(w)
	if from == to {
		return nil
	}
	out := make([]Entry, to-from)
	copy(out, l.entries[from:to])
	return out
}

// Range returns the positions [from, to) of the entries whose date falls in w.
func (l *Ledger) Range(w Window) (from, to int) {
	start, end := Day(w.Start), Day(w.End)
	from = sort.Search(len(l.entries), func(i int) bool { return !l.entries[i].Date.Before(start) })
	to = sort.Search(len(l.entries), func(i int) bool { return l.entries[i].Date.After(end) })
	if to < from {
		to = from
	}
	return from, to
}

// At returns the entry at position i of the date order.
func (l *Ledger) At(i int) Entry {
	return l.entries[i]
}

// Len is the number of entries in the snapshot.
func (l *Ledger) Len() int {
	return len(l.entries)
}
