package calendar

import (
	"strings"
	"time"

	"meal-scheduler/internal/ledger"
)

// Evenings overlapping this span make cooking at home unlikely.
const (
	DinnerWindowStart = "17:00"
	DinnerWindowEnd   = "21:00"
)

var (
	conflictKeywords = []string{
		"dinner", "restaurant", "reservation", "date night",
		"happy hour", "drinks", "cocktails", "eating out",
		"flight", "travel", "airport", "hotel",
	}
	homeKeywords   = []string{"cook", "meal prep", "grocery", "groceries"}
	allDayKeywords = []string{"flight", "travel", "trip", "vacation", "out of town"}
)

// Event is a calendar entry on a given day. Start and End are "HH:MM";
// both empty means an all-day event.
type Event struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"date"`
	Start          string    `json:"start_time,omitempty"`
	End            string    `json:"end_time,omitempty"`
	Summary        string    `json:"summary"`
	DinnerConflict bool      `json:"is_dinner_conflict"`
	Source         string    `json:"source"`
}

// AllDay reports whether the event has no clock times.
func (e Event) AllDay() bool {
	return e.Start == "" && e.End == ""
}

// IsDinnerConflict decides whether an event keeps the household from cooking.
// Keywords win over clock times; timed events conflict when they overlap the
// dinner window; all-day events conflict only when they look like travel.
func IsDinnerConflict(e Event) bool {
	summary := strings.ToLower(e.Summary)
	for _, kw := range homeKeywords {
		if strings.Contains(summary, kw) {
			return false
		}
	}
	for _, kw := range conflictKeywords {
		if strings.Contains(summary, kw) {
			return true
		}
	}
	if e.AllDay() {
		for _, kw := range allDayKeywords {
			if strings.Contains(summary, kw) {
				return true
			}
		}
		return false
	}
	if e.Start == "" {
		return false
	}
	end := e.End
	if end == "" {
		end = "23:59"
	}
	// "HH:MM" strings compare in clock order.
	return e.Start < DinnerWindowEnd && end > DinnerWindowStart
}

// Day is the availability of one evening.
type Day struct {
	Date      time.Time `json:"date"`
	Available bool      `json:"available"`
	Events    []Event   `json:"events"`
}

// Availability lays events out over every day of w. A day is unavailable when
// any of its events is a dinner conflict.
func Availability(w ledger.Window, events []Event) []Day {
	byDay := map[time.Time][]Event{}
	for _, e := range events {
		d := ledger.Day(e.Date)
		byDay[d] = append(byDay[d], e)
	}
	var out []Day
	for _, d := range w.Days() {
		day := Day{Date: d, Available: true, Events: byDay[d]}
		for _, e := range day.Events {
			if e.DinnerConflict {
				day.Available = false
			}
		}
		out = append(out, day)
	}
	return out
}

// OpenDates returns the available days that are not already occupied.
func OpenDates(days []Day, occupied []time.Time) []time.Time {
	taken := map[time.Time]bool{}
	for _, d := range occupied {
		taken[ledger.Day(d)] = true
	}
	var out []time.Time
	for _, d := range days {
		if d.Available && !taken[d.Date] {
			out = append(out, d.Date)
		}
	}
	return out
}
