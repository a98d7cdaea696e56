package ledger

import "time"

// Day truncates t to midnight UTC of the calendar day t falls on in its own
// location. All ledger arithmetic is done on values produced by Day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// FormatDay renders a calendar day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return Day(t).Format("2006-01-02")
}

// AddDays moves a calendar day by n whole days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of whole calendar days from a to b.
// It is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// WeekStart returns the Monday of the week containing t.
func WeekStart(t time.Time) time.Time {
	d := Day(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// NextMonday returns the first Monday strictly after t.
func NextMonday(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7)
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Trailing returns the window of periodDays days ending at end.
func Trailing(end time.Time, periodDays int) Window {
	return Window{Start: AddDays(end, -(periodDays - 1)), End: Day(end)}
}

// Week returns the seven-day window starting at weekStart.
func Week(weekStart time.Time) Window {
	return Window{Start: Day(weekStart), End: AddDays(weekStart, 6)}
}

// Contains reports whether the calendar day of t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days lists every day of the window in order.
func (w Window) Days() []time.Time {
	var days []time.Time
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
