package renewables

import "time"

// WindowDays is the length of a DateWindow.
const WindowDays = 7

// DateWindow is the ordered list of dates covered by a run, oldest first.
type DateWindow [WindowDays]string

// Start returns the oldest date of the window.
func (w DateWindow) Start() string { return w[0] }

// End returns the newest date of the window.
func (w DateWindow) End() string { return w[WindowDays-1] }

// ComputeWeekWindow returns the Sunday..Saturday week ending on the most recent
// Saturday on or before now, evaluated at midnight UTC.
func ComputeWeekWindow(now time.Time) DateWindow {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// time.Weekday counts from Sunday=0, so Saturday is 6 and lands on 0 here.
	daysSinceSaturday := (int(today.Weekday()) + 1) % 7
	lastSaturday := today.AddDate(0, 0, -daysSinceSaturday)
	start := lastSaturday.AddDate(0, 0, -(WindowDays - 1))

	var w DateWindow
	for i := range w {
		w[i] = start.AddDate(0, 0, i).Format(DateLayout)
	}
	return w
}
