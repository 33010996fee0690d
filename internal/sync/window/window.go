// Package window computes the calendar date ranges a sync run covers.
package window

import (
	"time"
)

const isoDate = "2006-01-02"

// Window is an inclusive ascending range of UTC calendar dates. An empty
// window (start after end) means the run must short-circuit without any
// fetch calls.
type Window struct {
	Start time.Time
	End   time.Time
	Dates []time.Time
}

// IsEmpty reports whether the window covers no dates.
func (w Window) IsEmpty() bool {
	return len(w.Dates) == 0
}

// StartTime is the inclusive lower bound for timestamp filters.
func (w Window) StartTime() time.Time {
	return w.Start
}

// EndExclusive is the exclusive upper bound for timestamp filters: midnight
// of the day after the window's last date.
func (w Window) EndExclusive() time.Time {
	if w.IsEmpty() {
		return w.End
	}
	return w.End.AddDate(0, 0, 1)
}

// Contains reports whether the date (truncated to UTC day) falls inside the
// window.
func (w Window) Contains(date time.Time) bool {
	day := Day(date)
	return !day.Before(w.Start) && !day.After(w.End)
}

// Day truncates a timestamp to its UTC calendar date.
func Day(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// FillWindow is the fixed backfill policy: the trailing days ending
// yesterday, independent of any stored watermark.
func FillWindow(now time.Time, days int) Window {
	if days <= 0 {
		return Window{}
	}
	end := Day(now).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(days - 1))
	return build(start, end)
}

// FreshWindow is the incremental policy: start at the day after the stored
// cursor when one exists, otherwise the default lookback; end at yesterday
// minus the attribution lag. A start past the end yields an empty window.
func FreshWindow(now time.Time, cursor string, defaultLookbackDays, attributionLagDays int) Window {
	end := Day(now).AddDate(0, 0, -1)
	if attributionLagDays > 0 {
		end = end.AddDate(0, 0, -attributionLagDays)
	}

	var start time.Time
	if cursorDay, ok := ParseCursorDate(cursor); ok {
		start = cursorDay.AddDate(0, 0, 1)
	} else {
		if defaultLookbackDays <= 0 {
			defaultLookbackDays = 1
		}
		start = end.AddDate(0, 0, -(defaultLookbackDays - 1))
	}

	return build(start, end)
}

// ParseCursorDate interprets a stored cursor value as a UTC calendar date.
// Cursors are either RFC3339 timestamps (order ledgers) or ISO dates (ad
// platforms); anything else reports false.
func ParseCursorDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return Day(ts), true
	}
	if day, err := time.Parse(isoDate, value); err == nil {
		return Day(day), true
	}
	return time.Time{}, false
}

// FormatDate renders a date in the ISO form used by cursor values and
// platform query parameters.
func FormatDate(t time.Time) string {
	return Day(t).Format(isoDate)
}

func build(start, end time.Time) Window {
	if start.After(end) {
		return Window{Start: start, End: end}
	}
	dates := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dates = append(dates, day)
	}
	return Window{Start: start, End: end, Dates: dates}
}
