// Package report builds the analytic tables shown to marketing: weekly
// cohorts, the funnel-channel window report and duplicate counts per channel.
// Every builder is a pure function over already loaded records.
package report

import "time"

// WeekStart is the first day of an analytic week.
const WeekStart = time.Thursday

// Day truncates t to midnight of its calendar date, in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekOf returns the first and last day of the analytic week containing t.
func WeekOf(t time.Time) (from, to time.Time) {
	d := Day(t)
	back := (int(d.Weekday()) - int(WeekStart) + 7) % 7
	from = d.AddDate(0, 0, -back)
	return from, from.AddDate(0, 0, 6)
}

// LastCompleteWeek returns the start of the last analytic week that ended
// before now.
func LastCompleteWeek(now time.Time) time.Time {
	from, _ := WeekOf(now)
	return from.AddDate(0, 0, -7)
}

// within reports whether the date of t lies in [from, to], both inclusive.
func within(t, from, to time.Time) bool {
	d := Day(t)
	return !d.Before(from) && !d.After(to)
}
