package completion

import (
	"math"
	"time"
)

// Week windowing against an arbitrary plan start date. Week 1 runs from the
// start weekday through the following Sunday (a single day when the plan
// starts on Sunday). Every later week is the real current calendar week,
// Monday through Sunday. These results are only meaningful when queried
// "live" for the current week, not for arbitrary past or future weeks.

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// firstWeekEnd is the last date of week 1: the first Sunday on or after start.
func firstWeekEnd(start time.Time) time.Time {
	start = truncateToDay(start)
	daysToSunday := (7 - int(start.Weekday())) % 7
	return start.AddDate(0, 0, daysToSunday)
}

// WeekNumber is the 1-based plan week the given day falls into.
func WeekNumber(start, today time.Time) int {
	start = truncateToDay(start)
	today = truncateToDay(today)
	if !today.After(start) {
		return 1
	}

	week1End := firstWeekEnd(start)
	if !today.After(week1End) {
		return 1
	}

	// week1End + 1 day is always a Monday
	daysSinceFirstMonday := int(today.Sub(week1End.AddDate(0, 0, 1)).Hours() / 24)
	return 2 + daysSinceFirstMonday/7
}

// DayNumber is the 1-based day of the plan, counted from the start date.
func DayNumber(start, today time.Time) int {
	start = truncateToDay(start)
	today = truncateToDay(today)
	if today.Before(start) {
		return 1
	}
	return int(today.Sub(start).Hours()/24) + 1
}

// CurrentWeekDays lists the calendar dates of the plan week today falls
// into: the partial start week for week 1, Monday..Sunday otherwise.
func CurrentWeekDays(start, today time.Time) []time.Time {
	start = truncateToDay(start)
	today = truncateToDay(today)

	if WeekNumber(start, today) == 1 {
		if start.Weekday() == time.Sunday {
			return []time.Time{start}
		}
		var days []time.Time
		for d := start; !d.After(firstWeekEnd(start)); d = d.AddDate(0, 0, 1) {
			days = append(days, d)
		}
		return days
	}

	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	days := make([]time.Time, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, monday.AddDate(0, 0, i))
	}
	return days
}

// ProgressPercent measures whole plan progress as fully elapsed weeks over
// total weeks. Deliberately not based on meals actually completed.
func ProgressPercent(currentWeek, totalWeeks int) int {
	if totalWeeks <= 0 {
		return 0
	}
	completedWeeks := currentWeek - 1
	if completedWeeks < 0 {
		completedWeeks = 0
	}
	pct := int(math.Round(100 * float64(completedWeeks) / float64(totalWeeks)))
	if pct > 100 {
		pct = 100
	}
	return pct
}
