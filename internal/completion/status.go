package completion

import "time"

// DayStatus is always derived from dates and the completion sets, there is
// no stored status field anywhere.
type DayStatus string

const (
	DayUpcoming   DayStatus = "upcoming"
	DayInProgress DayStatus = "in_progress"
	DayCompleted  DayStatus = "completed"
	DayMissed     DayStatus = "missed"
)

// CompletionThresholdPercent is the hard day-completion threshold. A past
// day with at least half of its meal slots checked off counts as completed.
const CompletionThresholdPercent = 50

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// CompletionPercentage is completed/total in whole percents, 0 for an empty
// day (parsers guarantee total > 0 for real plan days).
func CompletionPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	pct := completed * 100 / total
	if pct > 100 {
		pct = 100
	}
	return pct
}

// StatusForDay derives the state of one plan day:
//   - today is always in progress, even at 0% completion
//   - future days are upcoming
//   - past days are completed at >= 50%, missed below
func StatusForDay(date, today time.Time, completedCount, totalSlots int) DayStatus {
	switch {
	case sameDay(date, today):
		return DayInProgress
	case date.After(today):
		return DayUpcoming
	case CompletionPercentage(completedCount, totalSlots) >= CompletionThresholdPercent:
		return DayCompleted
	default:
		return DayMissed
	}
}
