package completion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/planfit/planfit/internal/plan"
)

type Category string

const (
	CategoryBreakfast Category = "breakfast"
	CategoryLunch     Category = "lunch"
	CategoryDinner    Category = "dinner"
	CategorySnack     Category = "snack"
	CategoryExercise  Category = "exercise"
	CategoryDay       Category = "day"
)

// ID is a structured completion identifier, constructed directly at
// mark-time and never re-derived by string-parsing a display label.
// String() renders the wire formats the backend and older clients expect:
//
//	meal:     {isoDate}-{mealType}-{mealName}
//	exercise: {isoDate}-{exerciseName}
//	day:      {isoDate}
type ID struct {
	Date     string
	Category Category
	Name     string
}

func (id ID) String() string {
	switch id.Category {
	case CategoryDay:
		return id.Date
	case CategoryExercise:
		return fmt.Sprintf("%s-%s", id.Date, id.Name)
	default:
		return fmt.Sprintf("%s-%s-%s", id.Date, id.Category, id.Name)
	}
}

func MealID(date string, mealType Category, mealName string) ID {
	return ID{Date: date, Category: mealType, Name: mealName}
}

func ExerciseID(date, exerciseName string) ID {
	return ID{Date: date, Category: CategoryExercise, Name: exerciseName}
}

func DayID(date string) ID {
	return ID{Date: date, Category: CategoryDay}
}

var (
	isoDateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dayOfWeekIDs = regexp.MustCompile(`^(\d{1,2})-(\d{1,3})$`)
)

// NormalizeDayID maps both day-completion id forms onto the canonical ISO
// date. Server snapshots may carry the legacy composite
// "{dayNumber}-{weekNumber}" form; it is accepted on read and resolved
// against the plan start date, never produced.
func NormalizeDayID(raw string, start time.Time) (string, bool) {
	raw = strings.TrimSpace(raw)
	if isoDateRe.MatchString(raw) {
		return raw, true
	}

	m := dayOfWeekIDs.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	dayNumber, _ := strconv.Atoi(m[1])
	weekNumber, _ := strconv.Atoi(m[2])
	if dayNumber < 1 || dayNumber > 7 || weekNumber < 1 {
		return "", false
	}

	date := start.AddDate(0, 0, (weekNumber-1)*7+(dayNumber-1))
	return date.Format(plan.DateFormat), true
}
