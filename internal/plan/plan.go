package plan

import "time"

// DateFormat is the ISO day format used for all plan and completion dates.
const DateFormat = "2006-01-02"

type Kind string

const (
	KindDiet    Kind = "diet"
	KindWorkout Kind = "workout"
)

// Diet weekly patterns index days Sunday-first, workout patterns Monday-first.
// The asymmetry is inherited from the mobile clients and is part of the wire
// contract, callers must use DayIndex instead of their own modulo arithmetic.
const (
	DietWeekStart    = time.Sunday
	WorkoutWeekStart = time.Monday
)

// DayIndex maps a real weekday into the 0..6 slot of a weekly pattern of the
// given plan kind.
func DayIndex(kind Kind, weekday time.Weekday) int {
	if kind == KindWorkout {
		return (int(weekday) + 6) % 7
	}
	return int(weekday)
}

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// UserProfile is an immutable snapshot of the user, owned by the caller.
type UserProfile struct {
	Age               int     `json:"age"`
	Gender            Gender  `json:"gender"`
	HeightCm          float64 `json:"heightCm"`
	CurrentWeightKg   float64 `json:"currentWeightKg"`
	TargetWeightKg    float64 `json:"targetWeightKg"`
	BodyGoal          string  `json:"bodyGoal"`
	DietPreference    string  `json:"dietPreference,omitempty"`
	MedicalConditions string  `json:"medicalConditions,omitempty"`
	Country           string  `json:"country,omitempty"`
}

type Macros struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fats     int `json:"fats"`
}

func (m Macros) Add(other Macros) Macros {
	return Macros{
		Calories: m.Calories + other.Calories,
		Protein:  m.Protein + other.Protein,
		Carbs:    m.Carbs + other.Carbs,
		Fats:     m.Fats + other.Fats,
	}
}

type MealItem struct {
	Name             string   `json:"name"`
	EmojiTag         string   `json:"emojiTag,omitempty"`
	Ingredients      []string `json:"ingredients,omitempty"`
	Macros           Macros   `json:"macros"`
	PrepTimeLabel    string   `json:"prepTimeLabel,omitempty"`
	ServingSizeLabel string   `json:"servingSizeLabel,omitempty"`
	Instructions     string   `json:"instructions,omitempty"`
}

type DietDay struct {
	DayIndex int    `json:"dayIndex"` // 1..7 within the repeating week
	DayName  string `json:"dayName"`
	Date     string `json:"date"`
	Totals   Macros `json:"totals"`

	Breakfast MealItem   `json:"breakfast"`
	Lunch     MealItem   `json:"lunch"`
	Dinner    MealItem   `json:"dinner"`
	Snacks    []MealItem `json:"snacks"`

	WaterTargetLabel string `json:"waterTargetLabel"`
	Notes            string `json:"notes"`
}

// MealSlots is the number of markable meal slots of the day, used as the
// denominator for the day completion percentage.
func (d DietDay) MealSlots() int {
	return 3 + len(d.Snacks)
}

type Exercise struct {
	Name           string   `json:"name"`
	EmojiTag       string   `json:"emojiTag,omitempty"`
	Sets           int      `json:"sets"`
	Reps           int      `json:"reps"`
	RestLabel      string   `json:"restLabel,omitempty"`
	TargetMuscles  []string `json:"targetMuscles,omitempty"`
	CaloriesBurned int      `json:"caloriesBurned"`
}

type WorkoutDay struct {
	DayIndex  int        `json:"dayIndex"`
	DayName   string     `json:"dayName"`
	Date      string     `json:"date"`
	IsRestDay bool       `json:"isRestDay"`
	Exercises []Exercise `json:"exercises"`
}

// DietPlan is a 7-day repeating template, not one entry per calendar day.
// WeeklyPattern always has length 7, indexed Sunday-first (see DietWeekStart).
type DietPlan struct {
	ID            string    `json:"id,omitempty"`
	UserID        string    `json:"userId"`
	Goal          string    `json:"goal"`
	DurationLabel string    `json:"durationLabel"`
	TotalWeeks    int       `json:"totalWeeks"`
	WeeklyPattern []DietDay `json:"weeklyPattern"`
	StartDate     string    `json:"startDate"`
	EndDate       string    `json:"endDate"`
	TargetMacros  Macros    `json:"targetMacros"`

	// server-reported completion snapshot, optional
	CompletedMealIDs []string `json:"completedMealIds,omitempty"`
	CompletedDayIDs  []string `json:"completedDayIds,omitempty"`
}

// WorkoutPlan mirrors DietPlan; WeeklyPattern is indexed Monday-first
// (see WorkoutWeekStart).
type WorkoutPlan struct {
	ID            string       `json:"id,omitempty"`
	UserID        string       `json:"userId"`
	Goal          string       `json:"goal"`
	DurationLabel string       `json:"durationLabel"`
	TotalWeeks    int          `json:"totalWeeks"`
	WeeklyPattern []WorkoutDay `json:"weeklyPattern"`
	StartDate     string       `json:"startDate"`
	EndDate       string       `json:"endDate"`

	CompletedExerciseIDs []string `json:"completedExerciseIds,omitempty"`
	CompletedDayIDs      []string `json:"completedDayIds,omitempty"`
}

// DayForDate selects the pattern entry for the given calendar date.
func (p *DietPlan) DayForDate(date time.Time) *DietDay {
	if len(p.WeeklyPattern) != 7 {
		return nil
	}
	return &p.WeeklyPattern[DayIndex(KindDiet, date.Weekday())]
}

func (p *WorkoutPlan) DayForDate(date time.Time) *WorkoutDay {
	if len(p.WeeklyPattern) != 7 {
		return nil
	}
	return &p.WeeklyPattern[DayIndex(KindWorkout, date.Weekday())]
}
