package events

// Kind names a broadcast event. The set is closed: every event flowing
// through the bus is one of the typed structs below.
type Kind string

const (
	KindMealCompleted          Kind = "mealCompleted"
	KindDayCompleted           Kind = "dayCompleted"
	KindExerciseCompleted      Kind = "exerciseCompleted"
	KindWaterIntakeUpdated     Kind = "waterIntakeUpdated"
	KindDietProgressUpdated    Kind = "dietProgressUpdated"
	KindWorkoutProgressUpdated Kind = "workoutProgressUpdated"
)

type Event interface {
	EventKind() Kind
}

type MealCompleted struct {
	UserID     string `json:"userId"`
	MealID     string `json:"mealId"`
	Date       string `json:"date"`
	MealType   string `json:"mealType"`
	DayNumber  int    `json:"dayNumber"`
	WeekNumber int    `json:"weekNumber"`
}

func (MealCompleted) EventKind() Kind { return KindMealCompleted }

type DayCompleted struct {
	UserID     string `json:"userId"`
	Date       string `json:"date"`
	DayNumber  int    `json:"dayNumber"`
	WeekNumber int    `json:"weekNumber"`
	// Reverted is true when a previously broadcast completion got rolled
	// back because the remote store did not acknowledge it.
	Reverted bool `json:"reverted"`
}

func (DayCompleted) EventKind() Kind { return KindDayCompleted }

type ExerciseCompleted struct {
	UserID     string `json:"userId"`
	ExerciseID string `json:"exerciseId"`
	Date       string `json:"date"`
	DayNumber  int    `json:"dayNumber"`
	WeekNumber int    `json:"weekNumber"`
}

func (ExerciseCompleted) EventKind() Kind { return KindExerciseCompleted }

type WaterIntakeUpdated struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	IntakeMl  int    `json:"intakeMl"`
	Completed bool   `json:"completed"`
}

func (WaterIntakeUpdated) EventKind() Kind { return KindWaterIntakeUpdated }

type DietProgressUpdated struct {
	UserID          string `json:"userId"`
	ProgressPercent int    `json:"progressPercent"`
}

func (DietProgressUpdated) EventKind() Kind { return KindDietProgressUpdated }

type WorkoutProgressUpdated struct {
	UserID          string `json:"userId"`
	ProgressPercent int    `json:"progressPercent"`
}

func (WorkoutProgressUpdated) EventKind() Kind { return KindWorkoutProgressUpdated }
