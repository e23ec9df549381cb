package dashboard

import (
	"context"
	"time"

	"github.com/planfit/planfit/internal/completion"
	"github.com/planfit/planfit/internal/events"
	"github.com/planfit/planfit/internal/plan"
	"github.com/planfit/planfit/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

// Aggregator builds the one-call dashboard view: today's slice of both plans
// with completion flags, the current plan week strip, and overall progress.
// Nothing here is stored, every response is derived fresh from the plan
// caches and the completion tracker.
type Aggregator struct {
	dietCache    *plan.Cache[plan.DietPlan]
	workoutCache *plan.Cache[plan.WorkoutPlan]
	trackers     *completion.Registry
	bus          *events.Bus
	now          func() time.Time
}

func NewAggregator(
	dietCache *plan.Cache[plan.DietPlan],
	workoutCache *plan.Cache[plan.WorkoutPlan],
	trackers *completion.Registry,
	bus *events.Bus,
) *Aggregator {
	return &Aggregator{
		dietCache:    dietCache,
		workoutCache: workoutCache,
		trackers:     trackers,
		bus:          bus,
		now:          time.Now,
	}
}

// SetNowFunc injects a clock for tests.
func (a *Aggregator) SetNowFunc(now func() time.Time) {
	a.now = now
}

type MealSlotView struct {
	Slot      string      `json:"slot"`
	Name      string      `json:"name"`
	Macros    plan.Macros `json:"macros"`
	Completed bool        `json:"completed"`
}

type ExerciseView struct {
	Name      string `json:"name"`
	Sets      int    `json:"sets"`
	Reps      int    `json:"reps"`
	Completed bool   `json:"completed"`
}

type WeekStripEntry struct {
	Date    string               `json:"date"`
	DayName string               `json:"dayName"`
	Status  completion.DayStatus `json:"status"`
}

type DietSection struct {
	Goal              string               `json:"goal"`
	TargetMacros      plan.Macros          `json:"targetMacros"`
	Day               plan.DietDay         `json:"day"`
	Meals             []MealSlotView       `json:"meals"`
	CompletionPercent int                  `json:"completionPercent"`
	Status            completion.DayStatus `json:"status"`
	ProgressPercent   int                  `json:"progressPercent"`
	WeekNumber        int                  `json:"weekNumber"`
	DayNumber         int                  `json:"dayNumber"`
	TotalWeeks        int                  `json:"totalWeeks"`
	DurationLabel     string               `json:"durationLabel"`
}

type WorkoutSection struct {
	Goal            string         `json:"goal"`
	Day             plan.WorkoutDay `json:"day"`
	Exercises       []ExerciseView `json:"exercises"`
	IsRestDay       bool           `json:"isRestDay"`
	ProgressPercent int            `json:"progressPercent"`
	WeekNumber      int            `json:"weekNumber"`
}

type WaterView struct {
	IntakeMl  int  `json:"intakeMl"`
	Completed bool `json:"completed"`
}

type Dashboard struct {
	Date      string           `json:"date"`
	Diet      *DietSection     `json:"diet,omitempty"`
	Workout   *WorkoutSection  `json:"workout,omitempty"`
	WeekStrip []WeekStripEntry `json:"weekStrip"`
	Water     WaterView        `json:"water"`
}

// Build assembles the dashboard for the user. Sections for missing plans are
// simply omitted, a fresh account gets an empty dashboard, never an error.
func (a *Aggregator) Build(ctx context.Context, userID string) *Dashboard {
	ctx, span := tracing.GlobalTracer.Start(ctx, "dashboard.build")
	defer span.End()

	today := a.now()
	tracker := a.trackers.ForUser(userID)

	d := &Dashboard{
		Date: today.Format(plan.DateFormat),
	}

	intake, waterDone := tracker.WaterFor(ctx, d.Date)
	d.Water = WaterView{IntakeMl: intake, Completed: waterDone}

	dietPlan := a.dietCache.Load(ctx, userID, false)
	if dietPlan != nil {
		d.Diet = a.dietSection(ctx, tracker, dietPlan, today)
		d.WeekStrip = a.weekStrip(ctx, tracker, dietPlan, today)
	}

	workoutPlan := a.workoutCache.Load(ctx, userID, false)
	if workoutPlan != nil {
		d.Workout = a.workoutSection(ctx, tracker, workoutPlan, today)
	}

	return d
}

func (a *Aggregator) dietSection(
	ctx context.Context,
	tracker *completion.Tracker,
	p *plan.DietPlan,
	today time.Time,
) *DietSection {
	day := p.DayForDate(today)
	if day == nil {
		log.Warnf("diet plan %s has malformed weekly pattern", p.ID)
		return nil
	}

	date := today.Format(plan.DateFormat)
	meals := mealViews(ctx, tracker, date, day)

	completedCount := 0
	for _, m := range meals {
		if m.Completed {
			completedCount++
		}
	}

	start := parseStart(p.StartDate, today)
	weekNumber := completion.WeekNumber(start, today)

	return &DietSection{
		Goal:              p.Goal,
		TargetMacros:      p.TargetMacros,
		Day:               *day,
		Meals:             meals,
		CompletionPercent: completion.CompletionPercentage(completedCount, day.MealSlots()),
		Status:            completion.StatusForDay(today, today, completedCount, day.MealSlots()),
		ProgressPercent:   completion.ProgressPercent(weekNumber, p.TotalWeeks),
		WeekNumber:        weekNumber,
		DayNumber:         completion.DayNumber(start, today),
		TotalWeeks:        p.TotalWeeks,
		DurationLabel:     p.DurationLabel,
	}
}

func (a *Aggregator) workoutSection(
	ctx context.Context,
	tracker *completion.Tracker,
	p *plan.WorkoutPlan,
	today time.Time,
) *WorkoutSection {
	day := p.DayForDate(today)
	if day == nil {
		log.Warnf("workout plan %s has malformed weekly pattern", p.ID)
		return nil
	}

	date := today.Format(plan.DateFormat)
	exercises := make([]ExerciseView, 0, len(day.Exercises))
	for _, e := range day.Exercises {
		exercises = append(exercises, ExerciseView{
			Name:      e.Name,
			Sets:      e.Sets,
			Reps:      e.Reps,
			Completed: tracker.IsExerciseCompleted(ctx, date, e.Name),
		})
	}

	start := parseStart(p.StartDate, today)
	weekNumber := completion.WeekNumber(start, today)

	return &WorkoutSection{
		Goal:            p.Goal,
		Day:             *day,
		Exercises:       exercises,
		IsRestDay:       day.IsRestDay,
		ProgressPercent: completion.ProgressPercent(weekNumber, p.TotalWeeks),
		WeekNumber:      weekNumber,
	}
}

// weekStrip lists the days of the current plan week with their derived
// status. An explicitly completed day wins over the meal-count derivation.
func (a *Aggregator) weekStrip(
	ctx context.Context,
	tracker *completion.Tracker,
	p *plan.DietPlan,
	today time.Time,
) []WeekStripEntry {
	start := parseStart(p.StartDate, today)

	days := completion.CurrentWeekDays(start, today)
	strip := make([]WeekStripEntry, 0, len(days))
	for _, d := range days {
		date := d.Format(plan.DateFormat)
		day := p.DayForDate(d)

		totalSlots := 0
		if day != nil {
			totalSlots = day.MealSlots()
		}

		status := completion.StatusForDay(d, today, tracker.MealCountFor(ctx, date), totalSlots)
		if status == completion.DayMissed && tracker.IsDayCompleted(ctx, date) {
			status = completion.DayCompleted
		}

		strip = append(strip, WeekStripEntry{
			Date:    date,
			DayName: d.Weekday().String(),
			Status:  status,
		})
	}
	return strip
}

func mealViews(
	ctx context.Context,
	tracker *completion.Tracker,
	date string,
	day *plan.DietDay,
) []MealSlotView {
	views := []MealSlotView{
		{
			Slot:      string(completion.CategoryBreakfast),
			Name:      day.Breakfast.Name,
			Macros:    day.Breakfast.Macros,
			Completed: tracker.IsMealCompleted(ctx, date, completion.CategoryBreakfast, day.Breakfast.Name),
		},
		{
			Slot:      string(completion.CategoryLunch),
			Name:      day.Lunch.Name,
			Macros:    day.Lunch.Macros,
			Completed: tracker.IsMealCompleted(ctx, date, completion.CategoryLunch, day.Lunch.Name),
		},
		{
			Slot:      string(completion.CategoryDinner),
			Name:      day.Dinner.Name,
			Macros:    day.Dinner.Macros,
			Completed: tracker.IsMealCompleted(ctx, date, completion.CategoryDinner, day.Dinner.Name),
		},
	}
	for _, snack := range day.Snacks {
		views = append(views, MealSlotView{
			Slot:      string(completion.CategorySnack),
			Name:      snack.Name,
			Macros:    snack.Macros,
			Completed: tracker.IsMealCompleted(ctx, date, completion.CategorySnack, snack.Name),
		})
	}
	return views
}

func parseStart(startDate string, fallback time.Time) time.Time {
	start, err := time.Parse(plan.DateFormat, startDate)
	if err != nil {
		return fallback
	}
	return start
}

// Run pumps completion events into progress broadcasts until ctx is done.
// Marking a meal or a day can move the dashboard numbers, so every listener
// gets a recomputed progress figure without polling.
func (a *Aggregator) Run(ctx context.Context) {
	sub := a.bus.Subscribe(
		events.KindMealCompleted,
		events.KindDayCompleted,
		events.KindExerciseCompleted,
	)
	defer a.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			a.broadcastProgress(ctx, event)
		}
	}
}

func (a *Aggregator) broadcastProgress(ctx context.Context, event events.Event) {
	var userID string
	switch e := event.(type) {
	case events.MealCompleted:
		userID = e.UserID
	case events.DayCompleted:
		userID = e.UserID
	case events.ExerciseCompleted:
		userID = e.UserID
	default:
		return
	}

	today := a.now()

	if p := a.dietCache.Load(ctx, userID, false); p != nil {
		week := completion.WeekNumber(parseStart(p.StartDate, today), today)
		a.bus.Publish(events.DietProgressUpdated{
			UserID:          userID,
			ProgressPercent: completion.ProgressPercent(week, p.TotalWeeks),
		})
	}
	if p := a.workoutCache.Load(ctx, userID, false); p != nil {
		week := completion.WeekNumber(parseStart(p.StartDate, today), today)
		a.bus.Publish(events.WorkoutProgressUpdated{
			UserID:          userID,
			ProgressPercent: completion.ProgressPercent(week, p.TotalWeeks),
		})
	}
}
