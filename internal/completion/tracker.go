package completion

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/planfit/planfit/internal/events"
	"github.com/planfit/planfit/internal/kvstore"
	"github.com/planfit/planfit/internal/plan"
	"github.com/planfit/planfit/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

const (
	mealsBaseKey     = "planfit.completed_meals"
	exercisesBaseKey = "planfit.completed_exercises"
	daysBaseKey      = "planfit.completed_days"
	waterBaseKey     = "planfit.water"
)

// RemoteSync is the slice of the plan backend the tracker needs for
// best-effort completion syncing.
type RemoteSync interface {
	CompleteMeal(ctx context.Context, userID string, req plan.MealCompletionRequest) error
	CompleteDay(ctx context.Context, kind plan.Kind, userID string, req plan.DayCompletionRequest) error
	LogWater(ctx context.Context, userID string, req plan.WaterLogRequest) error
}

// Tracker records meal/exercise/day/water completion for one user.
//
// Writes are optimistic: the in-memory set and the broadcast happen first so
// every screen reflects the change with zero latency, then durable storage,
// then best-effort remote sync. Meal and exercise marks are never rolled
// back on remote failure (durable local truth wins); day completion is
// two-phase and reverts when the remote store does not acknowledge it.
//
// Reads always come from local durable storage, never from the remote API.
// The remote is consulted only at plan-load time and on write round trips.
type Tracker struct {
	userID  string
	store   kvstore.Store
	remote  RemoteSync
	bus     *events.Bus
	metrics *metrics.Manager
	now     func() time.Time

	mu          sync.Mutex
	initialized bool
	meals       map[string]bool
	exercises   map[string]bool
	days        map[string]bool
	water       *WaterState
}

func NewTracker(
	userID string,
	store kvstore.Store,
	remote RemoteSync,
	bus *events.Bus,
	m *metrics.Manager,
) *Tracker {
	return &Tracker{
		userID:    userID,
		store:     store,
		remote:    remote,
		bus:       bus,
		metrics:   m,
		now:       time.Now,
		meals:     make(map[string]bool),
		exercises: make(map[string]bool),
		days:      make(map[string]bool),
		water:     NewWaterState(),
	}
}

// SetNowFunc injects a clock for tests.
func (t *Tracker) SetNowFunc(now func() time.Time) {
	t.now = now
}

func (t *Tracker) today() string {
	return t.now().Format(plan.DateFormat)
}

// EnsureInitialized loads completion state from local durable storage once.
// Storage errors are treated as an empty state, never propagated.
func (t *Tracker) EnsureInitialized(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return
	}
	t.reloadLocked(ctx)
	t.initialized = true
}

// Reload re-reads local storage, used on screen focus and app foreground
// style events. Deliberately never calls the remote API.
func (t *Tracker) Reload(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reloadLocked(ctx)
	t.initialized = true
}

func (t *Tracker) reloadLocked(ctx context.Context) {
	t.meals = t.loadSet(ctx, mealsBaseKey)
	t.exercises = t.loadSet(ctx, exercisesBaseKey)
	t.days = t.loadSet(ctx, daysBaseKey)

	water := NewWaterState()
	raw, err := t.store.Get(ctx, kvstore.UserKey(waterBaseKey, t.userID))
	if err == nil {
		if err := json.Unmarshal([]byte(raw), water); err != nil {
			log.Errorf("unmarshal water state for user %s: %s", t.userID, err)
			water = NewWaterState()
		}
	} else if !errors.Is(err, kvstore.ErrKeyNotFound) {
		log.Errorf("load water state for user %s: %s", t.userID, err)
	}
	if water.PerDateMl == nil {
		water.PerDateMl = make(map[string]int)
	}
	if water.PerDateCompleted == nil {
		water.PerDateCompleted = make(map[string]bool)
	}
	t.water = water
}

func (t *Tracker) loadSet(ctx context.Context, baseKey string) map[string]bool {
	set := make(map[string]bool)

	raw, err := t.store.Get(ctx, kvstore.UserKey(baseKey, t.userID))
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			log.Errorf("load completion set [%s] for user %s: %s", baseKey, t.userID, err)
		}
		return set
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Errorf("unmarshal completion set [%s] for user %s: %s", baseKey, t.userID, err)
		return set
	}
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (t *Tracker) persistSet(ctx context.Context, baseKey string, set map[string]bool) {
	t.mu.Lock()
	ids := sortedKeys(set)
	t.mu.Unlock()

	idsJson, err := json.Marshal(ids)
	if err != nil {
		log.Errorf("marshal completion set [%s]: %s", baseKey, err)
		return
	}
	if err := t.store.Set(ctx, kvstore.UserKey(baseKey, t.userID), string(idsJson)); err != nil {
		log.Errorf("persist completion set [%s] for user %s: %s", baseKey, t.userID, err)
	}
}

func (t *Tracker) persistWater(ctx context.Context) {
	t.mu.Lock()
	waterJson, err := json.Marshal(t.water)
	t.mu.Unlock()
	if err != nil {
		log.Errorf("marshal water state: %s", err)
		return
	}
	if err := t.store.Set(ctx, kvstore.UserKey(waterBaseKey, t.userID), string(waterJson)); err != nil {
		log.Errorf("persist water state for user %s: %s", t.userID, err)
	}
}

type MealMark struct {
	Date       string
	MealType   Category
	MealName   string
	DayNumber  int
	WeekNumber int
	// TotalSlots is the number of meal slots of the day, the denominator
	// for the auto-cascade threshold.
	TotalSlots int
}

// MarkMealComplete records one meal as done. Marks are accepted for the
// current date only; past days stay frozen. Returns whether the mark is in
// effect (including the already-marked case, which is a no-op).
func (t *Tracker) MarkMealComplete(ctx context.Context, mark MealMark) bool {
	t.EnsureInitialized(ctx)

	if mark.Date != t.today() {
		log.Debugf("meal mark for user %s rejected, date %s is not today", t.userID, mark.Date)
		return false
	}

	id := MealID(mark.Date, mark.MealType, mark.MealName).String()

	t.mu.Lock()
	if t.meals[id] {
		t.mu.Unlock()
		// idempotent: no set change, no duplicate broadcast
		return true
	}
	t.meals[id] = true
	t.mu.Unlock()

	t.persistSet(ctx, mealsBaseKey, t.meals)
	t.bus.Publish(events.MealCompleted{
		UserID:     t.userID,
		MealID:     id,
		Date:       mark.Date,
		MealType:   string(mark.MealType),
		DayNumber:  mark.DayNumber,
		WeekNumber: mark.WeekNumber,
	})
	if t.metrics != nil {
		t.metrics.CounterMealsCompleted.Inc()
	}

	// meal marks are not rolled back on sync failure, durable local truth wins
	if err := t.remote.CompleteMeal(ctx, t.userID, plan.MealCompletionRequest{
		MealID:     id,
		Date:       mark.Date,
		DayNumber:  mark.DayNumber,
		WeekNumber: mark.WeekNumber,
		MealType:   string(mark.MealType),
	}); err != nil {
		log.Errorf("remote meal sync for user %s: %s", t.userID, err)
	}

	t.cascadeDayCompletion(ctx, mark)
	return true
}

// cascadeDayCompletion auto-completes the day once its meal completion
// ratio crosses the threshold.
func (t *Tracker) cascadeDayCompletion(ctx context.Context, mark MealMark) {
	t.mu.Lock()
	alreadyComplete := t.days[mark.Date]
	completedCount := t.mealCountLocked(mark.Date)
	t.mu.Unlock()

	if alreadyComplete {
		return
	}
	if CompletionPercentage(completedCount, mark.TotalSlots) < CompletionThresholdPercent {
		return
	}

	t.MarkDayComplete(ctx, DayMark{
		Kind:       plan.KindDiet,
		Date:       mark.Date,
		DayNumber:  mark.DayNumber,
		WeekNumber: mark.WeekNumber,
	})
}

type DayMark struct {
	Kind       plan.Kind
	Date       string
	DayNumber  int
	WeekNumber int
}

// MarkDayComplete is a two-phase commit: local apply, remote confirm,
// rollback of the optimistic local change when the remote store does not
// acknowledge. The day-completed broadcast only goes out after the ack.
func (t *Tracker) MarkDayComplete(ctx context.Context, mark DayMark) bool {
	t.EnsureInitialized(ctx)

	if mark.Date != t.today() {
		log.Debugf("day mark for user %s rejected, date %s is not today", t.userID, mark.Date)
		return false
	}

	t.mu.Lock()
	if t.days[mark.Date] {
		t.mu.Unlock()
		// duplicate day-complete calls are idempotent no-ops
		return true
	}
	t.days[mark.Date] = true
	t.mu.Unlock()

	t.persistSet(ctx, daysBaseKey, t.days)

	if err := t.remote.CompleteDay(ctx, mark.Kind, t.userID, plan.DayCompletionRequest{
		Date:       mark.Date,
		DayNumber:  mark.DayNumber,
		WeekNumber: mark.WeekNumber,
	}); err != nil {
		log.Errorf("remote day sync for user %s failed, reverting: %s", t.userID, err)

		t.mu.Lock()
		delete(t.days, mark.Date)
		t.mu.Unlock()
		t.persistSet(ctx, daysBaseKey, t.days)

		t.bus.Publish(events.DayCompleted{
			UserID:     t.userID,
			Date:       mark.Date,
			DayNumber:  mark.DayNumber,
			WeekNumber: mark.WeekNumber,
			Reverted:   true,
		})
		return false
	}

	t.bus.Publish(events.DayCompleted{
		UserID:     t.userID,
		Date:       mark.Date,
		DayNumber:  mark.DayNumber,
		WeekNumber: mark.WeekNumber,
	})
	if t.metrics != nil {
		t.metrics.CounterDaysCompleted.Inc()
	}
	return true
}

type ExerciseMark struct {
	Date         string
	ExerciseName string
	DayNumber    int
	WeekNumber   int
}

// MarkExerciseComplete mirrors the meal write path. The remote contract has
// no per-exercise endpoint, so exercise marks live in local durable storage
// and reach the backend only via day completion.
func (t *Tracker) MarkExerciseComplete(ctx context.Context, mark ExerciseMark) bool {
	t.EnsureInitialized(ctx)

	if mark.Date != t.today() {
		log.Debugf("exercise mark for user %s rejected, date %s is not today", t.userID, mark.Date)
		return false
	}

	id := ExerciseID(mark.Date, mark.ExerciseName).String()

	t.mu.Lock()
	if t.exercises[id] {
		t.mu.Unlock()
		return true
	}
	t.exercises[id] = true
	t.mu.Unlock()

	t.persistSet(ctx, exercisesBaseKey, t.exercises)
	t.bus.Publish(events.ExerciseCompleted{
		UserID:     t.userID,
		ExerciseID: id,
		Date:       mark.Date,
		DayNumber:  mark.DayNumber,
		WeekNumber: mark.WeekNumber,
	})
	if t.metrics != nil {
		t.metrics.CounterExercisesCompleted.Inc()
	}
	return true
}

// ToggleWaterCompletion flips today's water state: on books the full target
// amount, off books zero. There is no partial water logging.
func (t *Tracker) ToggleWaterCompletion(ctx context.Context, targetMl int) {
	t.EnsureInitialized(ctx)

	date := t.today()

	t.mu.Lock()
	completed := t.water.Toggle(date, targetMl)
	intake := t.water.IntakeFor(date)
	t.mu.Unlock()

	t.persistWater(ctx)
	t.bus.Publish(events.WaterIntakeUpdated{
		UserID:    t.userID,
		Date:      date,
		IntakeMl:  intake,
		Completed: completed,
	})
	if t.metrics != nil {
		t.metrics.CounterWaterToggles.Inc()
	}

	if err := t.remote.LogWater(ctx, t.userID, plan.WaterLogRequest{
		Date:      date,
		IntakeMl:  intake,
		Completed: completed,
	}); err != nil {
		log.Errorf("remote water sync for user %s: %s", t.userID, err)
	}
}

func (t *Tracker) CompletedMeals(ctx context.Context) []string {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.meals)
}

func (t *Tracker) CompletedExercises(ctx context.Context) []string {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.exercises)
}

func (t *Tracker) CompletedDays(ctx context.Context) []string {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.days)
}

func (t *Tracker) WaterFor(ctx context.Context, date string) (intakeMl int, completed bool) {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.water.IntakeFor(date), t.water.CompletedFor(date)
}

// MealCountFor counts completed meals of the given date.
func (t *Tracker) MealCountFor(ctx context.Context, date string) int {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mealCountLocked(date)
}

func (t *Tracker) mealCountLocked(date string) int {
	count := 0
	for id := range t.meals {
		if strings.HasPrefix(id, date+"-") {
			count++
		}
	}
	return count
}

func (t *Tracker) IsMealCompleted(ctx context.Context, date string, mealType Category, mealName string) bool {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meals[MealID(date, mealType, mealName).String()]
}

func (t *Tracker) IsExerciseCompleted(ctx context.Context, date, exerciseName string) bool {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exercises[ExerciseID(date, exerciseName).String()]
}

func (t *Tracker) IsDayCompleted(ctx context.Context, date string) bool {
	t.EnsureInitialized(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.days[date]
}

// ApplyPlanSnapshot merges a server-reported completion snapshot into local
// state, called at plan-load time. Day ids come in two historical formats
// and are normalized; adding ids is commutative, so replays are harmless.
func (t *Tracker) ApplyPlanSnapshot(ctx context.Context, mealIDs, dayIDs []string, start time.Time) {
	t.EnsureInitialized(ctx)

	t.mu.Lock()
	changedMeals := false
	for _, id := range mealIDs {
		if id != "" && !t.meals[id] {
			t.meals[id] = true
			changedMeals = true
		}
	}
	changedDays := false
	for _, raw := range dayIDs {
		date, ok := NormalizeDayID(raw, start)
		if !ok {
			log.Warnf("unrecognized day completion id in snapshot: %q", raw)
			continue
		}
		if !t.days[date] {
			t.days[date] = true
			changedDays = true
		}
	}
	t.mu.Unlock()

	if changedMeals {
		t.persistSet(ctx, mealsBaseKey, t.meals)
	}
	if changedDays {
		t.persistSet(ctx, daysBaseKey, t.days)
	}
}

// Reset wipes all completion state, used on explicit plan reset.
func (t *Tracker) Reset(ctx context.Context) {
	t.mu.Lock()
	t.meals = make(map[string]bool)
	t.exercises = make(map[string]bool)
	t.days = make(map[string]bool)
	t.water = NewWaterState()
	t.initialized = true
	t.mu.Unlock()

	for _, baseKey := range []string{mealsBaseKey, exercisesBaseKey, daysBaseKey, waterBaseKey} {
		if err := t.store.Remove(ctx, kvstore.UserKey(baseKey, t.userID)); err != nil {
			log.Errorf("reset completion state [%s] for user %s: %s", baseKey, t.userID, err)
		}
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
