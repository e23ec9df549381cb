package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/planfit/planfit/internal/events"
	"github.com/planfit/planfit/internal/kvstore"
	"github.com/planfit/planfit/internal/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRemoteSync struct {
	mealCalls  []plan.MealCompletionRequest
	dayCalls   []plan.DayCompletionRequest
	waterCalls []plan.WaterLogRequest

	mealErr  error
	dayErr   error
	waterErr error
}

func (f *fakeRemoteSync) CompleteMeal(_ context.Context, _ string, req plan.MealCompletionRequest) error {
	f.mealCalls = append(f.mealCalls, req)
	return f.mealErr
}

func (f *fakeRemoteSync) CompleteDay(_ context.Context, _ plan.Kind, _ string, req plan.DayCompletionRequest) error {
	f.dayCalls = append(f.dayCalls, req)
	return f.dayErr
}

func (f *fakeRemoteSync) LogWater(_ context.Context, _ string, req plan.WaterLogRequest) error {
	f.waterCalls = append(f.waterCalls, req)
	return f.waterErr
}

var trackerTestNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

const trackerTestToday = "2025-03-12"

func newTestTracker(t *testing.T) (*Tracker, *fakeRemoteSync, *events.Bus, kvstore.Store) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	remote := &fakeRemoteSync{}
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	tracker := NewTracker("user1", store, remote, bus, nil)
	tracker.SetNowFunc(func() time.Time { return trackerTestNow })
	return tracker, remote, bus, store
}

func mealMark(mealType Category, name string, totalSlots int) MealMark {
	return MealMark{
		Date:       trackerTestToday,
		MealType:   mealType,
		MealName:   name,
		DayNumber:  1,
		WeekNumber: 1,
		TotalSlots: totalSlots,
	}
}

func TestTracker_MarkMealComplete(t *testing.T) {
	tracker, remote, bus, _ := newTestTracker(t)
	ctx := context.Background()
	sub := bus.Subscribe(events.KindMealCompleted)

	require.True(t, tracker.MarkMealComplete(ctx, mealMark(CategoryBreakfast, "Oatmeal", 4)))

	meals := tracker.CompletedMeals(ctx)
	require.Len(t, meals, 1)
	assert.Equal(t, "2025-03-12-breakfast-Oatmeal", meals[0])

	require.Len(t, remote.mealCalls, 1)
	assert.Equal(t, "2025-03-12-breakfast-Oatmeal", remote.mealCalls[0].MealID)

	event := <-sub
	mealEvent, ok := event.(events.MealCompleted)
	require.True(t, ok)
	assert.Equal(t, "user1", mealEvent.UserID)
	assert.Equal(t, "breakfast", mealEvent.MealType)
}

func TestTracker_MarkMealComplete_Idempotent(t *testing.T) {
	tracker, remote, bus, _ := newTestTracker(t)
	ctx := context.Background()
	sub := bus.Subscribe(events.KindMealCompleted)

	mark := mealMark(CategoryLunch, "Chicken Bowl", 4)
	require.True(t, tracker.MarkMealComplete(ctx, mark))
	require.True(t, tracker.MarkMealComplete(ctx, mark))

	// one entry, one remote call, one broadcast
	assert.Len(t, tracker.CompletedMeals(ctx), 1)
	assert.Len(t, remote.mealCalls, 1)
	<-sub
	select {
	case extra := <-sub:
		t.Fatalf("unexpected second broadcast: %+v", extra)
	default:
	}
}

func TestTracker_MarkMealComplete_PastDateRejected(t *testing.T) {
	tracker, remote, _, _ := newTestTracker(t)
	ctx := context.Background()

	mark := mealMark(CategoryDinner, "Salmon", 4)
	mark.Date = "2025-03-11"
	assert.False(t, tracker.MarkMealComplete(ctx, mark))
	assert.Empty(t, tracker.CompletedMeals(ctx))
	assert.Empty(t, remote.mealCalls)
}

func TestTracker_MealRemoteFailureKeepsLocalMark(t *testing.T) {
	tracker, remote, _, _ := newTestTracker(t)
	remote.mealErr = errors.New("remote down")
	ctx := context.Background()

	require.True(t, tracker.MarkMealComplete(ctx, mealMark(CategoryBreakfast, "Oatmeal", 4)))
	assert.Len(t, tracker.CompletedMeals(ctx), 1)

	// still marked after a reload from durable storage
	tracker.Reload(ctx)
	assert.Len(t, tracker.CompletedMeals(ctx), 1)
}

func TestTracker_CascadeDayCompletion(t *testing.T) {
	tracker, remote, bus, _ := newTestTracker(t)
	ctx := context.Background()
	sub := bus.Subscribe(events.KindDayCompleted)

	// 1 of 4 slots is 25 percent, below the threshold
	require.True(t, tracker.MarkMealComplete(ctx, mealMark(CategoryBreakfast, "Oatmeal", 4)))
	assert.Empty(t, remote.dayCalls)
	assert.False(t, tracker.IsDayCompleted(ctx, trackerTestToday))

	// 2 of 4 crosses 50 percent and cascades into a day completion
	require.True(t, tracker.MarkMealComplete(ctx, mealMark(CategoryLunch, "Chicken Bowl", 4)))
	require.Len(t, remote.dayCalls, 1)
	assert.True(t, tracker.IsDayCompleted(ctx, trackerTestToday))

	event := <-sub
	dayEvent, ok := event.(events.DayCompleted)
	require.True(t, ok)
	assert.Equal(t, trackerTestToday, dayEvent.Date)
	assert.False(t, dayEvent.Reverted)

	// further meals do not re-complete the day
	require.True(t, tracker.MarkMealComplete(ctx, mealMark(CategoryDinner, "Salmon", 4)))
	assert.Len(t, remote.dayCalls, 1)
}

func TestTracker_DayCompletionRevertedOnRemoteFailure(t *testing.T) {
	tracker, remote, bus, _ := newTestTracker(t)
	remote.dayErr = errors.New("remote down")
	ctx := context.Background()
	sub := bus.Subscribe(events.KindDayCompleted)

	applied := tracker.MarkDayComplete(ctx, DayMark{
		Kind:       plan.KindDiet,
		Date:       trackerTestToday,
		DayNumber:  1,
		WeekNumber: 1,
	})
	assert.False(t, applied)
	assert.False(t, tracker.IsDayCompleted(ctx, trackerTestToday))

	// the rollback is broadcast so screens can un-flip
	event := <-sub
	dayEvent, ok := event.(events.DayCompleted)
	require.True(t, ok)
	assert.True(t, dayEvent.Reverted)

	// durable storage agrees with the revert
	tracker.Reload(ctx)
	assert.False(t, tracker.IsDayCompleted(ctx, trackerTestToday))
}

func TestTracker_MarkExerciseComplete_LocalOnly(t *testing.T) {
	tracker, remote, bus, _ := newTestTracker(t)
	ctx := context.Background()
	sub := bus.Subscribe(events.KindExerciseCompleted)

	applied := tracker.MarkExerciseComplete(ctx, ExerciseMark{
		Date:         trackerTestToday,
		ExerciseName: "Push Ups",
		DayNumber:    1,
		WeekNumber:   1,
	})
	require.True(t, applied)
	assert.True(t, tracker.IsExerciseCompleted(ctx, trackerTestToday, "Push Ups"))

	event := <-sub
	_, ok := event.(events.ExerciseCompleted)
	require.True(t, ok)

	// no per-exercise remote endpoint exists
	assert.Empty(t, remote.mealCalls)
	assert.Empty(t, remote.dayCalls)
}

func TestTracker_ToggleWater(t *testing.T) {
	tracker, remote, bus, _ := newTestTracker(t)
	ctx := context.Background()
	sub := bus.Subscribe(events.KindWaterIntakeUpdated)

	tracker.ToggleWaterCompletion(ctx, 2500)
	intake, completed := tracker.WaterFor(ctx, trackerTestToday)
	assert.Equal(t, 2500, intake)
	assert.True(t, completed)

	event := <-sub
	waterEvent, ok := event.(events.WaterIntakeUpdated)
	require.True(t, ok)
	assert.Equal(t, 2500, waterEvent.IntakeMl)

	require.Len(t, remote.waterCalls, 1)
	assert.Equal(t, 2500, remote.waterCalls[0].IntakeMl)

	// toggling again books zero
	tracker.ToggleWaterCompletion(ctx, 2500)
	intake, completed = tracker.WaterFor(ctx, trackerTestToday)
	assert.Equal(t, 0, intake)
	assert.False(t, completed)
}

func TestTracker_ApplyPlanSnapshot(t *testing.T) {
	tracker, _, _, _ := newTestTracker(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	tracker.ApplyPlanSnapshot(ctx,
		[]string{"2025-03-12-breakfast-Oatmeal"},
		[]string{"2025-03-12", "1-1", "garbage"},
		start,
	)

	assert.Len(t, tracker.CompletedMeals(ctx), 1)
	// "1-1" resolves to the start date, already present: one day entry
	assert.Equal(t, []string{"2025-03-12"}, tracker.CompletedDays(ctx))

	// replays are harmless
	tracker.ApplyPlanSnapshot(ctx,
		[]string{"2025-03-12-breakfast-Oatmeal"},
		[]string{"2025-03-12"},
		start,
	)
	assert.Len(t, tracker.CompletedMeals(ctx), 1)
	assert.Len(t, tracker.CompletedDays(ctx), 1)
}

func TestTracker_StateSurvivesRestart(t *testing.T) {
	tracker, _, bus, store := newTestTracker(t)
	ctx := context.Background()

	require.True(t, tracker.MarkMealComplete(ctx, mealMark(CategoryBreakfast, "Oatmeal", 4)))
	tracker.ToggleWaterCompletion(ctx, 2000)

	// a fresh tracker over the same store sees the same state
	reborn := NewTracker("user1", store, &fakeRemoteSync{}, bus, nil)
	reborn.SetNowFunc(func() time.Time { return trackerTestNow })
	assert.Len(t, reborn.CompletedMeals(ctx), 1)
	intake, completed := reborn.WaterFor(ctx, trackerTestToday)
	assert.Equal(t, 2000, intake)
	assert.True(t, completed)

	// state is per user
	other := NewTracker("user2", store, &fakeRemoteSync{}, bus, nil)
	assert.Empty(t, other.CompletedMeals(ctx))
}

func TestTracker_Reset(t *testing.T) {
	tracker, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	require.True(t, tracker.MarkMealComplete(ctx, mealMark(CategoryBreakfast, "Oatmeal", 4)))
	tracker.ToggleWaterCompletion(ctx, 2000)

	tracker.Reset(ctx)
	assert.Empty(t, tracker.CompletedMeals(ctx))
	assert.Empty(t, tracker.CompletedDays(ctx))
	intake, completed := tracker.WaterFor(ctx, trackerTestToday)
	assert.Zero(t, intake)
	assert.False(t, completed)

	// the wipe is durable
	tracker.Reload(ctx)
	assert.Empty(t, tracker.CompletedMeals(ctx))
}

func TestRegistry_OneTrackerPerUser(t *testing.T) {
	store := kvstore.NewMemoryStore()
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	registry := NewRegistry(store, &fakeRemoteSync{}, bus, nil)
	t1 := registry.ForUser("user1")
	t2 := registry.ForUser("user1")
	other := registry.ForUser("user2")

	assert.Same(t, t1, t2)
	assert.NotSame(t, t1, other)
}
