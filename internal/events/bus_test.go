package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBus_PublishToSubscribedKindsOnly(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	mealSub := bus.Subscribe(KindMealCompleted)
	daySub := bus.Subscribe(KindDayCompleted)
	bothSub := bus.Subscribe(KindMealCompleted, KindDayCompleted)

	bus.Publish(MealCompleted{UserID: "user1", MealID: "m1"})

	event := <-mealSub
	mealEvent, ok := event.(MealCompleted)
	require.True(t, ok)
	assert.Equal(t, "m1", mealEvent.MealID)

	event = <-bothSub
	_, ok = event.(MealCompleted)
	require.True(t, ok)

	select {
	case unexpected := <-daySub:
		t.Fatalf("day subscriber got: %+v", unexpected)
	default:
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// nobody reads this subscriber, its buffer fills up
	bus.Subscribe(KindWaterIntakeUpdated)

	for i := 0; i < subscriberBufferSize*3; i++ {
		bus.Publish(WaterIntakeUpdated{UserID: "user1", IntakeMl: i})
	}
	// reaching this line is the assertion
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(KindMealCompleted)
	bus.Unsubscribe(sub)

	// channel closed on unsubscribe
	_, open := <-sub
	assert.False(t, open)

	// publishing after unsubscribe is a no-op, not a panic
	bus.Publish(MealCompleted{UserID: "user1"})
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(KindDayCompleted)

	bus.Close()
	_, open := <-sub
	assert.False(t, open)

	// all operations are safe after close
	bus.Publish(DayCompleted{UserID: "user1"})
	late := bus.Subscribe(KindMealCompleted)
	_, open = <-late
	assert.False(t, open)
	bus.Close()
}
