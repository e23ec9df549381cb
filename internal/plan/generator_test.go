package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/planfit/planfit/internal/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTextGenerator struct {
	calls []string
	text  string
	err   error
}

func (f *fakeTextGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	return f.text, f.err
}

func newTestGenerator(llm TextGenerator) (*Generator, *countingRemote) {
	store := kvstore.NewMemoryStore()
	remote := &countingRemote{}
	dietCache := NewCacheWithRemote[DietPlan](KindDiet, remote, store, time.Minute)
	workoutCache := NewCacheWithRemote[WorkoutPlan](KindWorkout, &noopWorkoutRemote{}, store, time.Minute)

	g := NewGenerator(llm, dietCache, workoutCache, nil)
	g.SetNowFunc(func() time.Time { return parserTestNow })
	return g, remote
}

type noopWorkoutRemote struct{}

func (noopWorkoutRemote) FetchActive(_ context.Context, _ string) (*WorkoutPlan, error) {
	return nil, ErrPlanNotFound
}

func (noopWorkoutRemote) Create(_ context.Context, p *WorkoutPlan) (*WorkoutPlan, error) {
	return p, nil
}

func (noopWorkoutRemote) Purge(_ context.Context, _ string) error { return nil }

func TestGenerator_GenerateDietPlan(t *testing.T) {
	llm := &fakeTextGenerator{text: sampleDietText}
	g, remote := newTestGenerator(llm)

	profile := UserProfile{
		BodyGoal:        "Gain Muscle",
		CurrentWeightKg: 60,
		TargetWeightKg:  65,
	}

	p, err := g.GenerateDietPlan(context.Background(), "user1", profile)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "user1", p.UserID)
	assert.Equal(t, "Muscle Gain", p.Goal)
	assert.Len(t, p.WeeklyPattern, 7)
	assert.Equal(t, 12, p.TotalWeeks)

	// the profile data made it into the prompt
	require.Len(t, llm.calls, 1)
	assert.Contains(t, llm.calls[0], "60")
	assert.Contains(t, llm.calls[0], "65")

	// saved remotely and locally
	assert.Equal(t, 1, remote.createCalls)
	cached := g.dietCache.Load(context.Background(), "user1", false)
	require.NotNil(t, cached)
	assert.Equal(t, 0, remote.fetches())
}

func TestGenerator_GenerateDietPlan_LLMFailureSurfaces(t *testing.T) {
	llm := &fakeTextGenerator{err: errors.New("llm down")}
	g, remote := newTestGenerator(llm)

	p, err := g.GenerateDietPlan(context.Background(), "user1", UserProfile{BodyGoal: "x"})
	require.Error(t, err)
	assert.Nil(t, p)
	// nothing half-saved
	assert.Equal(t, 0, remote.createCalls)
}

func TestGenerator_GenerateWorkoutPlan(t *testing.T) {
	llm := &fakeTextGenerator{text: sampleWorkoutText}
	g, _ := newTestGenerator(llm)

	p, err := g.GenerateWorkoutPlan(context.Background(), "user1", UserProfile{
		BodyGoal:        "Gain Muscle",
		CurrentWeightKg: 60,
		TargetWeightKg:  65,
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "user1", p.UserID)
	assert.Len(t, p.WeeklyPattern, 7)
}
