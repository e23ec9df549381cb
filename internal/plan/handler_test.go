package plan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/planfit/planfit/internal/auth"
	"github.com/planfit/planfit/internal/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	dietPlan    *DietPlan
	workoutPlan *WorkoutPlan
	err         error
}

func (f *fakeGenerator) GenerateDietPlan(_ context.Context, userID string, _ UserProfile) (*DietPlan, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.dietPlan
	p.UserID = userID
	return &p, nil
}

func (f *fakeGenerator) GenerateWorkoutPlan(_ context.Context, userID string, _ UserProfile) (*WorkoutPlan, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.workoutPlan
	p.UserID = userID
	return &p, nil
}

type recordingMerger struct {
	mu        sync.Mutex
	snapshots int
	resets    int
}

func (m *recordingMerger) ApplySnapshot(_ context.Context, _ string, _, _ []string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
}

func (m *recordingMerger) Reset(_ context.Context, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func newPlanTestHandler(generator planGenerator, dietRemote Remote[DietPlan]) (*Handler, *recordingMerger) {
	store := kvstore.NewMemoryStore()
	dietCache := NewCacheWithRemote[DietPlan](KindDiet, dietRemote, store, time.Minute)
	workoutCache := NewCacheWithRemote[WorkoutPlan](KindWorkout, &noopWorkoutRemote{}, store, time.Minute)
	merger := &recordingMerger{}
	return NewHandler(generator, dietCache, workoutCache, merger), merger
}

func userRequest(t *testing.T, method, body string) *http.Request {
	t.Helper()
	var reqBody *strings.Reader
	if body == "" {
		reqBody = strings.NewReader("")
	} else {
		reqBody = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, "", reqBody)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(auth.ContextWithUserID(req.Context(), "user1"))
}

func TestHandler_GenerateDiet(t *testing.T) {
	handler, _ := newPlanTestHandler(
		&fakeGenerator{dietPlan: testDietPlan("")},
		&countingRemote{},
	)

	req := userRequest(t, http.MethodPost, `{
		"bodyGoal": "Gain Muscle",
		"currentWeightKg": 60,
		"targetWeightKg": 65
	}`)
	rr := httptest.NewRecorder()
	handler.HandleGenerateDiet(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var p DietPlan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "user1", p.UserID)
	assert.Equal(t, "plan-1", p.ID)
}

func TestHandler_GenerateDiet_FailureSurfaced(t *testing.T) {
	handler, _ := newPlanTestHandler(
		&fakeGenerator{err: errors.New("llm down")},
		&countingRemote{},
	)

	req := userRequest(t, http.MethodPost, `{"bodyGoal": "Gain Muscle"}`)
	rr := httptest.NewRecorder()
	handler.HandleGenerateDiet(rr, req)

	// generation is the one path where errors reach the client, for retry
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "retry")
}

func TestHandler_GenerateDiet_EmptyGoalRejected(t *testing.T) {
	handler, _ := newPlanTestHandler(&fakeGenerator{dietPlan: testDietPlan("")}, &countingRemote{})

	req := userRequest(t, http.MethodPost, `{"currentWeightKg": 60}`)
	rr := httptest.NewRecorder()
	handler.HandleGenerateDiet(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_ActiveDiet(t *testing.T) {
	active := testDietPlan("user1")
	active.CompletedMealIDs = []string{"2025-03-12-breakfast-Oatmeal"}
	handler, merger := newPlanTestHandler(
		&fakeGenerator{dietPlan: testDietPlan("")},
		&countingRemote{activePlan: active},
	)

	req := userRequest(t, http.MethodGet, "")
	rr := httptest.NewRecorder()
	handler.HandleActiveDiet(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var p DietPlan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "plan-1", p.ID)

	// the server-side completion snapshot got folded into local state
	assert.Equal(t, 1, merger.snapshots)
}

func TestHandler_ActiveDiet_NoPlan(t *testing.T) {
	handler, _ := newPlanTestHandler(&fakeGenerator{}, &countingRemote{})

	req := userRequest(t, http.MethodGet, "")
	rr := httptest.NewRecorder()
	handler.HandleActiveDiet(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Clear(t *testing.T) {
	remote := &countingRemote{activePlan: testDietPlan("user1")}
	handler, merger := newPlanTestHandler(&fakeGenerator{}, remote)

	req := userRequest(t, http.MethodDelete, "")
	rr := httptest.NewRecorder()
	handler.HandleClear(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, 1, remote.purgeCalls)
	assert.Equal(t, 1, merger.resets)
}
