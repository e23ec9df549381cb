package plan

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/planfit/planfit/internal/auth"
	"github.com/planfit/planfit/internal/telemetry/tracing"
	"github.com/planfit/planfit/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type planGenerator interface {
	GenerateDietPlan(ctx context.Context, userID string, profile UserProfile) (*DietPlan, error)
	GenerateWorkoutPlan(ctx context.Context, userID string, profile UserProfile) (*WorkoutPlan, error)
}

// completionMerger folds server-reported completion snapshots into local
// completion state when a plan is loaded.
type completionMerger interface {
	ApplySnapshot(ctx context.Context, userID string, mealIDs, dayIDs []string, start time.Time)
	Reset(ctx context.Context, userID string)
}

type Handler struct {
	generator    planGenerator
	dietCache    *Cache[DietPlan]
	workoutCache *Cache[WorkoutPlan]
	completions  completionMerger
}

func NewHandler(
	generator planGenerator,
	dietCache *Cache[DietPlan],
	workoutCache *Cache[WorkoutPlan],
	completions completionMerger,
) *Handler {
	return &Handler{
		generator:    generator,
		dietCache:    dietCache,
		workoutCache: workoutCache,
		completions:  completions,
	}
}

func (handler *Handler) HandleGenerateDiet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.generateDiet")
	defer span.End()

	profile, ok := decodeProfile(w, r)
	if !ok {
		span.SetStatus(codes.Error, "bad-profile")
		return
	}

	userID := auth.UserIDFromContext(ctx)
	p, err := handler.generator.GenerateDietPlan(ctx, userID, profile)
	if err != nil {
		log.Errorf("generate diet plan for user %s: %s", userID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate-failed")
		http.Error(w, "plan generation failed, please retry", http.StatusBadGateway)
		return
	}

	writePlanJSON(w, p, http.StatusCreated)
}

func (handler *Handler) HandleGenerateWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.generateWorkout")
	defer span.End()

	profile, ok := decodeProfile(w, r)
	if !ok {
		span.SetStatus(codes.Error, "bad-profile")
		return
	}

	userID := auth.UserIDFromContext(ctx)
	p, err := handler.generator.GenerateWorkoutPlan(ctx, userID, profile)
	if err != nil {
		log.Errorf("generate workout plan for user %s: %s", userID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate-failed")
		http.Error(w, "plan generation failed, please retry", http.StatusBadGateway)
		return
	}

	writePlanJSON(w, p, http.StatusCreated)
}

func (handler *Handler) HandleActiveDiet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.activeDiet")
	defer span.End()

	userID := auth.UserIDFromContext(ctx)
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	p := handler.dietCache.Load(ctx, userID, forceRefresh)
	if p == nil {
		http.Error(w, "no active diet plan", http.StatusNotFound)
		return
	}

	handler.mergeSnapshot(ctx, userID, p.StartDate, p.CompletedMealIDs, p.CompletedDayIDs)
	writePlanJSON(w, p, http.StatusOK)
}

func (handler *Handler) HandleActiveWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.activeWorkout")
	defer span.End()

	userID := auth.UserIDFromContext(ctx)
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	p := handler.workoutCache.Load(ctx, userID, forceRefresh)
	if p == nil {
		http.Error(w, "no active workout plan", http.StatusNotFound)
		return
	}

	handler.mergeSnapshot(ctx, userID, p.StartDate, nil, p.CompletedDayIDs)
	writePlanJSON(w, p, http.StatusOK)
}

// HandleClear wipes the user's plans (remote best effort, local always) and
// all completion state with them.
func (handler *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.clear")
	defer span.End()

	userID := auth.UserIDFromContext(ctx)
	handler.dietCache.Clear(ctx, userID)
	handler.workoutCache.Clear(ctx, userID)
	if handler.completions != nil {
		handler.completions.Reset(ctx, userID)
	}

	log.Debugf("cleared plans for user %s", userID)
	pkg.WriteJSONResponseOK(w, `{"cleared":true}`)
}

func (handler *Handler) mergeSnapshot(ctx context.Context, userID, startDate string, mealIDs, dayIDs []string) {
	if handler.completions == nil {
		return
	}
	if len(mealIDs) == 0 && len(dayIDs) == 0 {
		return
	}

	start, err := time.Parse(DateFormat, startDate)
	if err != nil {
		log.Warnf("plan start date %q unparseable, skipping completion snapshot merge", startDate)
		return
	}
	handler.completions.ApplySnapshot(ctx, userID, mealIDs, dayIDs, start)
}

func decodeProfile(w http.ResponseWriter, r *http.Request) (UserProfile, bool) {
	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return UserProfile{}, false
	}

	var profile UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		log.Errorf("generate plan, unmarshal json params: %s", err)
		http.Error(w, "invalid profile", http.StatusBadRequest)
		return UserProfile{}, false
	}

	if profile.BodyGoal == "" {
		http.Error(w, "error, body goal empty", http.StatusBadRequest)
		return UserProfile{}, false
	}
	return profile, true
}

func writePlanJSON(w http.ResponseWriter, p any, statusCode int) {
	planJson, err := json.Marshal(p)
	if err != nil {
		log.Errorf("failed to marshal plan: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, planJson, statusCode)
}
