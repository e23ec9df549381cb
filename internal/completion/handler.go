package completion

import (
	"encoding/json"
	"net/http"

	"github.com/planfit/planfit/internal/auth"
	"github.com/planfit/planfit/internal/plan"
	"github.com/planfit/planfit/internal/telemetry/tracing"
	"github.com/planfit/planfit/pkg"

	log "github.com/sirupsen/logrus"
)

type Handler struct {
	trackers *Registry
}

func NewHandler(trackers *Registry) *Handler {
	return &Handler{
		trackers: trackers,
	}
}

type MealMarkRequest struct {
	Date       string `json:"date"`
	MealType   string `json:"mealType"`
	MealName   string `json:"mealName"`
	DayNumber  int    `json:"dayNumber"`
	WeekNumber int    `json:"weekNumber"`
	TotalSlots int    `json:"totalSlots"`
}

type ExerciseMarkRequest struct {
	Date         string `json:"date"`
	ExerciseName string `json:"exerciseName"`
	DayNumber    int    `json:"dayNumber"`
	WeekNumber   int    `json:"weekNumber"`
}

type DayMarkRequest struct {
	Kind       string `json:"kind"`
	Date       string `json:"date"`
	DayNumber  int    `json:"dayNumber"`
	WeekNumber int    `json:"weekNumber"`
}

type WaterToggleRequest struct {
	TargetMl int `json:"targetMl"`
}

type MarkResponse struct {
	Applied bool `json:"applied"`
}

type StateResponse struct {
	CompletedMeals     []string `json:"completedMeals"`
	CompletedExercises []string `json:"completedExercises"`
	CompletedDays      []string `json:"completedDays"`
	WaterIntakeMl      int      `json:"waterIntakeMl"`
	WaterCompleted     bool     `json:"waterCompleted"`
}

var validMealTypes = map[Category]bool{
	CategoryBreakfast: true,
	CategoryLunch:     true,
	CategoryDinner:    true,
	CategorySnack:     true,
}

func (handler *Handler) HandleMarkMeal(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.completion.meal")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req MealMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("mark meal, unmarshal json params: %s", err)
		http.Error(w, "mark meal failed", http.StatusBadRequest)
		return
	}

	if req.Date == "" || req.MealName == "" {
		http.Error(w, "error, date or meal name empty", http.StatusBadRequest)
		return
	}
	if !validMealTypes[Category(req.MealType)] {
		http.Error(w, "error, invalid meal type", http.StatusBadRequest)
		return
	}

	userID := auth.UserIDFromContext(ctx)
	applied := handler.trackers.ForUser(userID).MarkMealComplete(ctx, MealMark{
		Date:       req.Date,
		MealType:   Category(req.MealType),
		MealName:   req.MealName,
		DayNumber:  req.DayNumber,
		WeekNumber: req.WeekNumber,
		TotalSlots: req.TotalSlots,
	})

	log.Debugf("meal mark for user %s [%s %s]: applied=%t", userID, req.Date, req.MealName, applied)
	writeMarkResponse(w, applied)
}

func (handler *Handler) HandleMarkExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.completion.exercise")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req ExerciseMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("mark exercise, unmarshal json params: %s", err)
		http.Error(w, "mark exercise failed", http.StatusBadRequest)
		return
	}

	if req.Date == "" || req.ExerciseName == "" {
		http.Error(w, "error, date or exercise name empty", http.StatusBadRequest)
		return
	}

	userID := auth.UserIDFromContext(ctx)
	applied := handler.trackers.ForUser(userID).MarkExerciseComplete(ctx, ExerciseMark{
		Date:         req.Date,
		ExerciseName: req.ExerciseName,
		DayNumber:    req.DayNumber,
		WeekNumber:   req.WeekNumber,
	})

	writeMarkResponse(w, applied)
}

func (handler *Handler) HandleMarkDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.completion.day")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req DayMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("mark day, unmarshal json params: %s", err)
		http.Error(w, "mark day failed", http.StatusBadRequest)
		return
	}

	if req.Date == "" {
		http.Error(w, "error, date empty", http.StatusBadRequest)
		return
	}
	kind := plan.Kind(req.Kind)
	if kind != plan.KindDiet && kind != plan.KindWorkout {
		http.Error(w, "error, invalid plan kind", http.StatusBadRequest)
		return
	}

	userID := auth.UserIDFromContext(ctx)
	applied := handler.trackers.ForUser(userID).MarkDayComplete(ctx, DayMark{
		Kind:       kind,
		Date:       req.Date,
		DayNumber:  req.DayNumber,
		WeekNumber: req.WeekNumber,
	})

	log.Debugf("day mark for user %s [%s %s]: applied=%t", userID, req.Kind, req.Date, applied)
	writeMarkResponse(w, applied)
}

func (handler *Handler) HandleToggleWater(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.completion.water")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req WaterToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("toggle water, unmarshal json params: %s", err)
		http.Error(w, "toggle water failed", http.StatusBadRequest)
		return
	}
	if req.TargetMl <= 0 {
		http.Error(w, "error, invalid water target", http.StatusBadRequest)
		return
	}

	userID := auth.UserIDFromContext(ctx)
	tracker := handler.trackers.ForUser(userID)
	tracker.ToggleWaterCompletion(ctx, req.TargetMl)

	intake, completed := tracker.WaterFor(ctx, tracker.today())
	resp, err := json.Marshal(WaterIntakeResponse{
		IntakeMl:  intake,
		Completed: completed,
	})
	if err != nil {
		log.Errorf("marshal water response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

type WaterIntakeResponse struct {
	IntakeMl  int  `json:"intakeMl"`
	Completed bool `json:"completed"`
}

func (handler *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.completion.state")
	defer span.End()

	userID := auth.UserIDFromContext(ctx)
	tracker := handler.trackers.ForUser(userID)
	tracker.Reload(ctx)

	intake, completed := tracker.WaterFor(ctx, tracker.today())
	resp, err := json.Marshal(StateResponse{
		CompletedMeals:     tracker.CompletedMeals(ctx),
		CompletedExercises: tracker.CompletedExercises(ctx),
		CompletedDays:      tracker.CompletedDays(ctx),
		WaterIntakeMl:      intake,
		WaterCompleted:     completed,
	})
	if err != nil {
		log.Errorf("marshal completion state: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func writeMarkResponse(w http.ResponseWriter, applied bool) {
	resp, err := json.Marshal(MarkResponse{Applied: applied})
	if err != nil {
		log.Errorf("marshal mark response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}
