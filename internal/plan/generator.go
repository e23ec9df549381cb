package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/planfit/planfit/internal/telemetry/metrics"
	"github.com/planfit/planfit/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Generator runs the full plan creation pipeline:
// profile -> duration -> prompt -> LLM -> parser -> save (remote + local).
// This is the one path in the whole plan subsystem that is allowed to return
// an error to the caller, so the UI can offer a manual retry.
type Generator struct {
	llm          TextGenerator
	dietCache    *Cache[DietPlan]
	workoutCache *Cache[WorkoutPlan]
	metrics      *metrics.Manager
	now          func() time.Time
}

func NewGenerator(
	llm TextGenerator,
	dietCache *Cache[DietPlan],
	workoutCache *Cache[WorkoutPlan],
	m *metrics.Manager,
) *Generator {
	return &Generator{
		llm:          llm,
		dietCache:    dietCache,
		workoutCache: workoutCache,
		metrics:      m,
		now:          time.Now,
	}
}

// SetNowFunc injects a clock for tests.
func (g *Generator) SetNowFunc(now func() time.Time) {
	g.now = now
}

func (g *Generator) GenerateDietPlan(ctx context.Context, userID string, profile UserProfile) (_ *DietPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "generator.dietplan")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	duration := ComputeDuration(profile)
	rawText, err := g.generateText(ctx, DietPrompt(profile, duration))
	if err != nil {
		return nil, fmt.Errorf("generate diet plan text: %w", err)
	}

	p := ParseDietPlan(rawText, profile, g.now())
	p.UserID = userID

	saved := g.dietCache.Save(ctx, userID, p)
	if g.metrics != nil {
		g.metrics.CounterPlansGenerated.WithLabelValues(string(KindDiet)).Inc()
	}
	log.Debugf("generated diet plan %s for user %s: %d weeks", saved.ID, userID, saved.TotalWeeks)
	return saved, nil
}

func (g *Generator) GenerateWorkoutPlan(ctx context.Context, userID string, profile UserProfile) (_ *WorkoutPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "generator.workoutplan")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	duration := ComputeDuration(profile)
	rawText, err := g.generateText(ctx, WorkoutPrompt(profile, duration))
	if err != nil {
		return nil, fmt.Errorf("generate workout plan text: %w", err)
	}

	p := ParseWorkoutPlan(rawText, profile, g.now())
	p.UserID = userID

	saved := g.workoutCache.Save(ctx, userID, p)
	if g.metrics != nil {
		g.metrics.CounterPlansGenerated.WithLabelValues(string(KindWorkout)).Inc()
	}
	log.Debugf("generated workout plan %s for user %s: %d weeks", saved.ID, userID, saved.TotalWeeks)
	return saved, nil
}

func (g *Generator) generateText(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	rawText, err := g.llm.GenerateText(ctx, prompt)
	if g.metrics != nil {
		g.metrics.HistLLMCallDuration.Observe(time.Since(start).Seconds())
	}
	return rawText, err
}
