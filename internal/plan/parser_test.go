package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-03-12 is a Wednesday
var parserTestNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

const sampleDietText = `Goal: Muscle Gain
Target calories: 2800

Day 1: Wednesday
Breakfast: Oatmeal with Berries
Calories: 450
Protein: 25g
Carbs: 60g
Fats: 12g
Prep time: 10 minutes
Lunch: Grilled Chicken Bowl
Calories: 650
Protein: 45g
Carbs: 70g
Fats: 18g
Dinner: Salmon with Rice
Calories: 700
Protein: 40g
Carbs: 65g
Fats: 25g
Snacks:
- Greek Yogurt (150 calories, 15g protein)
- Almonds (170 calories)
Water: 3 liters
Notes: Eat the snacks between main meals.
---
Day 2: Thursday
Breakfast: Scrambled Eggs
Calories: 400
Protein: 28g
Lunch: Turkey Sandwich
Calories: 550
Dinner: Beef Stir Fry
Calories: 680
`

func TestParseDietPlan_FullWeekAlwaysBuilt(t *testing.T) {
	profile := UserProfile{
		BodyGoal:        "Gain Muscle",
		CurrentWeightKg: 60,
		TargetWeightKg:  65,
	}

	p := ParseDietPlan(sampleDietText, profile, parserTestNow)
	require.NotNil(t, p)
	require.Len(t, p.WeeklyPattern, 7)
	assert.NotEmpty(t, p.ID)

	assert.Equal(t, "Muscle Gain", p.Goal)
	assert.Equal(t, "2025-03-12", p.StartDate)

	// day 1 of the plan lands on the real current weekday
	wednesday := p.WeeklyPattern[DayIndex(KindDiet, time.Wednesday)]
	assert.Equal(t, "Wednesday", wednesday.DayName)
	assert.Equal(t, "2025-03-12", wednesday.Date)
	assert.Equal(t, "Oatmeal with Berries", wednesday.Breakfast.Name)
	assert.Equal(t, 450, wednesday.Breakfast.Macros.Calories)
	assert.Equal(t, "10 minutes", wednesday.Breakfast.PrepTimeLabel)
	assert.Equal(t, "3 liters", wednesday.WaterTargetLabel)
	assert.Equal(t, "Eat the snacks between main meals.", wednesday.Notes)

	require.Len(t, wednesday.Snacks, 2)
	assert.Equal(t, "Greek Yogurt", wednesday.Snacks[0].Name)
	assert.Equal(t, 150, wednesday.Snacks[0].Macros.Calories)
	assert.Equal(t, 15, wednesday.Snacks[0].Macros.Protein)
	assert.Equal(t, "Almonds", wednesday.Snacks[1].Name)

	// totals are always recomputed from the parts
	wantTotals := wednesday.Breakfast.Macros.
		Add(wednesday.Lunch.Macros).
		Add(wednesday.Dinner.Macros).
		Add(wednesday.Snacks[0].Macros).
		Add(wednesday.Snacks[1].Macros)
	assert.Equal(t, wantTotals, wednesday.Totals)

	// days 3..7 are missing from the text and get synthesized defaults
	friday := p.WeeklyPattern[DayIndex(KindDiet, time.Friday)]
	assert.Equal(t, "Balanced Breakfast", friday.Breakfast.Name)
	assert.Equal(t, 300, friday.Breakfast.Macros.Calories)
	require.Len(t, friday.Snacks, 1)
	assert.Equal(t, "Healthy Snack", friday.Snacks[0].Name)
	assert.Positive(t, friday.Totals.Calories)

	// explicit target calories line wins over the computed average
	assert.Equal(t, 2800, p.TargetMacros.Calories)
}

func TestParseDietPlan_EmptyInput(t *testing.T) {
	profile := UserProfile{BodyGoal: "Maintain Weight"}

	p := ParseDietPlan("", profile, parserTestNow)
	require.NotNil(t, p)
	require.Len(t, p.WeeklyPattern, 7)

	for _, day := range p.WeeklyPattern {
		assert.NotEmpty(t, day.DayName)
		assert.NotEmpty(t, day.Date)
		assert.Positive(t, day.Totals.Calories)
		assert.Equal(t, 4, day.MealSlots())
	}

	// goal falls back to the profile
	assert.Equal(t, "General Health", p.Goal)
	assert.Equal(t, 16, p.TotalWeeks)
	assert.Positive(t, p.TargetMacros.Calories)
}

func TestParseDietPlan_DurationNeverTrustedFromText(t *testing.T) {
	text := "Duration: 99 weeks\nGoal: Lose Fat\n"
	profile := UserProfile{
		BodyGoal:        "Lose Weight",
		CurrentWeightKg: 80,
		TargetWeightKg:  70,
	}

	p := ParseDietPlan(text, profile, parserTestNow)
	assert.Equal(t, 20, p.TotalWeeks)
	assert.Equal(t, "20 weeks", p.DurationLabel)
}

func TestParseDietPlan_DayRotation(t *testing.T) {
	// start on a Sunday: day 1 must land in pattern slot 0
	sunday := time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC)
	require.Equal(t, time.Sunday, sunday.Weekday())

	p := ParseDietPlan("", UserProfile{BodyGoal: "x"}, sunday)
	assert.Equal(t, "Sunday", p.WeeklyPattern[0].DayName)
	assert.Equal(t, "2025-03-16", p.WeeklyPattern[0].Date)
	assert.Equal(t, 1, p.WeeklyPattern[0].DayIndex)
	assert.Equal(t, "Saturday", p.WeeklyPattern[6].DayName)
}

const sampleWorkoutText = `Goal: Muscle Gain

Day 1: Wednesday - Upper Body
- Bench Press: 4 sets x 8 reps (rest 90s, 60 kcal, muscles: chest, triceps)
- Pull Ups: 3 sets x 10 reps
---
Day 2: Thursday
Rest day - recovery and stretching.
`

func TestParseWorkoutPlan(t *testing.T) {
	profile := UserProfile{
		BodyGoal:        "Gain Muscle",
		CurrentWeightKg: 60,
		TargetWeightKg:  65,
	}

	p := ParseWorkoutPlan(sampleWorkoutText, profile, parserTestNow)
	require.NotNil(t, p)
	require.Len(t, p.WeeklyPattern, 7)

	// workout patterns are Monday-first: Wednesday -> slot 2
	wednesday := p.WeeklyPattern[DayIndex(KindWorkout, time.Wednesday)]
	assert.Equal(t, "Wednesday", wednesday.DayName)
	assert.False(t, wednesday.IsRestDay)
	require.Len(t, wednesday.Exercises, 2)

	bench := wednesday.Exercises[0]
	assert.Equal(t, "Bench Press", bench.Name)
	assert.Equal(t, 4, bench.Sets)
	assert.Equal(t, 8, bench.Reps)
	assert.Equal(t, "90s", bench.RestLabel)
	assert.Equal(t, 60, bench.CaloriesBurned)
	assert.Equal(t, []string{"chest", "triceps"}, bench.TargetMuscles)

	pullUps := wednesday.Exercises[1]
	assert.Equal(t, "Pull Ups", pullUps.Name)
	assert.Equal(t, defaultRestSpan, pullUps.RestLabel)

	thursday := p.WeeklyPattern[DayIndex(KindWorkout, time.Thursday)]
	assert.True(t, thursday.IsRestDay)
	assert.Empty(t, thursday.Exercises)

	// missing days get the placeholder routine
	friday := p.WeeklyPattern[DayIndex(KindWorkout, time.Friday)]
	require.Len(t, friday.Exercises, 3)
	assert.Equal(t, "Bodyweight Squats", friday.Exercises[0].Name)
}

func TestParseWorkoutPlan_EmptyInput(t *testing.T) {
	p := ParseWorkoutPlan("", UserProfile{BodyGoal: "Improve Fitness"}, parserTestNow)
	require.Len(t, p.WeeklyPattern, 7)
	for _, day := range p.WeeklyPattern {
		assert.False(t, day.IsRestDay)
		assert.Len(t, day.Exercises, 3)
	}
	assert.Equal(t, 52, p.TotalWeeks)
}
