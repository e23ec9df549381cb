package plan

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	restDayRe = regexp.MustCompile(`(?i)\brest\s*(?:day|&\s*recovery)\b`)

	// e.g. "- Push Ups: 3 sets x 12 reps (rest 60s)"
	exerciseLineRe = regexp.MustCompile(
		`(?im)^\s*[-*•]?\s*([^:\n]+?)\s*[:\-]\s*(\d+)\s*sets?\s*(?:x|of|×)\s*(\d+)\s*reps?(.*)$`,
	)
	restFieldRe     = regexp.MustCompile(`(?i)rest\s*[:\-]?\s*([\d]+\s*(?:s|sec|seconds|min|minutes))`)
	burnedFieldRe   = regexp.MustCompile(`(?i)(\d+)\s*(?:kcal|cal|calories)`)
	musclesFieldRe  = regexp.MustCompile(`(?i)(?:muscles?|targets?)\s*[:\-]\s*([^\n)]+)`)
	defaultRestSpan = "60 seconds"
)

func placeholderExercises() []Exercise {
	return []Exercise{
		{Name: "Bodyweight Squats", Sets: 3, Reps: 15, RestLabel: defaultRestSpan, TargetMuscles: []string{"legs"}, CaloriesBurned: 50},
		{Name: "Push Ups", Sets: 3, Reps: 12, RestLabel: defaultRestSpan, TargetMuscles: []string{"chest"}, CaloriesBurned: 40},
		{Name: "Plank", Sets: 3, Reps: 1, RestLabel: defaultRestSpan, TargetMuscles: []string{"core"}, CaloriesBurned: 25},
	}
}

// ParseWorkoutPlan is the workout twin of ParseDietPlan: same tolerance
// rules, Monday-first weekly pattern.
func ParseWorkoutPlan(rawText string, profile UserProfile, now time.Time) *WorkoutPlan {
	duration := ComputeDuration(profile)
	sections := dayDelimiterRe.Split(rawText, -1)

	pattern := make([]WorkoutDay, 7)
	for i := 1; i <= 7; i++ {
		date := now.AddDate(0, 0, i-1)
		day := parseWorkoutDay(findDaySection(sections, i), date)

		slot := DayIndex(KindWorkout, date.Weekday())
		day.DayIndex = slot + 1
		pattern[slot] = day
	}

	return &WorkoutPlan{
		ID:            uuid.NewString(),
		Goal:          normalizeGoal(extractLine(goalLineRe, rawText), profile.BodyGoal),
		DurationLabel: duration.HumanLabel,
		TotalWeeks:    duration.TotalWeeks,
		WeeklyPattern: pattern,
		StartDate:     now.Format(DateFormat),
		EndDate:       now.AddDate(0, 0, duration.TotalWeeks*7-1).Format(DateFormat),
	}
}

func parseWorkoutDay(section string, date time.Time) WorkoutDay {
	day := WorkoutDay{
		DayName: date.Weekday().String(),
		Date:    date.Format(DateFormat),
	}

	if section == "" {
		day.Exercises = placeholderExercises()
		return day
	}

	if restDayRe.MatchString(section) {
		day.IsRestDay = true
		return day
	}

	for _, m := range exerciseLineRe.FindAllStringSubmatch(section, -1) {
		name, emoji := splitEmojiTag(strings.TrimSpace(m[1]))
		if name == "" {
			continue
		}
		sets, _ := strconv.Atoi(m[2])
		reps, _ := strconv.Atoi(m[3])

		exercise := Exercise{
			Name:      name,
			EmojiTag:  emoji,
			Sets:      sets,
			Reps:      reps,
			RestLabel: defaultRestSpan,
		}

		remainder := m[4]
		if rest := extractLine(restFieldRe, remainder); rest != "" {
			exercise.RestLabel = rest
		}
		if burned, ok := extractInt(burnedFieldRe, remainder); ok {
			exercise.CaloriesBurned = burned
		}
		if muscles := extractLine(musclesFieldRe, remainder); muscles != "" {
			for _, muscle := range strings.Split(muscles, ",") {
				if muscle = strings.TrimSpace(muscle); muscle != "" {
					exercise.TargetMuscles = append(exercise.TargetMuscles, strings.ToLower(muscle))
				}
			}
		}

		day.Exercises = append(day.Exercises, exercise)
	}

	if len(day.Exercises) == 0 {
		day.Exercises = placeholderExercises()
	}
	return day
}
