package plan

import (
	"fmt"
	"strings"
)

// DietPrompt builds the natural-language request for the text generation
// service. The expected output shape matches what the parsers look for:
// "Day N:" sections separated by "---", labeled meal fields, snack list
// items, water and notes lines.
func DietPrompt(profile UserProfile, duration Duration) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a 7-day diet plan for a %d year old %s, %.0f cm tall, ",
		profile.Age, strings.ToLower(string(profile.Gender)), profile.HeightCm)
	fmt.Fprintf(&b, "currently %.1f kg with a target of %.1f kg. ",
		profile.CurrentWeightKg, profile.TargetWeightKg)
	fmt.Fprintf(&b, "Goal: %s. Plan duration: %s.\n", profile.BodyGoal, duration.HumanLabel)

	if profile.DietPreference != "" {
		fmt.Fprintf(&b, "Diet preference: %s.\n", profile.DietPreference)
	}
	if profile.MedicalConditions != "" {
		fmt.Fprintf(&b, "Consider these medical conditions: %s.\n", profile.MedicalConditions)
	}
	if profile.Country != "" {
		fmt.Fprintf(&b, "Prefer foods common in %s.\n", profile.Country)
	}

	b.WriteString(`
Format each day exactly like this, separated by "---":

Day 1:
Breakfast: <meal name>
Calories: <number>
Protein: <number>g
Carbs: <number>g
Fats: <number>g
Prep Time: <minutes>
Lunch: ...
Dinner: ...
Snacks:
- <snack name> (<number> calories)
Water: <daily water target>
Notes: <short advice for the day>
`)

	return b.String()
}

func WorkoutPrompt(profile UserProfile, duration Duration) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a 7-day workout plan for a %d year old %s, %.0f cm, %.1f kg. ",
		profile.Age, strings.ToLower(string(profile.Gender)), profile.HeightCm, profile.CurrentWeightKg)
	fmt.Fprintf(&b, "Goal: %s. Plan duration: %s.\n", profile.BodyGoal, duration.HumanLabel)

	if profile.MedicalConditions != "" {
		fmt.Fprintf(&b, "Consider these medical conditions: %s.\n", profile.MedicalConditions)
	}

	b.WriteString(`
Format each day exactly like this, separated by "---". Include at least one rest day.

Day 1:
- <exercise name>: <sets> sets x <reps> reps (rest: <seconds>s, muscles: <comma separated>, <calories> kcal)
`)

	return b.String()
}
