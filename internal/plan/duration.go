package plan

import (
	"fmt"
	"math"
	"strings"
)

const (
	MinWeeks = 12
	MaxWeeks = 52

	minValidWeightKg = 30.0
	maxValidWeightKg = 200.0

	weeksPerMonth = 4.345
)

// Duration is derived and stateless, recomputed on demand, never persisted
// on its own.
type Duration struct {
	TotalWeeks   int     `json:"totalWeeks"`
	HumanLabel   string  `json:"humanLabel"`
	ApproxMonths float64 `json:"approxMonths"`
}

type goalClass int

const (
	goalWeightLoss goalClass = iota
	goalWeightGain
	goalOther
)

func classifyGoal(goal string) goalClass {
	g := strings.ToLower(goal)
	switch {
	case strings.Contains(g, "lose"), strings.Contains(g, "fat"):
		return goalWeightLoss
	case strings.Contains(g, "gain"), strings.Contains(g, "muscle"):
		return goalWeightGain
	default:
		return goalOther
	}
}

// weeklyRateKg is the assumed sustainable weight change per week, tiered by
// the size of the delta.
func weeklyRateKg(deltaKg float64) float64 {
	switch {
	case deltaKg > 15:
		return 0.75
	case deltaKg >= 5:
		return 0.5
	default:
		return 0.4
	}
}

// ComputeDuration recommends a plan length for the given profile. It is pure
// and deterministic and never fails: implausible or inconsistent inputs
// silently degrade to the minimum duration instead of returning an error.
func ComputeDuration(profile UserProfile) Duration {
	switch classifyGoal(profile.BodyGoal) {
	case goalWeightLoss, goalWeightGain:
		return weightGoalDuration(profile)
	default:
		return nonWeightGoalDuration(profile.BodyGoal)
	}
}

func weightGoalDuration(profile UserProfile) Duration {
	current := profile.CurrentWeightKg
	target := profile.TargetWeightKg
	goal := classifyGoal(profile.BodyGoal)

	valid := current >= minValidWeightKg && current <= maxValidWeightKg &&
		target >= minValidWeightKg && target <= maxValidWeightKg
	if valid && goal == goalWeightLoss && target >= current {
		valid = false
	}
	if valid && goal == goalWeightGain && target <= current {
		valid = false
	}

	delta := math.Abs(target - current)
	// reject implausible requests, e.g. halving the body weight
	if valid && delta > 0.5*current {
		valid = false
	}

	if !valid {
		return durationOf(MinWeeks)
	}

	// habit-formation floor: tiny deltas still get the full minimum plan
	if delta < 2 {
		return durationOf(MinWeeks)
	}

	weeks := int(math.Ceil(delta / weeklyRateKg(delta)))
	if weeks < MinWeeks {
		weeks = MinWeeks
	}
	if weeks > MaxWeeks {
		weeks = MaxWeeks
	}
	return durationOf(weeks)
}

func nonWeightGoalDuration(goal string) Duration {
	g := strings.ToLower(goal)
	switch {
	case strings.Contains(g, "fitness"),
		strings.Contains(g, "training"),
		strings.Contains(g, "improve"),
		strings.Contains(g, "endurance"):
		return durationOf(52)
	case strings.Contains(g, "maintain"):
		return durationOf(16)
	default:
		return durationOf(MinWeeks)
	}
}

func durationOf(weeks int) Duration {
	months := float64(weeks) / weeksPerMonth

	label := fmt.Sprintf("%d weeks", weeks)
	if weeks >= 24 {
		label = fmt.Sprintf("%d months", int(math.Round(months)))
	}

	return Duration{
		TotalWeeks:   weeks,
		HumanLabel:   label,
		ApproxMonths: months,
	}
}
