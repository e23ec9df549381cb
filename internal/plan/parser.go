package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The LLM returns semi-structured markdown-ish prose, not JSON. Parsing is
// deliberately forgiving: one malformed day must never invalidate the other
// six, and the result is always a complete 7-day plan, even for empty input.

var (
	dayDelimiterRe = regexp.MustCompile(`(?m)^\s*-{3,}\s*$`)

	goalLineRe           = regexp.MustCompile(`(?im)^\s*\**\s*goal\s*\**\s*[:\-]\s*(.+)$`)
	targetCaloriesLineRe = regexp.MustCompile(`(?i)(?:target|daily)\s*calories[^\d]{0,20}(\d+)`)

	caloriesFieldRe = regexp.MustCompile(`(?i)calories[^\d]{0,20}(\d+)`)
	proteinFieldRe  = regexp.MustCompile(`(?i)protein[^\d]{0,20}(\d+)`)
	carbsFieldRe    = regexp.MustCompile(`(?i)carb\w*[^\d]{0,20}(\d+)`)
	fatsFieldRe     = regexp.MustCompile(`(?i)fats?[^\d]{0,20}(\d+)`)
	prepTimeFieldRe = regexp.MustCompile(`(?i)prep\s*time\s*[:\-]\s*([^\n]+)`)
	servingFieldRe  = regexp.MustCompile(`(?i)serving(?:\s*size)?\s*[:\-]\s*([^\n]+)`)

	waterLineRe = regexp.MustCompile(`(?im)^\s*\**\s*water[^:\n]*[:\-]\s*(.+)$`)
	notesLineRe = regexp.MustCompile(`(?im)^\s*\**\s*notes?\s*\**\s*[:\-]\s*(.+)$`)

	listItemRe = regexp.MustCompile(`(?m)^\s*[-*•]\s*(.+)$`)

	// snack macros come inline, e.g. "(150 calories, 15g protein)"
	inlineCaloriesRe = regexp.MustCompile(`(?i)(\d+)\s*(?:kcal|calories|cal)\b`)
	inlineProteinRe  = regexp.MustCompile(`(?i)(\d+)\s*g?\s*protein`)
)

const (
	defaultWaterLabel = "2.5 liters"
	defaultDayNotes   = "Stay consistent and listen to your body."
)

// placeholderMeal carries plausible macro estimates so that downstream
// aggregation never divides by zero or trips over missing meals.
func placeholderMeal(name string) MealItem {
	return MealItem{
		Name: name,
		Macros: Macros{
			Calories: 300,
			Protein:  20,
			Carbs:    30,
			Fats:     10,
		},
		PrepTimeLabel:    "15 minutes",
		ServingSizeLabel: "1 serving",
	}
}

// ParseDietPlan builds a structured weekly diet plan out of raw LLM text.
// Day one of the parsed plan always maps to the real current weekday,
// whatever day names the text claims. Duration is never trusted from the
// text either, it is recomputed from the profile.
func ParseDietPlan(rawText string, profile UserProfile, now time.Time) *DietPlan {
	duration := ComputeDuration(profile)
	sections := dayDelimiterRe.Split(rawText, -1)

	pattern := make([]DietDay, 7)
	var totalsSum Macros
	for i := 1; i <= 7; i++ {
		date := now.AddDate(0, 0, i-1)
		day := parseDietDay(findDaySection(sections, i), date)
		totalsSum = totalsSum.Add(day.Totals)

		slot := DayIndex(KindDiet, date.Weekday())
		day.DayIndex = slot + 1
		pattern[slot] = day
	}

	targetMacros := Macros{
		Calories: totalsSum.Calories / 7,
		Protein:  totalsSum.Protein / 7,
		Carbs:    totalsSum.Carbs / 7,
		Fats:     totalsSum.Fats / 7,
	}
	if m := targetCaloriesLineRe.FindStringSubmatch(rawText); m != nil {
		if calories, err := strconv.Atoi(m[1]); err == nil && calories > 0 {
			targetMacros.Calories = calories
		}
	}

	return &DietPlan{
		ID:            uuid.NewString(),
		Goal:          normalizeGoal(extractLine(goalLineRe, rawText), profile.BodyGoal),
		DurationLabel: duration.HumanLabel,
		TotalWeeks:    duration.TotalWeeks,
		WeeklyPattern: pattern,
		StartDate:     now.Format(DateFormat),
		EndDate:       now.AddDate(0, 0, duration.TotalWeeks*7-1).Format(DateFormat),
		TargetMacros:  targetMacros,
	}
}

func parseDietDay(section string, date time.Time) DietDay {
	day := DietDay{
		DayName:          date.Weekday().String(),
		Date:             date.Format(DateFormat),
		WaterTargetLabel: defaultWaterLabel,
		Notes:            defaultDayNotes,
	}

	if section == "" {
		// synthesized default day, the LLM skipped or mangled this one
		day.Breakfast = placeholderMeal("Balanced Breakfast")
		day.Lunch = placeholderMeal("Balanced Lunch")
		day.Dinner = placeholderMeal("Balanced Dinner")
		day.Snacks = []MealItem{placeholderMeal("Healthy Snack")}
		day.Totals = sumDayTotals(day)
		return day
	}

	day.Breakfast = parseMeal(mealSegment(section, "breakfast"), "Balanced Breakfast")
	day.Lunch = parseMeal(mealSegment(section, "lunch"), "Balanced Lunch")
	day.Dinner = parseMeal(mealSegment(section, "dinner"), "Balanced Dinner")
	day.Snacks = parseSnacks(mealSegment(section, "snacks?"))

	if water := extractLine(waterLineRe, section); water != "" {
		day.WaterTargetLabel = water
	}
	if notes := extractLine(notesLineRe, section); notes != "" {
		day.Notes = notes
	}

	// never trust an LLM-stated daily total, always recompute from parts
	day.Totals = sumDayTotals(day)
	return day
}

func sumDayTotals(day DietDay) Macros {
	totals := day.Breakfast.Macros.Add(day.Lunch.Macros).Add(day.Dinner.Macros)
	for _, snack := range day.Snacks {
		totals = totals.Add(snack.Macros)
	}
	return totals
}

// findDaySection locates the section labeled "Day {i}:" (several textual
// variants accepted), or returns "" when the day is missing entirely.
func findDaySection(sections []string, dayNum int) string {
	dayLabelRe := regexp.MustCompile(fmt.Sprintf(`(?i)\bday\s*%d\s*[:\-–]`, dayNum))
	for _, section := range sections {
		if dayLabelRe.MatchString(section) {
			return section
		}
	}
	return ""
}

// mealSegment cuts the part of a day section belonging to one meal label,
// ending at the next known label.
func mealSegment(section, label string) string {
	startRe := regexp.MustCompile(fmt.Sprintf(`(?im)^\s*\**\s*(?:%s)\s*\**\s*[:\-]`, label))
	loc := startRe.FindStringIndex(section)
	if loc == nil {
		return ""
	}

	rest := section[loc[0]:]
	endRe := regexp.MustCompile(`(?im)^\s*\**\s*(?:breakfast|lunch|dinner|snacks?|water|notes?)\s*\**\s*[:\-]`)
	if ends := endRe.FindAllStringIndex(rest, -1); len(ends) > 1 {
		// first match is the segment's own label
		return rest[:ends[1][0]]
	}
	return rest
}

func parseMeal(segment, fallbackName string) MealItem {
	if strings.TrimSpace(segment) == "" {
		return placeholderMeal(fallbackName)
	}

	meal := placeholderMeal(fallbackName)

	// meal name is the remainder of the label line
	firstLine, _, _ := strings.Cut(segment, "\n")
	if _, name, found := strings.Cut(firstLine, ":"); found {
		if cleaned, emoji := splitEmojiTag(strings.TrimSpace(name)); cleaned != "" {
			meal.Name = cleaned
			meal.EmojiTag = emoji
		}
	}

	if v, ok := extractInt(caloriesFieldRe, segment); ok {
		meal.Macros.Calories = v
	}
	if v, ok := extractInt(proteinFieldRe, segment); ok {
		meal.Macros.Protein = v
	}
	if v, ok := extractInt(carbsFieldRe, segment); ok {
		meal.Macros.Carbs = v
	}
	if v, ok := extractInt(fatsFieldRe, segment); ok {
		meal.Macros.Fats = v
	}
	if prep := extractLine(prepTimeFieldRe, segment); prep != "" {
		meal.PrepTimeLabel = prep
	}
	if serving := extractLine(servingFieldRe, segment); serving != "" {
		meal.ServingSizeLabel = serving
	}

	return meal
}

func parseSnacks(segment string) []MealItem {
	var snacks []MealItem
	for _, m := range listItemRe.FindAllStringSubmatch(segment, -1) {
		item := strings.TrimSpace(m[1])
		if item == "" {
			continue
		}

		name := item
		if idx := strings.IndexAny(item, "(-–"); idx > 0 {
			name = strings.TrimSpace(item[:idx])
		}
		cleaned, emoji := splitEmojiTag(name)
		if cleaned == "" {
			continue
		}

		snack := MealItem{
			Name:     cleaned,
			EmojiTag: emoji,
			Macros:   Macros{Calories: 150, Protein: 5, Carbs: 20, Fats: 5},
		}
		if v, ok := extractInt(inlineCaloriesRe, item); ok {
			snack.Macros.Calories = v
		}
		if v, ok := extractInt(inlineProteinRe, item); ok {
			snack.Macros.Protein = v
		}
		snacks = append(snacks, snack)
	}

	if len(snacks) == 0 {
		return []MealItem{placeholderMeal("Healthy Snack")}
	}
	return snacks
}

// normalizeGoal maps free-form goal text into the small canonical set the
// clients understand.
func normalizeGoal(parsedGoal, profileGoal string) string {
	goal := strings.ToLower(parsedGoal)
	if goal == "" {
		goal = strings.ToLower(profileGoal)
	}
	switch {
	case strings.Contains(goal, "gain"), strings.Contains(goal, "muscle"):
		return "Muscle Gain"
	case strings.Contains(goal, "lose"), strings.Contains(goal, "fat"):
		return "Fat Loss"
	default:
		return "General Health"
	}
}

func extractInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractLine(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// splitEmojiTag strips a trailing/leading emoji off a display name and
// returns it separately, so ids are built from clean names.
func splitEmojiTag(name string) (string, string) {
	var emoji []rune
	var clean []rune
	for _, r := range name {
		if r >= 0x1F000 || (r >= 0x2600 && r <= 0x27BF) {
			emoji = append(emoji, r)
			continue
		}
		clean = append(clean, r)
	}
	return strings.TrimSpace(string(clean)), string(emoji)
}
