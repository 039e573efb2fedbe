package vision

import (
	"regexp"
	"strconv"
	"strings"
)

// Calorie estimates outside (0, maxCalories) are treated as "no estimate";
// the model occasionally hallucinates absurd numbers.
const maxCalories = 10000

var (
	calorieRe      = regexp.MustCompile(`(?i)estimated\s+total\s+calories:\s*(\d+)`)
	looseCalorieRe = regexp.MustCompile(`(?i)calories:\s*(\d+)`)
)

// Parsed is the structured result extracted from a model reply.
type Parsed struct {
	// FoodItems is the ordered food list from the first line; possibly empty.
	FoodItems []string
	// EstimatedCalories is nil when no acceptable number was found.
	EstimatedCalories *int
}

// ParseDescription extracts the food list and calorie estimate from free
// model text. Deterministic and pure: the first non-empty line is split on
// commas into food items; the remaining lines are searched for
// "estimated total calories: N", falling back to the looser "calories: N".
func ParseDescription(text string) Parsed {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	var foods []string
	if len(lines) > 0 {
		for _, item := range strings.Split(lines[0], ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				foods = append(foods, trimmed)
			}
		}
	}

	var calories *int
	if len(lines) > 1 {
		rest := strings.Join(lines[1:], " ")
		match := calorieRe.FindStringSubmatch(rest)
		if match == nil {
			match = looseCalorieRe.FindStringSubmatch(rest)
		}
		if match != nil {
			if n, err := strconv.Atoi(match[1]); err == nil && n > 0 && n < maxCalories {
				calories = &n
			}
		}
	}

	return Parsed{FoodItems: foods, EstimatedCalories: calories}
}
