// Package nutrition derives macro estimates from calorie counts.
package nutrition

import (
	"math"

	"github.com/raphaelgruber/mealchat-go/internal/models"
)

// Energy split and energy density constants for the macro heuristic:
// 30% of calories from protein, 40% from carbs, 30% from fat, at
// 4 kcal/g for protein and carbs and 9 kcal/g for fat.
const (
	proteinShare = 0.30
	carbShare    = 0.40
	fatShare     = 0.30

	kcalPerGramProtein = 4
	kcalPerGramCarb    = 4
	kcalPerGramFat     = 9
)

// EstimateMacros converts a positive calorie count into protein/carb/fat
// grams using the fixed energy split. This is an approximation, not a
// nutrition-database lookup. Callers skip it for calories <= 0 (macros stay
// null on the meal).
func EstimateMacros(calories int) models.Macros {
	cal := float64(calories)
	return models.Macros{
		Protein: int(math.Round(cal * proteinShare / kcalPerGramProtein)),
		Carbs:   int(math.Round(cal * carbShare / kcalPerGramCarb)),
		Fat:     int(math.Round(cal * fatShare / kcalPerGramFat)),
	}
}
