package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/mealchat-go/internal/server"
)

var (
	mealsLimit int
	mealsToday bool
	mealsGoal  int
)

var mealsCmd = &cobra.Command{
	Use:   "meals",
	Short: "List logged meals",
	Long: `List logged meals, most recent first.

With --today, shows only today's meals plus calorie and macro totals and
progress toward the daily calorie goal.

Examples:
  mealchat meals
  mealchat meals --today
  mealchat meals --today --goal 1800`,
	RunE: runMeals,
}

func init() {
	mealsCmd.Flags().IntVarP(&mealsLimit, "limit", "n", 20, "max meals")
	mealsCmd.Flags().BoolVarP(&mealsToday, "today", "t", false, "only today's meals, with totals")
	mealsCmd.Flags().IntVarP(&mealsGoal, "goal", "g", 2000, "daily calorie goal for the progress bar")
}

func runMeals(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if mealsToday {
		return runMealsToday(ctx)
	}

	meals, err := apiClient.Meals(ctx, userID, mealsLimit)
	if err != nil {
		return fmt.Errorf("fetch meals: %w", err)
	}
	if len(meals) == 0 {
		fmt.Println(defaultTheme.hintStyle().Render("No meals logged yet."))
		return nil
	}
	for _, meal := range meals {
		fmt.Println(renderMeal(meal))
	}
	return nil
}

func runMealsToday(ctx context.Context) error {
	totals, err := apiClient.MealsToday(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch today's meals: %w", err)
	}

	if len(totals.Meals) == 0 {
		fmt.Println(defaultTheme.hintStyle().Render("No meals logged today."))
		return nil
	}

	for _, meal := range totals.Meals {
		fmt.Println(renderMeal(meal))
	}
	fmt.Println()

	pct := float64(totals.TotalCalories) / float64(mealsGoal)
	if pct > 1 {
		pct = 1
	}
	bar := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	fmt.Printf("Today: %d / %d kcal\n%s\n", totals.TotalCalories, mealsGoal, bar.ViewAs(pct))
	fmt.Printf("Totals: P %dg · C %dg · F %dg\n",
		totals.Macros.Protein, totals.Macros.Carbs, totals.Macros.Fat)
	return nil
}

// renderMeal formats one meal record as a single line.
func renderMeal(meal server.MealDTO) string {
	foods := "unknown meal"
	if len(meal.FoodItems) > 0 {
		foods = strings.Join(meal.FoodItems, ", ")
	}
	line := fmt.Sprintf("%s  %-40s %4d kcal",
		meal.CreatedAt.Local().Format("Jan 02 15:04"), foods, meal.EstimatedCalories)
	if meal.Macros != nil {
		line += fmt.Sprintf("  (P %dg · C %dg · F %dg)",
			meal.Macros.Protein, meal.Macros.Carbs, meal.Macros.Fat)
	}
	return line
}
