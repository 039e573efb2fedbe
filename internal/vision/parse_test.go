package vision

import (
	"fmt"
	"reflect"
	"testing"
)

func TestParseDescription(t *testing.T) {
	cal := func(n int) *int { return &n }

	tests := []struct {
		name      string
		text      string
		wantFoods []string
		wantCal   *int
	}{
		{
			"two-line happy path",
			"chicken, rice, broccoli\nEstimated total calories: 450",
			[]string{"chicken", "rice", "broccoli"},
			cal(450),
		},
		{
			"windows line endings",
			"pasta, tomato sauce\r\nEstimated total calories: 620\r\n",
			[]string{"pasta", "tomato sauce"},
			cal(620),
		},
		{
			"case-insensitive match",
			"burger\nESTIMATED TOTAL CALORIES: 800",
			[]string{"burger"},
			cal(800),
		},
		{
			"loose fallback pattern",
			"salad\nI'd guess the calories: 150 or so.",
			[]string{"salad"},
			cal(150),
		},
		{
			"extra blank lines and chatter",
			"sushi, miso soup\n\nBased on typical portions.\nEstimated total calories: 550",
			[]string{"sushi", "miso soup"},
			cal(550),
		},
		{
			"empty tokens discarded, order kept",
			"eggs, , bacon,,toast\nEstimated total calories: 500",
			[]string{"eggs", "bacon", "toast"},
			cal(500),
		},
		{
			"no calorie line",
			"apple, banana",
			[]string{"apple", "banana"},
			nil,
		},
		{
			"zero calories rejected",
			"water\nEstimated total calories: 0",
			[]string{"water"},
			nil,
		},
		{
			"upper bound rejected",
			"feast\nEstimated total calories: 10000",
			[]string{"feast"},
			nil,
		},
		{
			"just below upper bound accepted",
			"feast\nEstimated total calories: 9999",
			[]string{"feast"},
			cal(9999),
		},
		{
			"non-numeric estimate",
			"mystery dish\nEstimated total calories: many",
			[]string{"mystery dish"},
			nil,
		},
		{
			"empty input",
			"",
			nil,
			nil,
		},
		{
			"calorie pattern on first line is not searched",
			"Estimated total calories: 400",
			[]string{"Estimated total calories: 400"},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDescription(tt.text)
			if !reflect.DeepEqual(got.FoodItems, tt.wantFoods) {
				t.Errorf("FoodItems = %v, want %v", got.FoodItems, tt.wantFoods)
			}
			switch {
			case got.EstimatedCalories == nil && tt.wantCal != nil:
				t.Errorf("EstimatedCalories = nil, want %d", *tt.wantCal)
			case got.EstimatedCalories != nil && tt.wantCal == nil:
				t.Errorf("EstimatedCalories = %d, want nil", *got.EstimatedCalories)
			case got.EstimatedCalories != nil && *got.EstimatedCalories != *tt.wantCal:
				t.Errorf("EstimatedCalories = %d, want %d", *got.EstimatedCalories, *tt.wantCal)
			}
		})
	}
}

func TestParseDescriptionCalorieBounds(t *testing.T) {
	// Accepted strictly between 0 and 10000.
	for _, n := range []int{1, 42, 450, 9999} {
		text := fmt.Sprintf("food\nEstimated total calories: %d", n)
		got := ParseDescription(text)
		if got.EstimatedCalories == nil || *got.EstimatedCalories != n {
			t.Errorf("calories %d should be accepted, got %v", n, got.EstimatedCalories)
		}
	}
	for _, n := range []int{0, 10000, 123456} {
		text := fmt.Sprintf("food\nEstimated total calories: %d", n)
		if got := ParseDescription(text); got.EstimatedCalories != nil {
			t.Errorf("calories %d should be rejected, got %d", n, *got.EstimatedCalories)
		}
	}
}
