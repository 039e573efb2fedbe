//go:build integration

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/mealchat-go/internal/models"
)

func resetData(t *testing.T) {
	t.Helper()
	if err := testDB.WipeData(context.Background()); err != nil {
		t.Fatalf("wipe data: %v", err)
	}
}

func TestEnsureConversation(t *testing.T) {
	resetData(t)
	ctx := context.Background()

	created, err := testDB.EnsureConversation(ctx, "alice")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !created {
		t.Errorf("first ensure should create")
	}

	created, err = testDB.EnsureConversation(ctx, "alice")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created {
		t.Errorf("second ensure should not create")
	}

	conv, err := testDB.GetConversation(ctx, "alice")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv == nil {
		t.Fatalf("conversation should exist")
	}
	if conv.CreatedAt.IsZero() || conv.UpdatedAt.IsZero() {
		t.Errorf("timestamps should be server-assigned, got %v / %v", conv.CreatedAt, conv.UpdatedAt)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	resetData(t)
	ctx := context.Background()

	if _, err := testDB.EnsureConversation(ctx, "bob"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	url := "https://example.com/lunch.jpg"
	first, err := testDB.AppendMessage(ctx, "bob", models.Message{
		Role: models.RoleUser, Kind: models.KindText, Text: "hello",
	})
	if err != nil {
		t.Fatalf("append text: %v", err)
	}
	if first.Timestamp.IsZero() {
		t.Errorf("append should return server timestamp")
	}

	second, err := testDB.AppendMessage(ctx, "bob", models.Message{
		Role: models.RoleUser, Kind: models.KindImage, Text: "", ImageURL: &url,
	})
	if err != nil {
		t.Fatalf("append image: %v", err)
	}
	if second.ImageURL == nil || *second.ImageURL != url {
		t.Errorf("image_url not round-tripped: %+v", second.ImageURL)
	}
	if !second.Timestamp.After(first.Timestamp) && !second.Timestamp.Equal(first.Timestamp) {
		t.Errorf("timestamps must be monotonic: %v then %v", first.Timestamp, second.Timestamp)
	}

	msgs, err := testDB.ListMessages(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "hello" || msgs[1].Kind != models.KindImage {
		t.Errorf("messages out of log order: %+v", msgs)
	}
}

func TestLatestMessageBefore(t *testing.T) {
	resetData(t)
	ctx := context.Background()

	if _, err := testDB.EnsureConversation(ctx, "carol"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	older, err := testDB.AppendMessage(ctx, "carol", models.Message{
		Role: models.RoleAssistant, Kind: models.KindConfirmation,
		Text: "Does this description match your meal?",
	})
	if err != nil {
		t.Fatalf("append confirmation: %v", err)
	}

	newer, err := testDB.AppendMessage(ctx, "carol", models.Message{
		Role: models.RoleUser, Kind: models.KindText, Text: "Yes",
	})
	if err != nil {
		t.Fatalf("append reply: %v", err)
	}

	prev, err := testDB.LatestMessageBefore(ctx, "carol", newer.Timestamp)
	if err != nil {
		t.Fatalf("latest before: %v", err)
	}
	if prev == nil {
		t.Fatalf("expected a preceding message")
	}
	if prev.ID != older.ID {
		t.Errorf("nearest-preceding lookup returned %v, want %v", prev.ID, older.ID)
	}

	// Nothing before the first message.
	prev, err = testDB.LatestMessageBefore(ctx, "carol", older.Timestamp)
	if err != nil {
		t.Fatalf("latest before first: %v", err)
	}
	if prev != nil {
		t.Errorf("expected nil before first message, got %+v", prev)
	}
}

func TestClearMessagesLeavesMeals(t *testing.T) {
	resetData(t)
	ctx := context.Background()

	if _, err := testDB.EnsureConversation(ctx, "dave"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := testDB.AppendMessage(ctx, "dave", models.Message{
		Role: models.RoleUser, Kind: models.KindText, Text: "hi",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	meal, err := testDB.CreateMeal(ctx, models.Meal{
		UserID:            "dave",
		FoodItems:         []string{"chicken", "rice"},
		EstimatedCalories: 450,
		Macros:            &models.Macros{Protein: 34, Carbs: 45, Fat: 15},
	})
	if err != nil {
		t.Fatalf("create meal: %v", err)
	}

	n, err := testDB.ClearMessages(ctx, "dave")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d messages, want 1", n)
	}

	mealID, err := models.RecordIDString(meal.ID)
	if err != nil {
		t.Fatalf("meal id: %v", err)
	}
	got, err := testDB.GetMeal(ctx, mealID)
	if err != nil {
		t.Fatalf("meal should survive conversation clear: %v", err)
	}
	if got.EstimatedCalories != 450 {
		t.Errorf("estimated_calories = %d, want 450", got.EstimatedCalories)
	}
	if got.Macros == nil || got.Macros.Protein != 34 {
		t.Errorf("macros not round-tripped: %+v", got.Macros)
	}
}

func TestGetMealNotFound(t *testing.T) {
	resetData(t)
	_, err := testDB.GetMeal(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListMealsAndMealsSince(t *testing.T) {
	resetData(t)
	ctx := context.Background()

	for _, cal := range []int{300, 500} {
		if _, err := testDB.CreateMeal(ctx, models.Meal{
			UserID:            "erin",
			FoodItems:         []string{"salad"},
			EstimatedCalories: cal,
		}); err != nil {
			t.Fatalf("create meal: %v", err)
		}
	}

	meals, err := testDB.ListMeals(ctx, "erin", 0)
	if err != nil {
		t.Fatalf("list meals: %v", err)
	}
	if len(meals) != 2 {
		t.Fatalf("expected 2 meals, got %d", len(meals))
	}

	since, err := testDB.MealsSince(ctx, "erin", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("meals since: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("expected 2 meals since an hour ago, got %d", len(since))
	}

	none, err := testDB.MealsSince(ctx, "erin", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("meals since future: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no meals since the future, got %d", len(none))
	}
}
