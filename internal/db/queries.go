package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/mealchat-go/internal/models"
)

func conversationRecord(userID string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("conversation", userID)
}

// EnsureConversation creates the user's conversation if it does not exist
// yet. Reports whether it was created by this call, so the caller can seed
// the welcome message exactly once.
func (c *Client) EnsureConversation(ctx context.Context, userID string) (bool, error) {
	results, err := query[[]models.Conversation](ctx, c, `
		SELECT * FROM type::record("conversation", $id)
	`, map[string]any{"id": userID})
	if err != nil {
		return false, fmt.Errorf("ensure conversation: %w", err)
	}
	if first(results) != nil {
		return false, nil
	}

	_, err = query[[]models.Conversation](ctx, c, `
		CREATE type::record("conversation", $id)
	`, map[string]any{"id": userID})
	if err != nil {
		// A concurrent first access may have won the create.
		if strings.Contains(err.Error(), "already exists") {
			return false, nil
		}
		return false, fmt.Errorf("create conversation: %w", err)
	}
	return true, nil
}

// GetConversation returns the user's conversation, or nil if none exists.
func (c *Client) GetConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	results, err := query[[]models.Conversation](ctx, c, `
		SELECT * FROM type::record("conversation", $id)
	`, map[string]any{"id": userID})
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return first(results), nil
}

// AppendMessage appends one message to the conversation's log. The timestamp
// is assigned by the database (time::now() default); the returned message
// carries it. Optional fields are written only when set so absent stays
// distinguishable from zero.
func (c *Client) AppendMessage(ctx context.Context, userID string, msg models.Message) (*models.Message, error) {
	set := []string{
		"conversation = $conv",
		"role = $role",
		"kind = $kind",
		"text = $text",
	}
	vars := map[string]any{
		"conv": conversationRecord(userID),
		"role": msg.Role,
		"kind": string(msg.Kind),
		"text": msg.Text,
	}

	if msg.ImageURL != nil {
		set = append(set, "image_url = $image_url")
		vars["image_url"] = *msg.ImageURL
	}
	if msg.FoodDescription != nil {
		set = append(set, "food_description = $food_description")
		vars["food_description"] = *msg.FoodDescription
	}
	if msg.FoodItems != nil {
		set = append(set, "food_items = $food_items")
		vars["food_items"] = msg.FoodItems
	}
	if msg.EstimatedCalories != nil {
		set = append(set, "estimated_calories = $estimated_calories")
		vars["estimated_calories"] = *msg.EstimatedCalories
	}
	if msg.ConfidenceScore != nil {
		set = append(set, "confidence_score = $confidence_score")
		vars["confidence_score"] = *msg.ConfidenceScore
	}
	if msg.LinkedVisionMessageID != nil {
		set = append(set, "linked_vision_message_id = $linked_vision")
		vars["linked_vision"] = *msg.LinkedVisionMessageID
	}
	if msg.LinkedImageMessageID != nil {
		set = append(set, "linked_image_message_id = $linked_image")
		vars["linked_image"] = *msg.LinkedImageMessageID
	}
	if msg.MealLogged {
		set = append(set, "meal_logged = true")
	}
	if msg.MealID != nil {
		set = append(set, "meal_id = $meal_id")
		vars["meal_id"] = *msg.MealID
	}
	if msg.Macros != nil {
		set = append(set, "macros = $macros")
		vars["macros"] = *msg.Macros
	}

	sql := "CREATE message SET " + strings.Join(set, ", ") + " RETURN AFTER"
	results, err := query[[]models.Message](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	created := first(results)
	if created == nil {
		return nil, fmt.Errorf("append message: no row returned")
	}

	if _, err := query[any](ctx, c, `
		UPDATE $conv SET updated = time::now()
	`, map[string]any{"conv": conversationRecord(userID)}); err != nil {
		// The message is already durable; a failed touch only leaves the
		// conversation's updated timestamp stale.
		c.logger.Warn("touch conversation failed", "user", userID, "error", err)
	}

	return created, nil
}

// LatestMessageBefore returns the single most recent message in the
// conversation strictly before the given timestamp, or nil if none exists.
// Timestamp ties are broken by record id (implementation-defined).
func (c *Client) LatestMessageBefore(ctx context.Context, userID string, before time.Time) (*models.Message, error) {
	results, err := query[[]models.Message](ctx, c, `
		SELECT * FROM message
		WHERE conversation = $conv AND timestamp < $before
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, map[string]any{
		"conv":   conversationRecord(userID),
		"before": before,
	})
	if err != nil {
		return nil, fmt.Errorf("latest message before: %w", err)
	}
	return first(results), nil
}

// ListMessages returns the conversation's messages in log order. limit <= 0
// means no limit.
func (c *Client) ListMessages(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	sql := `
		SELECT * FROM message
		WHERE conversation = $conv
		ORDER BY timestamp ASC, id ASC
	`
	vars := map[string]any{"conv": conversationRecord(userID)}
	if limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = limit
	}

	results, err := query[[]models.Message](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return rows(results), nil
}

// ClearMessages deletes all messages of a conversation. Administrative
// operation: meals are untouched, the conversation record remains. Returns
// the number of deleted messages.
func (c *Client) ClearMessages(ctx context.Context, userID string) (int, error) {
	results, err := query[[]models.Message](ctx, c, `
		DELETE message WHERE conversation = $conv RETURN BEFORE
	`, map[string]any{"conv": conversationRecord(userID)})
	if err != nil {
		return 0, fmt.Errorf("clear messages: %w", err)
	}
	return len(rows(results)), nil
}

// CreateMeal persists one confirmed meal. Meals are immutable after
// creation; created is assigned by the database.
func (c *Client) CreateMeal(ctx context.Context, meal models.Meal) (*models.Meal, error) {
	set := []string{
		"user_id = $user_id",
		"conversation = $conv",
		"food_items = $food_items",
		"estimated_calories = $estimated_calories",
	}
	foodItems := meal.FoodItems
	if foodItems == nil {
		foodItems = []string{}
	}
	vars := map[string]any{
		"user_id":            meal.UserID,
		"conv":               conversationRecord(meal.UserID),
		"food_items":         foodItems,
		"estimated_calories": meal.EstimatedCalories,
	}

	if meal.ImageMessageID != nil {
		set = append(set, "image_message_id = $image_message_id")
		vars["image_message_id"] = *meal.ImageMessageID
	}
	if meal.VisionMessageID != nil {
		set = append(set, "vision_message_id = $vision_message_id")
		vars["vision_message_id"] = *meal.VisionMessageID
	}
	if meal.Macros != nil {
		set = append(set, "macros = $macros")
		vars["macros"] = *meal.Macros
	}

	sql := "CREATE meal SET " + strings.Join(set, ", ") + " RETURN AFTER"
	results, err := query[[]models.Meal](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("create meal: %w", err)
	}
	created := first(results)
	if created == nil {
		return nil, fmt.Errorf("create meal: no row returned")
	}
	return created, nil
}

// GetMeal returns a meal by id, or ErrNotFound. Accepts both the bare id
// and the "meal:id" form.
func (c *Client) GetMeal(ctx context.Context, id string) (*models.Meal, error) {
	id = strings.TrimPrefix(id, "meal:")
	results, err := query[[]models.Meal](ctx, c, `
		SELECT * FROM type::record("meal", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get meal: %w", err)
	}
	meal := first(results)
	if meal == nil {
		return nil, ErrNotFound
	}
	return meal, nil
}

// ListMeals returns the user's meals, most recent first. limit <= 0 means
// no limit.
func (c *Client) ListMeals(ctx context.Context, userID string, limit int) ([]models.Meal, error) {
	sql := `
		SELECT * FROM meal
		WHERE user_id = $user_id
		ORDER BY created DESC
	`
	vars := map[string]any{"user_id": userID}
	if limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = limit
	}

	results, err := query[[]models.Meal](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	return rows(results), nil
}

// MealsSince returns the user's meals created at or after the given time,
// oldest first. Serves the daily-total endpoint.
func (c *Client) MealsSince(ctx context.Context, userID string, since time.Time) ([]models.Meal, error) {
	results, err := query[[]models.Meal](ctx, c, `
		SELECT * FROM meal
		WHERE user_id = $user_id AND created >= $since
		ORDER BY created ASC
	`, map[string]any{"user_id": userID, "since": since})
	if err != nil {
		return nil, fmt.Errorf("meals since: %w", err)
	}
	return rows(results), nil
}
