// Package pipeline implements the confirmation protocol: image message in,
// description + confirmation messages out, and meal logging on an
// affirmative reply. Every trigger invocation is stateless: it rehydrates
// everything it needs from the store, and the log's timestamp order is the
// only synchronization primitive.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/mealchat-go/internal/metrics"
	"github.com/raphaelgruber/mealchat-go/internal/models"
	"github.com/raphaelgruber/mealchat-go/internal/nutrition"
	"github.com/raphaelgruber/mealchat-go/internal/vision"
)

// Store is the slice of the message/meal store the engine needs. *db.Client
// satisfies it; tests use a fake.
type Store interface {
	AppendMessage(ctx context.Context, userID string, msg models.Message) (*models.Message, error)
	LatestMessageBefore(ctx context.Context, userID string, before time.Time) (*models.Message, error)
	CreateMeal(ctx context.Context, meal models.Meal) (*models.Meal, error)
}

// ImageFetcher retrieves and normalizes a remote image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*vision.Normalized, error)
}

// Describer runs vision inference on a normalized image. ok == false means
// "no result" (missing credential, transport failure, blocked or empty
// response), never an error to propagate.
type Describer interface {
	Describe(ctx context.Context, imageJPEG []byte) (string, bool)
}

// confidenceScore is the fixed confidence attached to every description
// message.
const confidenceScore = 0.85

// User-visible texts. The fallback strings replace errors: no failure of
// the image pipeline ever surfaces as an exception to the user.
const (
	fallbackImageText  = "I couldn’t process that image. Please try another photo."
	fallbackVisionText = "I couldn’t analyze the image right now. Please try again."
	confirmPromptText  = "Does this description match your meal?"
)

// Engine orchestrates the pipeline components. It holds no state across
// invocations.
type Engine struct {
	store   Store
	images  ImageFetcher
	vision  Describer
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewEngine creates the protocol engine.
func NewEngine(store Store, images ImageFetcher, describer Describer, logger *slog.Logger, collector *metrics.Collector) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		images:  images,
		vision:  describer,
		logger:  logger,
		metrics: collector,
	}
}

// HandleImageCreated is the image ingestion trigger. It fires for every
// created message and no-ops unless the message is an image upload. Each
// step failure short-circuits to a user-visible fallback text message; the
// description/confirmation appends are best-effort sequential writes, not a
// transaction; a crash between them leaves an orphaned description.
func (e *Engine) HandleImageCreated(ctx context.Context, userID string, msg models.Message) error {
	if !msg.IsImageUpload() {
		return nil
	}
	return e.metrics.Timed(metrics.OpTriggerImage, func() error {
		return e.handleImageCreated(ctx, userID, msg)
	})
}

func (e *Engine) handleImageCreated(ctx context.Context, userID string, msg models.Message) error {
	imageMessageID, err := models.RecordIDString(msg.ID)
	if err != nil {
		return fmt.Errorf("image message id: %w", err)
	}
	log := e.logger.With("user", userID, "message", imageMessageID)
	log.Info("image message created", "image_url", *msg.ImageURL)

	normalized, err := e.images.Fetch(ctx, *msg.ImageURL)
	if err != nil {
		log.Warn("image normalization failed", "error", err)
		return e.appendFallback(ctx, userID, fallbackImageText)
	}

	raw, ok := e.vision.Describe(ctx, normalized.Data)
	if !ok {
		return e.appendFallback(ctx, userID, fallbackVisionText)
	}

	parsed := vision.ParseDescription(raw)
	conf := confidenceScore

	var parts []string
	if len(parsed.FoodItems) > 0 {
		parts = append(parts, "I see: "+strings.Join(parsed.FoodItems, ", ")+".")
	} else {
		// Nothing parseable: echo the model's own words instead.
		parts = append(parts, raw)
	}
	if parsed.EstimatedCalories != nil {
		parts = append(parts, fmt.Sprintf("Estimated calories for this meal: %d", *parsed.EstimatedCalories))
	}

	log.Info("vision result",
		"food_count", len(parsed.FoodItems),
		"estimated_calories", parsed.EstimatedCalories,
	)

	description, err := e.store.AppendMessage(ctx, userID, models.Message{
		Role:              models.RoleAssistant,
		Kind:              models.KindText,
		Text:              strings.Join(parts, " "),
		FoodDescription:   &raw,
		FoodItems:         parsed.FoodItems,
		EstimatedCalories: parsed.EstimatedCalories,
		ConfidenceScore:   &conf,
	})
	if err != nil {
		return fmt.Errorf("append description message: %w", err)
	}

	visionMessageID, err := models.RecordIDString(description.ID)
	if err != nil {
		return fmt.Errorf("description message id: %w", err)
	}

	if _, err := e.store.AppendMessage(ctx, userID, models.Message{
		Role:                  models.RoleAssistant,
		Kind:                  models.KindConfirmation,
		Text:                  confirmPromptText,
		LinkedVisionMessageID: &visionMessageID,
		LinkedImageMessageID:  &imageMessageID,
		FoodItems:             parsed.FoodItems,
		EstimatedCalories:     parsed.EstimatedCalories,
	}); err != nil {
		return fmt.Errorf("append confirmation message: %w", err)
	}

	return nil
}

// HandleUserReply is the confirmation detection trigger. It fires for every
// created message and no-ops unless the message is the exact affirmative
// reply. Protocol-guard failures (no timestamp, no preceding message, wrong
// preceding kind) abort silently: logged for operators, nothing written.
func (e *Engine) HandleUserReply(ctx context.Context, userID string, msg models.Message) error {
	if !msg.IsConfirmationReply() {
		return nil
	}
	return e.metrics.Timed(metrics.OpTriggerConfirm, func() error {
		return e.handleUserReply(ctx, userID, msg)
	})
}

func (e *Engine) handleUserReply(ctx context.Context, userID string, msg models.Message) error {
	log := e.logger.With("user", userID)

	if msg.Timestamp.IsZero() {
		log.Warn("confirmation reply has no server timestamp")
		return nil
	}

	prev, err := e.store.LatestMessageBefore(ctx, userID, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("look up preceding message: %w", err)
	}
	if prev == nil {
		log.Warn("confirmation reply has no preceding message")
		return nil
	}
	if prev.Kind != models.KindConfirmation {
		// The "Yes" was not in reply to a pending confirmation.
		log.Debug("preceding message is not a confirmation", "kind", prev.Kind)
		return nil
	}

	calories := 0
	if prev.EstimatedCalories != nil {
		calories = *prev.EstimatedCalories
	}
	var macros *models.Macros
	if calories > 0 {
		m := nutrition.EstimateMacros(calories)
		macros = &m
	}

	foodItems := prev.FoodItems
	if foodItems == nil {
		foodItems = []string{}
	}

	meal, err := e.store.CreateMeal(ctx, models.Meal{
		UserID:            userID,
		ImageMessageID:    prev.LinkedImageMessageID,
		VisionMessageID:   prev.LinkedVisionMessageID,
		FoodItems:         foodItems,
		EstimatedCalories: calories,
		Macros:            macros,
	})
	if err != nil {
		return fmt.Errorf("create meal: %w", err)
	}

	mealID, err := models.RecordIDString(meal.ID)
	if err != nil {
		return fmt.Errorf("meal id: %w", err)
	}

	summary := []string{"Meal logged."}
	if calories > 0 {
		summary = append(summary, fmt.Sprintf("%d calories", calories))
	}
	if macros != nil {
		summary = append(summary, fmt.Sprintf("(P %dg · C %dg · F %dg)", macros.Protein, macros.Carbs, macros.Fat))
	}

	if _, err := e.store.AppendMessage(ctx, userID, models.Message{
		Role:              models.RoleAssistant,
		Kind:              models.KindText,
		Text:              strings.Join(summary, " "),
		MealLogged:        true,
		MealID:            &mealID,
		EstimatedCalories: &calories,
		Macros:            macros,
	}); err != nil {
		// The meal is durable; only the summary message is missing.
		return fmt.Errorf("append summary message: %w", err)
	}

	log.Info("meal logged", "meal", mealID, "estimated_calories", calories)
	return nil
}

func (e *Engine) appendFallback(ctx context.Context, userID, text string) error {
	if _, err := e.store.AppendMessage(ctx, userID, models.Message{
		Role: models.RoleAssistant,
		Kind: models.KindText,
		Text: text,
	}); err != nil {
		return fmt.Errorf("append fallback message: %w", err)
	}
	return nil
}
