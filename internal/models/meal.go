package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Macros is a protein/carb/fat gram triple derived from a calorie count by
// a fixed energy-split heuristic. It is an approximation, not a nutrition
// database lookup.
type Macros struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fat     int `json:"fat"`
}

// Meal is a confirmed, immutable nutritional log entry derived from one
// image/confirmation exchange. There is no update or delete path.
type Meal struct {
	ID                surrealmodels.RecordID `json:"id,omitempty"`
	UserID            string                 `json:"user_id"`
	Conversation      surrealmodels.RecordID `json:"conversation"`
	ImageMessageID    *string                `json:"image_message_id,omitempty"`
	VisionMessageID   *string                `json:"vision_message_id,omitempty"`
	FoodItems         []string               `json:"food_items"`
	EstimatedCalories int                    `json:"estimated_calories"`
	Macros            *Macros                `json:"macros,omitempty"`
	CreatedAt         time.Time              `json:"created"`
}
