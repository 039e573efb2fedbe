// Package models defines the data structures stored by mealchat.
package models

import (
	"strings"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Role identifies who authored a message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Kind tags a message within a conversation. The pipeline is an implicit
// state machine over these kinds:
//
//	image (user)         -> text description (assistant, vision fields set)
//	description          -> confirmation (assistant, linked to both)
//	confirmation + "Yes" -> meal record + text summary (assistant, MealLogged)
//
// Any other message is plain text and never advances the machine.
type Kind string

const (
	KindText         Kind = "text"
	KindImage        Kind = "image"
	KindConfirmation Kind = "confirmation"
)

// Message is one entry in a conversation's append-only log. Timestamp is
// server-assigned; within a conversation messages are totally ordered by
// (timestamp, id); the id tiebreak is implementation-defined, not a
// contract callers may rely on.
type Message struct {
	ID           surrealmodels.RecordID `json:"id,omitempty"`
	Conversation surrealmodels.RecordID `json:"conversation"`
	Role         string                 `json:"role"`
	Kind         Kind                   `json:"kind"`
	Text         string                 `json:"text"`
	Timestamp    time.Time              `json:"timestamp"`

	// Image messages
	ImageURL *string `json:"image_url,omitempty"`

	// Assistant description messages
	FoodDescription   *string  `json:"food_description,omitempty"`
	FoodItems         []string `json:"food_items,omitempty"`
	EstimatedCalories *int     `json:"estimated_calories,omitempty"`
	ConfidenceScore   *float64 `json:"confidence_score,omitempty"`

	// Confirmation messages carry the ids of the description message that
	// produced them and the original image message, plus a copy of the
	// parsed meal data so logging never re-reads the description.
	LinkedVisionMessageID *string `json:"linked_vision_message_id,omitempty"`
	LinkedImageMessageID  *string `json:"linked_image_message_id,omitempty"`

	// Meal summary messages
	MealLogged bool    `json:"meal_logged,omitempty"`
	MealID     *string `json:"meal_id,omitempty"`
	Macros     *Macros `json:"macros,omitempty"`
}

// IsImageUpload reports whether this message should start the image
// ingestion pipeline.
func (m Message) IsImageUpload() bool {
	return m.Kind == KindImage && m.ImageURL != nil && *m.ImageURL != ""
}

// IsConfirmationReply reports whether this message is an affirmative user
// reply to a pending confirmation. The match is exact and case-sensitive;
// "yes", "YES" and synonyms do not trigger meal logging (known UX
// limitation carried over from the confirmation protocol).
func (m Message) IsConfirmationReply() bool {
	return m.Role == RoleUser && strings.TrimSpace(m.Text) == "Yes"
}
