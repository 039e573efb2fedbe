package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Conversation is the per-user message thread. Conversations are identified
// 1:1 with a user (the record id is the user id), created lazily on first
// access and never deleted by the pipeline.
type Conversation struct {
	ID        surrealmodels.RecordID `json:"id"`
	CreatedAt time.Time              `json:"created"`
	UpdatedAt time.Time              `json:"updated"`
}
