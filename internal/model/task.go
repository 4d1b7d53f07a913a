package model

import (
	"time"

	"github.com/google/uuid"
)

// Task is a persisted to-do item. A task is visible only to the user whose
// email matches UserEmail; repository code filters by owner on every statement.
type Task struct {
	ID        uuid.UUID `json:"_id"`
	UserEmail string    `json:"userEmail"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	IsDone    bool      `json:"isDone"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskItem is one entry of a bulk-create request.
type TaskItem struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}
