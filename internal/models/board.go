package models

import "github.com/google/uuid"

// BoardTaskRef is the slice of a task embedded into the assistant prompt so
// that the model can resolve a task name to its id.
type BoardTaskRef struct {
	ID       uuid.UUID    `json:"id"`
	Title    string       `json:"title"`
	Status   TaskStatus   `json:"status"`
	Priority TaskPriority `json:"priority"`
}

// BoardContext is the snapshot of the board sent with every chat turn
type BoardContext struct {
	TodoCount       int            `json:"todoCount"`
	InProgressCount int            `json:"inProgressCount"`
	DoneCount       int            `json:"doneCount"`
	Tasks           []BoardTaskRef `json:"tasks"`
}
