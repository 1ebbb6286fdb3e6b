package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the workflow column a task occupies
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskStatuses lists the closed set of columns in board order
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}

// Valid reports whether s is one of the three board columns
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// TaskPriority represents how urgent a task is
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// Task represents a card on the board
type Task struct {
	ID               uuid.UUID    `json:"id"`
	UserID           uuid.UUID    `json:"user_id"`
	Title            string       `json:"title"`
	Description      *string      `json:"description,omitempty"`
	Status           TaskStatus   `json:"status"`
	Priority         TaskPriority `json:"priority"`
	DueDate          *time.Time   `json:"due_date,omitempty"`
	Tags             []string     `json:"tags"`
	Position         int          `json:"position"`
	EstimatedMinutes *int         `json:"estimated_minutes,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// SetStatus moves the task to status and maintains CompletedAt: it is stamped
// when the task enters done and cleared when it leaves done.
func (t *Task) SetStatus(status TaskStatus, now time.Time) {
	if status == TaskStatusDone {
		if t.Status != TaskStatusDone || t.CompletedAt == nil {
			completed := now
			t.CompletedAt = &completed
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
}

// TaskPatch is a sparse update. Nil fields are left untouched.
type TaskPatch struct {
	Title            *string       `json:"title,omitempty"`
	Description      *string       `json:"description,omitempty"`
	Status           *TaskStatus   `json:"status,omitempty"`
	Priority         *TaskPriority `json:"priority,omitempty"`
	DueDate          *time.Time    `json:"due_date,omitempty"`
	Tags             *[]string     `json:"tags,omitempty"`
	Position         *int          `json:"position,omitempty"`
	EstimatedMinutes *int          `json:"estimated_minutes,omitempty"`
}

// IsEmpty reports whether the patch would change nothing
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.DueDate == nil && p.Tags == nil && p.Position == nil && p.EstimatedMinutes == nil
}

// ApplyTo applies the provided fields to t
func (p TaskPatch) ApplyTo(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		desc := *p.Description
		t.Description = &desc
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.EstimatedMinutes != nil {
		minutes := *p.EstimatedMinutes
		t.EstimatedMinutes = &minutes
	}
	if p.Status != nil {
		t.SetStatus(*p.Status, now)
	}
	t.UpdatedAt = now
}
