package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRole identifies who authored a chat message
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ActionType is the kind of board mutation the assistant performed
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionEdit   ActionType = "edit"
	ActionDelete ActionType = "delete"
)

// ActionResult confirms a mutation for display. It carries the task title only.
type ActionResult struct {
	Type      ActionType `json:"type"`
	TaskTitle string     `json:"task_title"`
}

// ChatMessage is one entry in a chat session
type ChatMessage struct {
	Role    ChatRole      `json:"role"`
	Content string        `json:"content"`
	Action  *ActionResult `json:"action,omitempty"`
}

// ChatLogEntry is a persisted copy of a chat message. The log is append-only
// and never used to rebuild a session.
type ChatLogEntry struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Role      ChatRole      `json:"role"`
	Content   string        `json:"content"`
	Action    *ActionResult `json:"action,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
