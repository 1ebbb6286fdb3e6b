package ai

import (
	"context"

	"github.com/benvon/kanban-assistant/internal/models"
)

// MaxMessages caps the prior turns forwarded in one request. The relay
// rejects requests above it.
const MaxMessages = 100

// Message is one prior turn forwarded to the gateway
type Message struct {
	Role    models.ChatRole `json:"role"`
	Content string          `json:"content"`
}

// ToolCall is a structured action request emitted by the model. Arguments is
// the raw JSON object the model produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Completion is one model answer: prose, tool calls, or both
type Completion struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// DeltaFunc receives each incremental text fragment of a streamed answer.
// Returning an error aborts the stream.
type DeltaFunc func(delta string) error

// Provider forwards a conversation plus the board context to a chat-completion
// gateway with the task tools attached. Implementations hold no state between
// calls.
type Provider interface {
	Complete(ctx context.Context, messages []Message, board models.BoardContext) (*Completion, error)
	Stream(ctx context.Context, messages []Message, board models.BoardContext, onDelta DeltaFunc) (*Completion, error)
}
