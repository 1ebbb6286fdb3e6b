package api

import (
	"github.com/benvon/kanban-assistant/internal/board"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/services/ai"
)

// CreateTaskRequest is the body of POST /api/v1/tasks
type CreateTaskRequest struct {
	Title            string              `json:"title" validate:"required,max=500"`
	Description      *string             `json:"description,omitempty" validate:"omitempty,max=10000"`
	Status           models.TaskStatus   `json:"status" validate:"required,task_status"`
	Priority         models.TaskPriority `json:"priority" validate:"required,task_priority"`
	DueDate          *string             `json:"due_date,omitempty" validate:"omitempty,due_date"`
	Tags             []string            `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=100"`
	Position         *int                `json:"position,omitempty" validate:"omitempty,min=0"`
	EstimatedMinutes *int                `json:"estimated_minutes,omitempty" validate:"omitempty,min=0"`
}

// UpdateTaskRequest is the body of PATCH /api/v1/tasks/{id}. Omitted fields
// are left untouched.
type UpdateTaskRequest struct {
	Title            *string              `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Description      *string              `json:"description,omitempty" validate:"omitempty,max=10000"`
	Status           *models.TaskStatus   `json:"status,omitempty" validate:"omitempty,task_status"`
	Priority         *models.TaskPriority `json:"priority,omitempty" validate:"omitempty,task_priority"`
	DueDate          *string              `json:"due_date,omitempty" validate:"omitempty,due_date"`
	Tags             *[]string            `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=100"`
	Position         *int                 `json:"position,omitempty" validate:"omitempty,min=0"`
	EstimatedMinutes *int                 `json:"estimated_minutes,omitempty" validate:"omitempty,min=0"`
}

// MoveTaskRequest is the body of POST /api/v1/tasks/{id}/move. Position
// defaults to the end of the target column.
type MoveTaskRequest struct {
	Status   models.TaskStatus `json:"status" validate:"required,task_status"`
	Position *int              `json:"position,omitempty" validate:"omitempty,min=0"`
}

// BoardResponse is the body of GET /api/v1/board
type BoardResponse struct {
	Columns board.Columns `json:"columns"`
	Summary board.Summary `json:"summary"`
}

// TaskListResponse is the body of GET /api/v1/tasks
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks"`
}

// ChatMessageRequest is the body of POST /api/v1/chat/messages
type ChatMessageRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// ChatTurnResponse is the answer to a server-side chat turn
type ChatTurnResponse struct {
	Reply   models.ChatMessage `json:"reply"`
	Notices []string           `json:"notices,omitempty"`
	Board   board.Summary      `json:"board"`
}

// ChatHistoryResponse is the body of GET /api/v1/chat
type ChatHistoryResponse struct {
	Messages []models.ChatMessage `json:"messages"`
	Busy     bool                 `json:"busy"`
}

// RelayRequest is the body of POST /functions/v1/kanban-chat. The message
// cap matches ai.MaxMessages.
type RelayRequest struct {
	Messages     []RelayMessage      `json:"messages" validate:"required,min=1,max=100,dive"`
	BoardContext models.BoardContext `json:"boardContext"`
	Stream       bool                `json:"stream,omitempty"`
}

// RelayMessage is one turn of a relay request
type RelayMessage struct {
	Role    models.ChatRole `json:"role" validate:"required,oneof=user assistant"`
	Content string          `json:"content" validate:"max=20000"`
}

// RelayToolCall is a tool call in chat-completion shape
type RelayToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// RelayChoiceMessage is the assistant message of a relay answer
type RelayChoiceMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []RelayToolCall `json:"tool_calls,omitempty"`
}

// RelayChoice wraps one answer
type RelayChoice struct {
	Index        int                `json:"index"`
	Message      RelayChoiceMessage `json:"message"`
	FinishReason string             `json:"finish_reason,omitempty"`
}

// RelayResponse is the non-streaming chat-completion shaped answer
type RelayResponse struct {
	Object  string        `json:"object"`
	Choices []RelayChoice `json:"choices"`
}

// NewRelayResponse renders a completion in chat-completion shape
func NewRelayResponse(c *ai.Completion) RelayResponse {
	msg := RelayChoiceMessage{Role: string(models.ChatRoleAssistant), Content: c.Content}
	finish := "stop"
	for _, tc := range c.ToolCalls {
		call := RelayToolCall{ID: tc.ID, Type: "function"}
		call.Function.Name = tc.Name
		call.Function.Arguments = tc.Arguments
		msg.ToolCalls = append(msg.ToolCalls, call)
	}
	if len(msg.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return RelayResponse{
		Object:  "chat.completion",
		Choices: []RelayChoice{{Message: msg, FinishReason: finish}},
	}
}

// Completion converts the first choice back into a completion
func (r RelayResponse) Completion() *ai.Completion {
	c := &ai.Completion{}
	if len(r.Choices) == 0 {
		return c
	}
	msg := r.Choices[0].Message
	c.Content = msg.Content
	for _, tc := range msg.ToolCalls {
		c.ToolCalls = append(c.ToolCalls, ai.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return c
}

// AIMessages converts the relay request turns into gateway messages
func (r RelayRequest) AIMessages() []ai.Message {
	out := make([]ai.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// RelayErrorResponse is the body of a failed relay call
type RelayErrorResponse struct {
	Error string `json:"error"`
}
