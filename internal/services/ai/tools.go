package ai

import (
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// Tool names understood by the executor
const (
	ToolCreateTask = "create_task"
	ToolEditTask   = "edit_task"
	ToolDeleteTask = "delete_task"
)

// ToolDefinition describes one callable action as a JSON schema
type ToolDefinition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
}

func enumValues[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func taskFieldSchemas() map[string]any {
	return map[string]any{
		"title": map[string]any{
			"type":        "string",
			"description": "Short task title",
		},
		"description": map[string]any{
			"type":        "string",
			"description": "Optional longer description",
		},
		"priority": map[string]any{
			"type": "string",
			"enum": enumValues([]models.TaskPriority{
				models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh,
			}),
		},
		"status": map[string]any{
			"type": "string",
			"enum": enumValues(models.TaskStatuses),
		},
		"due_date": map[string]any{
			"type":        "string",
			"description": "Due date as YYYY-MM-DD",
		},
		"tags": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	}
}

// ToolDefinitions returns the create, edit and delete task actions. The
// executor decodes exactly these argument shapes.
func ToolDefinitions() []ToolDefinition {
	createProps := taskFieldSchemas()

	editProps := taskFieldSchemas()
	editProps["task_id"] = map[string]any{
		"type":        "string",
		"description": "Id of the task to edit, taken from the task listing",
	}

	return []ToolDefinition{
		{
			Name:        ToolCreateTask,
			Description: "Create a new task on the user's board.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": createProps,
				"required":   []string{"title", "priority", "status"},
			},
		},
		{
			Name:        ToolEditTask,
			Description: "Update an existing task. Only the provided fields are changed.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": editProps,
				"required":   []string{"task_id"},
			},
		},
		{
			Name:        ToolDeleteTask,
			Description: "Delete a task from the user's board.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "Id of the task to delete, taken from the task listing",
					},
				},
				"required": []string{"task_id"},
			},
		},
	}
}

// Tools renders the tool definitions for the chat completions API
func Tools() []openai.ChatCompletionToolUnionParam {
	defs := ToolDefinitions()
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  shared.FunctionParameters(def.Parameters),
		}))
	}
	return tools
}
