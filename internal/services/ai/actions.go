package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/validation"
	"github.com/google/uuid"
)

// Action is a decoded, validated tool call. It is one of CreateTaskAction,
// EditTaskAction or DeleteTaskAction.
type Action interface {
	ToolName() string
	isAction()
}

// CreateTaskAction inserts a new task owned by the caller
type CreateTaskAction struct {
	Title       string              `json:"title" validate:"required,max=500"`
	Priority    models.TaskPriority `json:"priority" validate:"required,task_priority"`
	Status      models.TaskStatus   `json:"status" validate:"required,task_status"`
	Description *string             `json:"description" validate:"omitempty,max=10000"`
	DueDate     *string             `json:"due_date" validate:"omitempty,due_date"`
	Tags        []string            `json:"tags" validate:"omitempty,max=20,dive,max=100"`
}

// EditTaskAction patches the provided fields of one task
type EditTaskAction struct {
	TaskID      uuid.UUID            `json:"task_id" validate:"required"`
	Title       *string              `json:"title" validate:"omitempty,min=1,max=500"`
	Description *string              `json:"description" validate:"omitempty,max=10000"`
	Priority    *models.TaskPriority `json:"priority" validate:"omitempty,task_priority"`
	Status      *models.TaskStatus   `json:"status" validate:"omitempty,task_status"`
	DueDate     *string              `json:"due_date" validate:"omitempty,due_date"`
	Tags        *[]string            `json:"tags" validate:"omitempty,max=20,dive,max=100"`
}

// DeleteTaskAction removes one task
type DeleteTaskAction struct {
	TaskID uuid.UUID `json:"task_id" validate:"required"`
}

func (CreateTaskAction) ToolName() string { return ToolCreateTask }
func (EditTaskAction) ToolName() string   { return ToolEditTask }
func (DeleteTaskAction) ToolName() string { return ToolDeleteTask }

func (CreateTaskAction) isAction() {}
func (EditTaskAction) isAction()   {}
func (DeleteTaskAction) isAction() {}

// ParseAction decodes and validates the arguments of call. Malformed JSON,
// values outside the status/priority enums and missing required fields are
// reported as ErrInvalidArguments; nothing is defaulted.
func ParseAction(call ToolCall) (Action, error) {
	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}

	switch call.Name {
	case ToolCreateTask:
		var a CreateTaskAction
		if err := decodeArguments(args, &a); err != nil {
			return nil, err
		}
		a.Title = validation.SanitizeText(a.Title)
		if a.Title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidArguments)
		}
		a.Tags = validation.SanitizeTags(a.Tags)
		return a, nil

	case ToolEditTask:
		var a EditTaskAction
		if err := decodeArguments(args, &a); err != nil {
			return nil, err
		}
		if a.Title != nil {
			title := validation.SanitizeText(*a.Title)
			if title == "" {
				return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidArguments)
			}
			a.Title = &title
		}
		if a.Tags != nil {
			tags := validation.SanitizeTags(*a.Tags)
			a.Tags = &tags
		}
		if a.isEmpty() {
			return nil, fmt.Errorf("%w: edit_task needs at least one field to change", ErrInvalidArguments)
		}
		return a, nil

	case ToolDeleteTask:
		var a DeleteTaskAction
		if err := decodeArguments(args, &a); err != nil {
			return nil, err
		}
		return a, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}
}

func decodeArguments(args string, dst any) error {
	if err := json.Unmarshal([]byte(args), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := validation.Validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, validation.FirstError(err))
	}
	return nil
}

func (a EditTaskAction) isEmpty() bool {
	return a.Title == nil && a.Description == nil && a.Priority == nil && a.Status == nil &&
		a.DueDate == nil && a.Tags == nil
}

// NewTask builds the task to insert for owner at position
func (a CreateTaskAction) NewTask(owner uuid.UUID, position int) (models.Task, error) {
	task := models.Task{
		UserID:   owner,
		Title:    a.Title,
		Status:   a.Status,
		Priority: a.Priority,
		Tags:     a.Tags,
		Position: position,
	}
	if task.Title == "" {
		return models.Task{}, fmt.Errorf("%w: title must not be empty", ErrInvalidArguments)
	}
	if a.Description != nil {
		desc := validation.SanitizeText(*a.Description)
		task.Description = &desc
	}
	if a.DueDate != nil {
		due, err := validation.ParseDueDate(*a.DueDate)
		if err != nil {
			return models.Task{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		task.DueDate = &due
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
	if task.Status == models.TaskStatusDone {
		task.SetStatus(models.TaskStatusDone, time.Now().UTC())
	}
	return task, nil
}

// Patch converts the provided fields into a sparse task patch
func (a EditTaskAction) Patch() (models.TaskPatch, error) {
	patch := models.TaskPatch{
		Title:    a.Title,
		Priority: a.Priority,
		Status:   a.Status,
		Tags:     a.Tags,
	}
	if a.Description != nil {
		desc := validation.SanitizeText(*a.Description)
		patch.Description = &desc
	}
	if a.DueDate != nil {
		due, err := validation.ParseDueDate(*a.DueDate)
		if err != nil {
			return models.TaskPatch{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		patch.DueDate = &due
	}
	return patch, nil
}
