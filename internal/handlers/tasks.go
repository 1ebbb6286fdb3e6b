package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/benvon/kanban-assistant/internal/api"
	"github.com/benvon/kanban-assistant/internal/board"
	"github.com/benvon/kanban-assistant/internal/database"
	logpkg "github.com/benvon/kanban-assistant/internal/logger"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TaskRepository is the task persistence used by the REST handlers
type TaskRepository interface {
	database.TaskStore
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Task, error)
}

// BoardNotifier receives mutations made through the REST API so that an open
// chat session can patch its board without a reload
type BoardNotifier interface {
	ApplyDelta(userID uuid.UUID, delta board.Delta)
}

// TaskHandler handles task-related requests
type TaskHandler struct {
	repo     TaskRepository
	notifier BoardNotifier
	logger   *zap.Logger
}

// TaskHandlerOption configures a TaskHandler
type TaskHandlerOption func(*TaskHandler)

// WithBoardNotifier forwards successful mutations to notifier
func WithBoardNotifier(notifier BoardNotifier) TaskHandlerOption {
	return func(h *TaskHandler) {
		h.notifier = notifier
	}
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(repo TaskRepository, logger *zap.Logger, opts ...TaskHandlerOption) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &TaskHandler{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /tasks prefix (e.g., from apiRouter.PathPrefix("/tasks"))
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/move", h.MoveTask).Methods("POST")
}

// ListTasks lists the caller's tasks in board order
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	tasks, err := h.repo.List(r.Context(), user.ID)
	if err != nil {
		h.logError("list_tasks_failed", user.ID, err)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	respondJSON(w, http.StatusOK, api.TaskListResponse{Tasks: tasks})
}

// CreateTask creates a task. Without an explicit position it is appended to
// the end of its column.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req api.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := newTaskFromRequest(user.ID, req)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	if req.Position == nil {
		position, err := h.columnLength(ctx, user.ID, task.Status, uuid.Nil)
		if err != nil {
			h.logError("create_task_failed", user.ID, err)
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
			return
		}
		task.Position = position
	}

	if err := h.repo.Create(ctx, task); err != nil {
		h.logError("create_task_failed", user.ID, err)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	h.notify(user.ID, board.Delta{Kind: board.DeltaCreated, Task: *task})
	respondJSON(w, http.StatusCreated, task)
}

// GetTask retrieves a task by ID
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := taskIDFromPath(w, r)
	if !ok {
		return
	}

	task, err := h.repo.GetByID(r.Context(), user.ID, id)
	if err != nil {
		h.respondStoreError(w, user.ID, "get_task_failed", err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask applies a sparse update to a task
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := taskIDFromPath(w, r)
	if !ok {
		return
	}

	var req api.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch, err := patchFromRequest(req)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if patch.IsEmpty() {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "No fields to update")
		return
	}

	h.applyPatch(w, r, user.ID, id, patch)
}

// MoveTask changes a task's column and position. Without a position the task
// goes to the end of the target column.
func (h *TaskHandler) MoveTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := taskIDFromPath(w, r)
	if !ok {
		return
	}

	var req api.MoveTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	position := req.Position
	if position == nil {
		length, err := h.columnLength(r.Context(), user.ID, req.Status, id)
		if err != nil {
			h.logError("move_task_failed", user.ID, err)
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to move task")
			return
		}
		position = &length
	}

	status := req.Status
	h.applyPatch(w, r, user.ID, id, models.TaskPatch{Status: &status, Position: position})
}

func (h *TaskHandler) applyPatch(w http.ResponseWriter, r *http.Request, userID, id uuid.UUID, patch models.TaskPatch) {
	task, err := h.repo.Update(r.Context(), userID, id, patch)
	if err != nil {
		h.respondStoreError(w, userID, "update_task_failed", err)
		return
	}

	h.notify(userID, board.Delta{Kind: board.DeltaUpdated, Task: *task})
	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := taskIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), user.ID, id); err != nil {
		h.respondStoreError(w, user.ID, "delete_task_failed", err)
		return
	}

	h.notify(user.ID, board.Delta{Kind: board.DeltaDeleted, Task: models.Task{ID: id}})
	w.WriteHeader(http.StatusNoContent)
}

// columnLength counts the caller's tasks in status, ignoring exclude
func (h *TaskHandler) columnLength(ctx context.Context, userID uuid.UUID, status models.TaskStatus, exclude uuid.UUID) (int, error) {
	tasks, err := h.repo.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tasks {
		if t.Status == status && t.ID != exclude {
			n++
		}
	}
	return n, nil
}

func (h *TaskHandler) notify(userID uuid.UUID, delta board.Delta) {
	if h.notifier != nil {
		h.notifier.ApplyDelta(userID, delta)
	}
}

func (h *TaskHandler) respondStoreError(w http.ResponseWriter, userID uuid.UUID, event string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}
	h.logError(event, userID, err)
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to access task")
}

func (h *TaskHandler) logError(event string, userID uuid.UUID, err error) {
	h.logger.Error(event,
		zap.String("user_id", userID.String()),
		logpkg.Error(err),
	)
}

// newTaskFromRequest builds the row to insert from a validated request
func newTaskFromRequest(userID uuid.UUID, req api.CreateTaskRequest) (*models.Task, error) {
	title := validation.SanitizeText(req.Title)
	if title == "" {
		return nil, errors.New("title is required and cannot be empty after sanitization")
	}

	task := &models.Task{
		UserID:           userID,
		Title:            title,
		Status:           req.Status,
		Priority:         req.Priority,
		Tags:             validation.SanitizeTags(req.Tags),
		EstimatedMinutes: req.EstimatedMinutes,
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
	if req.Position != nil {
		task.Position = *req.Position
	}
	if req.Description != nil {
		desc := validation.SanitizeText(*req.Description)
		task.Description = &desc
	}
	if req.DueDate != nil {
		due, err := validation.ParseDueDate(*req.DueDate)
		if err != nil {
			return nil, fmt.Errorf("invalid due_date: %w", err)
		}
		task.DueDate = &due
	}
	return task, nil
}

// patchFromRequest converts a validated update request into a sparse patch
func patchFromRequest(req api.UpdateTaskRequest) (models.TaskPatch, error) {
	patch := models.TaskPatch{
		Status:           req.Status,
		Priority:         req.Priority,
		Position:         req.Position,
		EstimatedMinutes: req.EstimatedMinutes,
	}
	if req.Title != nil {
		title := validation.SanitizeText(*req.Title)
		if title == "" {
			return models.TaskPatch{}, errors.New("title cannot be empty after sanitization")
		}
		patch.Title = &title
	}
	if req.Description != nil {
		desc := validation.SanitizeText(*req.Description)
		patch.Description = &desc
	}
	if req.Tags != nil {
		tags := validation.SanitizeTags(*req.Tags)
		if tags == nil {
			tags = []string{}
		}
		patch.Tags = &tags
	}
	if req.DueDate != nil {
		due, err := validation.ParseDueDate(*req.DueDate)
		if err != nil {
			return models.TaskPatch{}, fmt.Errorf("invalid due_date: %w", err)
		}
		patch.DueDate = &due
	}
	return patch, nil
}
