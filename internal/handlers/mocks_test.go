package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/benvon/kanban-assistant/internal/board"
	"github.com/benvon/kanban-assistant/internal/database"
	"github.com/benvon/kanban-assistant/internal/middleware"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/google/uuid"
)

var errStoreDown = errors.New("connection refused")

// memTaskRepo is an owner-scoped in-memory task store
type memTaskRepo struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]models.Task
	failAll bool
}

func newMemTaskRepo(tasks ...models.Task) *memTaskRepo {
	r := &memTaskRepo{tasks: make(map[uuid.UUID]models.Task)}
	for _, t := range tasks {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *memTaskRepo) List(_ context.Context, userID uuid.UUID) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errStoreDown
	}
	out := []models.Task{}
	for _, t := range r.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memTaskRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, database.ErrNotFound
	}
	return &t, nil
}

func (r *memTaskRepo) Create(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errStoreDown
	}
	now := time.Now().UTC()
	task.ID = uuid.New()
	task.CreatedAt, task.UpdatedAt = now, now
	if task.Status == models.TaskStatusDone && task.CompletedAt == nil {
		task.CompletedAt = &now
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *memTaskRepo) Update(_ context.Context, userID, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errStoreDown
	}
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, database.ErrNotFound
	}
	patch.ApplyTo(&t, time.Now().UTC())
	r.tasks[id] = t
	return &t, nil
}

func (r *memTaskRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errStoreDown
	}
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return database.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *memTaskRepo) get(id uuid.UUID) (models.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// recordingNotifier captures forwarded deltas
type recordingNotifier struct {
	mu     sync.Mutex
	deltas []board.Delta
}

func (n *recordingNotifier) ApplyDelta(_ uuid.UUID, delta board.Delta) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deltas = append(n.deltas, delta)
}

func (n *recordingNotifier) kinds() []board.DeltaKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]board.DeltaKind, 0, len(n.deltas))
	for _, d := range n.deltas {
		out = append(out, d.Kind)
	}
	return out
}

// mockProvider answers relay calls from canned functions
type mockProvider struct {
	completeFunc func(ctx context.Context, messages []ai.Message, board models.BoardContext) (*ai.Completion, error)
	streamFunc   func(ctx context.Context, messages []ai.Message, board models.BoardContext, onDelta ai.DeltaFunc) (*ai.Completion, error)
}

func (m *mockProvider) Complete(ctx context.Context, messages []ai.Message, board models.BoardContext) (*ai.Completion, error) {
	return m.completeFunc(ctx, messages, board)
}

func (m *mockProvider) Stream(ctx context.Context, messages []ai.Message, board models.BoardContext, onDelta ai.DeltaFunc) (*ai.Completion, error) {
	return m.streamFunc(ctx, messages, board, onDelta)
}

func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(middleware.SetUserInContext(r.Context(), user))
}

func newTestUser() *models.User {
	return &models.User{ID: uuid.New(), Subject: "sub-" + uuid.NewString(), Email: "owner@example.com"}
}
