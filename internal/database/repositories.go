package database

import (
	"context"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
)

// TaskStore is the full set of owner-scoped task operations. It is satisfied
// by TaskRepository on the server and by the REST client in the CLI.
type TaskStore interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, userID, id uuid.UUID, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// UserRepositoryInterface defines the user lookups used by authentication
type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetBySubject(ctx context.Context, subject string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

// ChatLogRepositoryInterface defines the append-only chat log
type ChatLogRepositoryInterface interface {
	Append(ctx context.Context, entry *models.ChatLogEntry) error
}

// Ensure concrete types implement the interfaces
var (
	_ TaskStore                  = (*TaskRepository)(nil)
	_ UserRepositoryInterface    = (*UserRepository)(nil)
	_ ChatLogRepositoryInterface = (*ChatLogRepository)(nil)
)
