package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const taskColumns = `id, user_id, title, description, status, priority, due_date, tags, position,
	estimated_minutes, completed_at, created_at, updated_at`

// TaskRepository handles task database operations. Every statement is scoped
// to the owning user.
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var (
		description      sql.NullString
		dueDate          sql.NullTime
		estimatedMinutes sql.NullInt64
		completedAt      sql.NullTime
		tags             pq.StringArray
	)

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&description,
		&task.Status,
		&task.Priority,
		&dueDate,
		&tags,
		&task.Position,
		&estimatedMinutes,
		&completedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = &description.String
	}
	if dueDate.Valid {
		due := dueDate.Time.UTC()
		task.DueDate = &due
	}
	if estimatedMinutes.Valid {
		minutes := int(estimatedMinutes.Int64)
		task.EstimatedMinutes = &minutes
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	task.Tags = []string(tags)
	if task.Tags == nil {
		task.Tags = []string{}
	}

	return task, nil
}

// List returns every task owned by userID ordered by position then creation time
func (r *TaskRepository) List(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = $1
		ORDER BY position ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// GetByID retrieves one task owned by userID
func (r *TaskRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1 AND user_id = $2`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task not found: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// Create inserts a task. ID is generated when unset and the timestamps are
// filled from the database.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}

	now := time.Now().UTC()
	if task.Status == models.TaskStatusDone && task.CompletedAt == nil {
		task.CompletedAt = &now
	}
	if task.Status != models.TaskStatusDone {
		task.CompletedAt = nil
	}

	query := `
		INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, tags, position,
			estimated_minutes, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		nullString(task.Description),
		task.Status,
		task.Priority,
		nullTime(task.DueDate),
		pq.Array(task.Tags),
		task.Position,
		nullInt(task.EstimatedMinutes),
		nullTime(task.CompletedAt),
		now,
		now,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// Update applies a sparse patch to a task owned by userID and returns the
// stored row. ErrNotFound is returned when no row matched.
func (r *TaskRepository) Update(ctx context.Context, userID, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	set, args := buildTaskUpdate(patch, time.Now().UTC())
	query := fmt.Sprintf(`UPDATE tasks SET %s
		WHERE id = $%d AND user_id = $%d
		RETURNING %s`, set, len(args)+1, len(args)+2, taskColumns)
	args = append(args, id, userID)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task not found: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete removes a task owned by userID. ErrNotFound is returned when no row
// matched.
func (r *TaskRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %w", ErrNotFound)
	}

	return nil
}

// buildTaskUpdate renders the SET clause for patch. Placeholders start at $1;
// updated_at is always written. completed_at follows status: it keeps an
// existing stamp when the task stays done and is cleared otherwise.
func buildTaskUpdate(patch models.TaskPatch, now time.Time) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) int {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		return len(args)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	if patch.DueDate != nil {
		add("due_date", *patch.DueDate)
	}
	if patch.Tags != nil {
		add("tags", pq.Array(*patch.Tags))
	}
	if patch.Position != nil {
		add("position", *patch.Position)
	}
	if patch.EstimatedMinutes != nil {
		add("estimated_minutes", *patch.EstimatedMinutes)
	}

	nowIdx := add("updated_at", now)

	if patch.Status != nil {
		statusIdx := add("status", string(*patch.Status))
		sets = append(sets, fmt.Sprintf(
			"completed_at = CASE WHEN $%d = 'done' THEN COALESCE(completed_at, $%d) ELSE NULL END",
			statusIdx, nowIdx))
	}

	return strings.Join(sets, ", "), args
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
