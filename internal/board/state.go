package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
)

// TaskLister loads every task owned by a user, ordered by position then
// creation time.
type TaskLister interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
}

// DeltaKind identifies a locally known mutation
type DeltaKind string

const (
	DeltaCreated DeltaKind = "created"
	DeltaUpdated DeltaKind = "updated"
	DeltaDeleted DeltaKind = "deleted"
)

// Delta is a mutation whose outcome is already known to the caller. Task is
// the full row for created/updated deltas; only Task.ID is read for deletes.
type Delta struct {
	Kind DeltaKind
	Task models.Task
}

// State is the in-memory board of one owner. Derived columns and summary are
// recomputed on every change.
type State struct {
	mu       sync.RWMutex
	owner    uuid.UUID
	store    TaskLister
	tasks    []models.Task
	columns  Columns
	summary  Summary
	syncedAt time.Time
}

// NewState creates an empty board state for owner. Call Reconcile to load it.
func NewState(store TaskLister, owner uuid.UUID) *State {
	return &State{
		owner: owner,
		store: store,
	}
}

// Owner returns the user whose board this is
func (s *State) Owner() uuid.UUID {
	return s.owner
}

// Reconcile re-queries the store and replaces the local task list
func (s *State) Reconcile(ctx context.Context) error {
	tasks, err := s.store.List(ctx, s.owner)
	if err != nil {
		return fmt.Errorf("failed to refresh board: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(tasks)
	s.syncedAt = time.Now()
	return nil
}

// Apply patches the local task list with a known delta
func (s *State) Apply(delta Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]models.Task, 0, len(s.tasks)+1)
	switch delta.Kind {
	case DeltaCreated:
		tasks = append(tasks, s.tasks...)
		tasks = append(tasks, delta.Task)
	case DeltaUpdated:
		for _, t := range s.tasks {
			if t.ID == delta.Task.ID {
				t = delta.Task
			}
			tasks = append(tasks, t)
		}
	case DeltaDeleted:
		for _, t := range s.tasks {
			if t.ID != delta.Task.ID {
				tasks = append(tasks, t)
			}
		}
	default:
		return
	}
	s.replace(tasks)
}

func (s *State) replace(tasks []models.Task) {
	s.tasks = tasks
	s.columns = Partition(tasks)
	s.summary = Summarize(tasks)
}

// Tasks returns a copy of the current task list
func (s *State) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Task(nil), s.tasks...)
}

// Columns returns the current column partition
func (s *State) Columns() Columns {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.columns
}

// Summary returns the current counts
func (s *State) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// ColumnLengths returns the number of tasks in each column
func (s *State) ColumnLengths() map[models.TaskStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[models.TaskStatus]int{
		models.TaskStatusTodo:       len(s.columns.Todo),
		models.TaskStatusInProgress: len(s.columns.InProgress),
		models.TaskStatusDone:       len(s.columns.Done),
	}
}

// Context returns the board context for the next outbound prompt
func (s *State) Context() models.BoardContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BuildContext(s.tasks)
}

// SyncedAt reports when the state was last loaded from the store
func (s *State) SyncedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncedAt
}
