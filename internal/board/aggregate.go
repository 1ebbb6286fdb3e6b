// Package board derives column groupings, counts and the assistant board
// context from a flat list of tasks.
package board

import (
	"math"
	"sort"

	"github.com/benvon/kanban-assistant/internal/models"
)

// Columns holds the tasks of each workflow column in display order
type Columns struct {
	Todo       []models.Task `json:"todo"`
	InProgress []models.Task `json:"in_progress"`
	Done       []models.Task `json:"done"`
}

// Column returns the tasks of the given status
func (c Columns) Column(status models.TaskStatus) []models.Task {
	switch status {
	case models.TaskStatusTodo:
		return c.Todo
	case models.TaskStatusInProgress:
		return c.InProgress
	case models.TaskStatusDone:
		return c.Done
	default:
		return nil
	}
}

// Summary holds per-column counts and the completion percentage
type Summary struct {
	TodoCount         int `json:"todo_count"`
	InProgressCount   int `json:"in_progress_count"`
	DoneCount         int `json:"done_count"`
	Total             int `json:"total"`
	CompletionPercent int `json:"completion_percent"`
}

// Partition splits tasks into the three columns. Each column is ordered by
// position ascending, then creation time ascending. Tasks with a status
// outside the closed set are not placed anywhere.
func Partition(tasks []models.Task) Columns {
	var cols Columns
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusTodo:
			cols.Todo = append(cols.Todo, t)
		case models.TaskStatusInProgress:
			cols.InProgress = append(cols.InProgress, t)
		case models.TaskStatusDone:
			cols.Done = append(cols.Done, t)
		}
	}
	sortColumn(cols.Todo)
	sortColumn(cols.InProgress)
	sortColumn(cols.Done)
	return cols
}

func sortColumn(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// Summarize counts tasks per column
func Summarize(tasks []models.Task) Summary {
	var s Summary
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusTodo:
			s.TodoCount++
		case models.TaskStatusInProgress:
			s.InProgressCount++
		case models.TaskStatusDone:
			s.DoneCount++
		}
	}
	s.Total = s.TodoCount + s.InProgressCount + s.DoneCount
	s.CompletionPercent = CompletionPercent(s.DoneCount, s.Total)
	return s
}

// CompletionPercent returns round(100*done/total), or 0 for an empty board
func CompletionPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// BuildContext renders the snapshot embedded into every assistant prompt.
// Tasks are listed in board order.
func BuildContext(tasks []models.Task) models.BoardContext {
	cols := Partition(tasks)
	summary := Summarize(tasks)

	ctx := models.BoardContext{
		TodoCount:       summary.TodoCount,
		InProgressCount: summary.InProgressCount,
		DoneCount:       summary.DoneCount,
		Tasks:           make([]models.BoardTaskRef, 0, summary.Total),
	}
	for _, status := range models.TaskStatuses {
		for _, t := range cols.Column(status) {
			ctx.Tasks = append(ctx.Tasks, models.BoardTaskRef{
				ID:       t.ID,
				Title:    t.Title,
				Status:   t.Status,
				Priority: t.Priority,
			})
		}
	}
	return ctx
}
