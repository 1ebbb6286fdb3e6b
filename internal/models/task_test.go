package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value TaskStatus
		valid bool
	}{
		{TaskStatusTodo, true},
		{TaskStatusInProgress, true},
		{TaskStatusDone, true},
		{TaskStatus("blocked"), false},
		{TaskStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()
			if got := tt.value.Valid(); got != tt.valid {
				t.Errorf("TaskStatus(%q).Valid() = %v, expected %v", tt.value, got, tt.valid)
			}
		})
	}
}

func TestTaskPriority_Valid(t *testing.T) {
	t.Parallel()

	for _, p := range []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh} {
		if !p.Valid() {
			t.Errorf("Expected %q to be valid", p)
		}
	}
	if TaskPriority("urgent").Valid() {
		t.Error("Expected 'urgent' to be invalid")
	}
}

func TestTask_SetStatus_CompletedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	task := &Task{Status: TaskStatusTodo}

	task.SetStatus(TaskStatusDone, now)
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("Expected completed_at %v after moving to done, got %v", now, task.CompletedAt)
	}

	// Staying in done keeps the original completion time
	task.SetStatus(TaskStatusDone, later)
	if !task.CompletedAt.Equal(now) {
		t.Errorf("Expected completed_at to stay %v, got %v", now, task.CompletedAt)
	}

	task.SetStatus(TaskStatusInProgress, later)
	if task.CompletedAt != nil {
		t.Errorf("Expected completed_at to be cleared after leaving done, got %v", task.CompletedAt)
	}
}

func TestTaskPatch_ApplyTo_Sparse(t *testing.T) {
	t.Parallel()

	desc := "keep me"
	task := &Task{
		Title:       "Write report",
		Description: &desc,
		Status:      TaskStatusTodo,
		Priority:    TaskPriorityLow,
		Tags:        []string{"work"},
	}

	high := TaskPriorityHigh
	TaskPatch{Priority: &high}.ApplyTo(task, time.Now())

	if task.Priority != TaskPriorityHigh {
		t.Errorf("Expected priority high, got %s", task.Priority)
	}
	if task.Title != "Write report" {
		t.Errorf("Expected title untouched, got %q", task.Title)
	}
	if task.Description == nil || *task.Description != "keep me" {
		t.Errorf("Expected description untouched, got %v", task.Description)
	}
	if len(task.Tags) != 1 || task.Tags[0] != "work" {
		t.Errorf("Expected tags untouched, got %v", task.Tags)
	}
}

func TestTaskPatch_IsEmpty(t *testing.T) {
	t.Parallel()

	if !(TaskPatch{}).IsEmpty() {
		t.Error("Expected zero patch to be empty")
	}
	title := "x"
	if (TaskPatch{Title: &title}).IsEmpty() {
		t.Error("Expected patch with title to be non-empty")
	}
}
