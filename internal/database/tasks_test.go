package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
)

func TestBuildTaskUpdate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	title := "Ship release"
	done := models.TaskStatusDone
	high := models.TaskPriorityHigh
	tags := []string{"release"}

	tests := []struct {
		name     string
		patch    models.TaskPatch
		wantSet  string
		wantArgs int
	}{
		{
			name:     "empty patch touches only updated_at",
			patch:    models.TaskPatch{},
			wantSet:  "updated_at = $1",
			wantArgs: 1,
		},
		{
			name:     "title and priority",
			patch:    models.TaskPatch{Title: &title, Priority: &high},
			wantSet:  "title = $1, priority = $2, updated_at = $3",
			wantArgs: 3,
		},
		{
			name:     "status maintains completed_at",
			patch:    models.TaskPatch{Status: &done, Tags: &tags},
			wantSet:  "tags = $1, updated_at = $2, status = $3, completed_at = CASE WHEN $3 = 'done' THEN COALESCE(completed_at, $2) ELSE NULL END",
			wantArgs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			set, args := buildTaskUpdate(tt.patch, now)
			if set != tt.wantSet {
				t.Errorf("set = %q, want %q", set, tt.wantSet)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestBuildTaskUpdateNeverTouchesOwnership(t *testing.T) {
	t.Parallel()

	title := "x"
	set, _ := buildTaskUpdate(models.TaskPatch{Title: &title}, time.Now())
	for _, column := range []string{"user_id", "id =", "created_at"} {
		if strings.Contains(set, column) {
			t.Errorf("set clause %q must not write %s", set, column)
		}
	}
}

func TestNullHelpers(t *testing.T) {
	t.Parallel()

	if nullString(nil).Valid {
		t.Error("nullString(nil) should be invalid")
	}
	s := "desc"
	if got := nullString(&s); !got.Valid || got.String != s {
		t.Errorf("nullString(&s) = %+v", got)
	}
	minutes := 30
	if got := nullInt(&minutes); !got.Valid || got.Int64 != 30 {
		t.Errorf("nullInt(&30) = %+v", got)
	}
	if nullTime(nil).Valid {
		t.Error("nullTime(nil) should be invalid")
	}
}

func TestErrNotFoundWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("task not found: %w", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped error should match ErrNotFound")
	}
}
