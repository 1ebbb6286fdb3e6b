package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("0f8c2b4a-1111-4c3d-8e9f-aabbccddeeff")
	board := models.BoardContext{
		TodoCount:       2,
		InProgressCount: 1,
		DoneCount:       0,
		Tasks: []models.BoardTaskRef{
			{ID: id, Title: "Buy milk | eggs", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow},
		},
	}
	today := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	prompt := BuildSystemPrompt(board, today)

	wants := []string{
		"- To Do: 2",
		"- In Progress: 1",
		"- Done: 0",
		"id | title | status | priority",
		id.String() + " | Buy milk / eggs | todo | low",
		"call the matching tool",
		"same language",
		"2026-02-03",
	}
	for _, want := range wants {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
}

func TestBuildSystemPromptEmptyBoard(t *testing.T) {
	t.Parallel()

	prompt := BuildSystemPrompt(models.BoardContext{}, time.Now())
	if !strings.Contains(prompt, "(no tasks)") {
		t.Error("empty board should say so")
	}
}

func TestToolDefinitions(t *testing.T) {
	t.Parallel()

	defs := ToolDefinitions()
	if len(defs) != 3 {
		t.Fatalf("len(ToolDefinitions()) = %d, want 3", len(defs))
	}

	required := map[string][]string{
		ToolCreateTask: {"title", "priority", "status"},
		ToolEditTask:   {"task_id"},
		ToolDeleteTask: {"task_id"},
	}
	for _, def := range defs {
		want, ok := required[def.Name]
		if !ok {
			t.Errorf("unexpected tool %q", def.Name)
			continue
		}
		got, _ := def.Parameters["required"].([]string)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s required = %v, want %v", def.Name, got, want)
		}
	}

	if got := len(Tools()); got != 3 {
		t.Errorf("len(Tools()) = %d, want 3", got)
	}
}
