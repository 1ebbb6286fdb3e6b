package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/benvon/kanban-assistant/internal/api"
	"github.com/benvon/kanban-assistant/internal/board"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func newTaskRouter(repo TaskRepository, notifier BoardNotifier) *mux.Router {
	r := mux.NewRouter()
	h := NewTaskHandler(repo, zap.NewNop(), WithBoardNotifier(notifier))
	h.RegisterRoutes(r.PathPrefix("/api/v1/tasks").Subrouter())
	return r
}

func serve(t *testing.T, handler http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	var env envelope
	if w.Code != http.StatusNoContent {
		if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
			t.Fatalf("decode response (status %d): %v", w.Code, err)
		}
	}
	return w, env
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	user := newTestUser()
	existing := models.Task{ID: uuid.New(), UserID: user.ID, Title: "old", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow}

	tests := []struct {
		name         string
		body         any
		wantStatus   int
		wantPosition int
	}{
		{
			name:         "appends to end of column",
			body:         map[string]any{"title": "  Write report ", "status": "todo", "priority": "high", "tags": []string{"work", "Work"}},
			wantStatus:   http.StatusCreated,
			wantPosition: 1,
		},
		{
			name:         "first in empty column",
			body:         map[string]any{"title": "Ship", "status": "done", "priority": "medium"},
			wantStatus:   http.StatusCreated,
			wantPosition: 0,
		},
		{
			name:       "status outside enum",
			body:       map[string]any{"title": "x", "status": "blocked", "priority": "low"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing priority is not defaulted",
			body:       map[string]any{"title": "x", "status": "todo"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "blank title",
			body:       map[string]any{"title": "   ", "status": "todo", "priority": "low"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad due date",
			body:       map[string]any{"title": "x", "status": "todo", "priority": "low", "due_date": "tomorrow"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       map[string]any{"title": "x", "status": "todo", "priority": "low", "owner": "someone"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newMemTaskRepo(existing)
			notifier := &recordingNotifier{}
			router := newTaskRouter(repo, notifier)

			req := withUser(newTestRequest(http.MethodPost, "/api/v1/tasks", tt.body), user)
			w, env := serve(t, router, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, env.Message)
			}
			if tt.wantStatus != http.StatusCreated {
				if len(notifier.kinds()) != 0 {
					t.Error("a rejected request must not notify")
				}
				return
			}

			var task models.Task
			if err := json.Unmarshal(env.Data, &task); err != nil {
				t.Fatalf("decode task: %v", err)
			}
			if task.UserID != user.ID {
				t.Errorf("UserID = %s, want caller", task.UserID)
			}
			if task.Position != tt.wantPosition {
				t.Errorf("Position = %d, want %d", task.Position, tt.wantPosition)
			}
			if task.Status == models.TaskStatusDone && task.CompletedAt == nil {
				t.Error("a task created in done should carry completed_at")
			}
			if got := notifier.kinds(); !reflect.DeepEqual(got, []board.DeltaKind{board.DeltaCreated}) {
				t.Errorf("deltas = %v, want [created]", got)
			}
		})
	}
}

func TestCreateTask_SanitizesInput(t *testing.T) {
	t.Parallel()

	user := newTestUser()
	router := newTaskRouter(newMemTaskRepo(), nil)
	body := map[string]any{"title": "  Write report ", "status": "todo", "priority": "high", "tags": []string{" work ", "work", ""}}

	w, env := serve(t, router, withUser(newTestRequest(http.MethodPost, "/api/v1/tasks", body), user))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	var task models.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.Title != "Write report" {
		t.Errorf("Title = %q, want trimmed", task.Title)
	}
	if len(task.Tags) != 1 {
		t.Errorf("Tags = %v, want one normalized tag", task.Tags)
	}
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	user := newTestUser()
	other := newTestUser()
	mine := models.Task{ID: uuid.New(), UserID: user.ID, Title: "mine", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow, Tags: []string{}}
	theirs := models.Task{ID: uuid.New(), UserID: other.ID, Title: "theirs", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow, Tags: []string{}}

	tests := []struct {
		name       string
		id         uuid.UUID
		body       any
		wantStatus int
	}{
		{"priority change", mine.ID, map[string]any{"priority": "high"}, http.StatusOK},
		{"foreign task is not found", theirs.ID, map[string]any{"priority": "high"}, http.StatusNotFound},
		{"missing task is not found", uuid.New(), map[string]any{"priority": "high"}, http.StatusNotFound},
		{"empty patch", mine.ID, map[string]any{}, http.StatusBadRequest},
		{"invalid priority", mine.ID, map[string]any{"priority": "urgent"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newMemTaskRepo(mine, theirs)
			notifier := &recordingNotifier{}
			router := newTaskRouter(repo, notifier)

			req := withUser(newTestRequest(http.MethodPatch, "/api/v1/tasks/"+tt.id.String(), tt.body), user)
			w, _ := serve(t, router, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			if got, _ := repo.get(theirs.ID); got.Priority != models.TaskPriorityLow {
				t.Error("another user's task must never change")
			}
			if tt.wantStatus == http.StatusOK {
				if got, _ := repo.get(mine.ID); got.Priority != models.TaskPriorityHigh {
					t.Errorf("Priority = %s, want high", got.Priority)
				}
				if len(notifier.kinds()) != 1 {
					t.Errorf("deltas = %v, want one update", notifier.kinds())
				}
			} else if len(notifier.kinds()) != 0 {
				t.Error("a failed update must not notify")
			}
		})
	}
}

func TestMoveTask(t *testing.T) {
	t.Parallel()

	user := newTestUser()
	a := models.Task{ID: uuid.New(), UserID: user.ID, Title: "a", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow}
	b := models.Task{ID: uuid.New(), UserID: user.ID, Title: "b", Status: models.TaskStatusDone, Priority: models.TaskPriorityLow, Position: 0}
	repo := newMemTaskRepo(a, b)
	router := newTaskRouter(repo, nil)

	req := withUser(newTestRequest(http.MethodPost, "/api/v1/tasks/"+a.ID.String()+"/move", map[string]any{"status": "done"}), user)
	w, _ := serve(t, router, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	moved, _ := repo.get(a.ID)
	if moved.Status != models.TaskStatusDone {
		t.Errorf("Status = %s, want done", moved.Status)
	}
	if moved.Position != 1 {
		t.Errorf("Position = %d, want end of done column", moved.Position)
	}
	if moved.CompletedAt == nil {
		t.Error("moving into done should stamp completed_at")
	}

	back := withUser(newTestRequest(http.MethodPost, "/api/v1/tasks/"+a.ID.String()+"/move", map[string]any{"status": "todo", "position": 0}), user)
	if w, _ := serve(t, router, back); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if moved, _ := repo.get(a.ID); moved.CompletedAt != nil {
		t.Error("leaving done should clear completed_at")
	}
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	user := newTestUser()
	task := models.Task{ID: uuid.New(), UserID: user.ID, Title: "gone", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow, CreatedAt: time.Now()}
	repo := newMemTaskRepo(task)
	notifier := &recordingNotifier{}
	router := newTaskRouter(repo, notifier)

	req := withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/"+task.ID.String(), nil), user)
	w, _ := serve(t, router, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if _, ok := repo.get(task.ID); ok {
		t.Error("task should be deleted")
	}
	if got := notifier.kinds(); !reflect.DeepEqual(got, []board.DeltaKind{board.DeltaDeleted}) {
		t.Errorf("deltas = %v, want [deleted]", got)
	}

	again := withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/"+task.ID.String(), nil), user)
	if w, _ := serve(t, router, again); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestTaskHandler_Errors(t *testing.T) {
	t.Parallel()

	user := newTestUser()
	repo := newMemTaskRepo()
	router := newTaskRouter(repo, nil)

	noUser := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	if w, _ := serve(t, router, noUser); w.Code != http.StatusUnauthorized {
		t.Errorf("no user: status = %d, want 401", w.Code)
	}

	badID := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/tasks/not-a-uuid", nil), user)
	if w, _ := serve(t, router, badID); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", w.Code)
	}

	repo.mu.Lock()
	repo.failAll = true
	repo.mu.Unlock()
	list := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil), user)
	w, env := serve(t, router, list)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("store down: status = %d, want 500", w.Code)
	}
	if env.Success {
		t.Error("expected success=false")
	}
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	user := newTestUser()
	repo := newMemTaskRepo(
		models.Task{ID: uuid.New(), UserID: user.ID, Title: "second", Status: models.TaskStatusTodo, Position: 1},
		models.Task{ID: uuid.New(), UserID: user.ID, Title: "first", Status: models.TaskStatusTodo, Position: 0},
		models.Task{ID: uuid.New(), UserID: uuid.New(), Title: "foreign", Status: models.TaskStatusTodo},
	)
	router := newTaskRouter(repo, nil)

	w, env := serve(t, router, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil), user))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out api.TaskListResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Tasks) != 2 || out.Tasks[0].Title != "first" {
		t.Errorf("tasks = %+v, want the caller's two tasks in position order", out.Tasks)
	}
}
