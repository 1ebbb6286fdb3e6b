package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/kanban-assistant/internal/api"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/benvon/kanban-assistant/internal/services/chat"
	"github.com/benvon/kanban-assistant/internal/session"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func newChatRouter(sessions ChatSessions) *mux.Router {
	r := mux.NewRouter()
	NewChatHandler(sessions, zap.NewNop()).RegisterRoutes(r.PathPrefix("/api/v1").Subrouter())
	return r
}

func sendChat(t *testing.T, router http.Handler, user *models.User, content string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := withUser(newTestRequest(http.MethodPost, "/api/v1/chat/messages", map[string]string{"content": content}), user)
	return serve(t, router, req)
}

func TestSendMessage_ExecutesToolCalls(t *testing.T) {
	t.Parallel()

	repo := newMemTaskRepo()
	provider := &mockProvider{
		completeFunc: func(_ context.Context, messages []ai.Message, board models.BoardContext) (*ai.Completion, error) {
			return &ai.Completion{ToolCalls: []ai.ToolCall{{
				ID:        "call_1",
				Name:      ai.ToolCreateTask,
				Arguments: `{"title":"Write report","priority":"high","status":"todo"}`,
			}}}, nil
		},
	}
	svc := chat.NewService(repo, provider, nil, zap.NewNop())
	router := newChatRouter(svc)
	user := newTestUser()

	w, env := sendChat(t, router, user, "add a task to write the report")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, env.Message)
	}

	var resp api.ChatTurnResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply.Action == nil || resp.Reply.Action.Type != models.ActionCreate || resp.Reply.Action.TaskTitle != "Write report" {
		t.Errorf("reply action = %+v", resp.Reply.Action)
	}
	if resp.Board.TodoCount != 1 || resp.Board.Total != 1 {
		t.Errorf("board summary = %+v, want one todo", resp.Board)
	}

	tasks, _ := repo.List(context.Background(), user.ID)
	if len(tasks) != 1 || tasks[0].Priority != models.TaskPriorityHigh {
		t.Errorf("stored tasks = %+v", tasks)
	}

	hw, henv := serve(t, router, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil), user))
	if hw.Code != http.StatusOK {
		t.Fatalf("history status = %d", hw.Code)
	}
	var history api.ChatHistoryResponse
	if err := json.Unmarshal(henv.Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Messages) != 3 || history.Messages[0].Content != session.Greeting {
		t.Errorf("history = %+v, want greeting, user, reply", history.Messages)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		err        error
		wantStatus int
	}{
		{"blank message", "   ", nil, http.StatusBadRequest},
		{"rate limited", "hi", &ai.APIError{StatusCode: 429}, http.StatusTooManyRequests},
		{"quota exhausted", "hi", &ai.APIError{StatusCode: 402}, http.StatusPaymentRequired},
		{"upstream failure", "hi", &ai.APIError{StatusCode: 502}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := &mockProvider{
				completeFunc: func(context.Context, []ai.Message, models.BoardContext) (*ai.Completion, error) {
					return nil, tt.err
				},
			}
			router := newChatRouter(chat.NewService(newMemTaskRepo(), provider, nil, zap.NewNop()))

			w, env := sendChat(t, router, newTestUser(), tt.content)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if env.Success {
				t.Error("expected success=false")
			}
		})
	}
}

func TestSendMessage_QuotaIsTerminal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	provider := &mockProvider{
		completeFunc: func(context.Context, []ai.Message, models.BoardContext) (*ai.Completion, error) {
			calls.Add(1)
			return nil, &ai.APIError{StatusCode: 402}
		},
	}
	svc := chat.NewService(newMemTaskRepo(), provider, nil, zap.NewNop())
	router := newChatRouter(svc)
	user := newTestUser()

	for i := 0; i < 2; i++ {
		if w, _ := sendChat(t, router, user, "hi"); w.Code != http.StatusPaymentRequired {
			t.Fatalf("attempt %d: status = %d, want 402", i, w.Code)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("gateway called %d times, want 1", got)
	}

	reset := withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/chat", nil), user)
	if w, _ := serve(t, router, reset); w.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d, want 204", w.Code)
	}
	if w, _ := sendChat(t, router, user, "hi"); w.Code != http.StatusPaymentRequired {
		t.Errorf("after reset status = %d, want 402", w.Code)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("reset should allow a new attempt, gateway called %d times", got)
	}
}

func TestSendMessage_TurnInFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	provider := &mockProvider{
		completeFunc: func(ctx context.Context, _ []ai.Message, _ models.BoardContext) (*ai.Completion, error) {
			<-release
			return &ai.Completion{Content: "done"}, nil
		},
	}
	svc := chat.NewService(newMemTaskRepo(), provider, nil, zap.NewNop())
	router := newChatRouter(svc)
	user := newTestUser()

	first := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, withUser(newTestRequest(http.MethodPost, "/api/v1/chat/messages", map[string]string{"content": "one"}), user))
		first <- w.Code
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if sess, ok := svc.Session(user.ID); ok && sess.Busy() {
			break
		}
		if time.Now().After(deadline) {
			close(release)
			t.Fatal("first turn never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if w, _ := sendChat(t, router, user, "two"); w.Code != http.StatusConflict {
		t.Errorf("concurrent turn status = %d, want 409", w.Code)
	}
	reset := withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/chat", nil), user)
	if w, _ := serve(t, router, reset); w.Code != http.StatusConflict {
		t.Errorf("reset during turn status = %d, want 409", w.Code)
	}

	close(release)
	if code := <-first; code != http.StatusOK {
		t.Errorf("first turn status = %d, want 200", code)
	}
}

func TestChat_BoardUnavailable(t *testing.T) {
	t.Parallel()

	repo := newMemTaskRepo()
	repo.failAll = true
	router := newChatRouter(chat.NewService(repo, &mockProvider{}, nil, zap.NewNop()))

	w, env := sendChat(t, router, newTestUser(), "hi")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if env.Message != "Failed to load board" {
		t.Errorf("message = %q", env.Message)
	}
}
