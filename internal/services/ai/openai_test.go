package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
)

// gatewayRequest is the subset of a chat completions request the tests inspect
type gatewayRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []gatewayRequest
	handler  http.HandlerFunc
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*OpenAIProvider, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req gatewayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode gateway request: %v", err)
		}
		gw.mu.Lock()
		gw.requests = append(gw.requests, req)
		gw.mu.Unlock()
		gw.handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider(ProviderConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1/",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
	p.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return p, gw
}

func writeGatewayError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"message":%q,"type":"error"}}`, message)
}

func TestOpenAIProviderComplete(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	p, gw := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{
			"id": "cmpl-1", "object": "chat.completion", "created": 1, "model": "test-model",
			"choices": [{
				"index": 0, "finish_reason": "tool_calls",
				"message": {"role": "assistant", "content": "On it.", "tool_calls": [
					{"id": "call_1", "type": "function", "function": {"name": "delete_task", "arguments": "{\"task_id\":\"%s\"}"}}
				]}
			}]
		}`, taskID)
	})

	board := models.BoardContext{
		TodoCount: 1,
		Tasks:     []models.BoardTaskRef{{ID: taskID, Title: "Old", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow}},
	}
	messages := []Message{
		{Role: models.ChatRoleUser, Content: "hi"},
		{Role: models.ChatRoleAssistant, Content: "hello"},
		{Role: models.ChatRoleUser, Content: "remove Old"},
	}

	completion, err := p.Complete(context.Background(), messages, board)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completion.Content != "On it." {
		t.Errorf("content = %q", completion.Content)
	}
	if len(completion.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(completion.ToolCalls))
	}
	call := completion.ToolCalls[0]
	if call.ID != "call_1" || call.Name != ToolDeleteTask || !strings.Contains(call.Arguments, taskID.String()) {
		t.Errorf("unexpected tool call: %+v", call)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.requests) != 1 {
		t.Fatalf("expected 1 gateway request, got %d", len(gw.requests))
	}
	req := gw.requests[0]
	if req.Model != "test-model" || req.Stream {
		t.Errorf("unexpected model/stream: %q %v", req.Model, req.Stream)
	}
	if len(req.Messages) != 4 || req.Messages[0].Role != "system" {
		t.Fatalf("expected system prompt plus 3 messages, got %+v", req.Messages)
	}
	if prompt, _ := req.Messages[0].Content.(string); !strings.Contains(prompt, taskID.String()) {
		t.Errorf("system prompt does not list the board: %v", req.Messages[0].Content)
	}
	if req.Messages[2].Role != "assistant" {
		t.Errorf("expected assistant role preserved, got %q", req.Messages[2].Role)
	}
	names := make([]string, 0, len(req.Tools))
	for _, tool := range req.Tools {
		names = append(names, tool.Function.Name)
	}
	if strings.Join(names, ",") != "create_task,edit_task,delete_task" {
		t.Errorf("unexpected tools: %v", names)
	}
}

func TestOpenAIProviderStream(t *testing.T) {
	t.Parallel()

	p, gw := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"create_task","arguments":"{\"title\":"}}]}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"A\"}"}}]}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, c := range chunks {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", c)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	completion, err := p.Stream(context.Background(), []Message{{Role: models.ChatRoleUser, Content: "add A"}}, models.BoardContext{},
		func(delta string) error {
			deltas = append(deltas, delta)
			return nil
		})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if strings.Join(deltas, "") != "Hello" {
		t.Errorf("deltas = %v", deltas)
	}
	if completion.Content != "Hello" {
		t.Errorf("content = %q", completion.Content)
	}
	if len(completion.ToolCalls) != 1 || completion.ToolCalls[0].Arguments != `{"title":"A"}` {
		t.Errorf("unexpected tool calls: %+v", completion.ToolCalls)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.requests) != 1 || !gw.requests[0].Stream {
		t.Errorf("expected one streaming request")
	}
}

func TestOpenAIProviderStreamCallbackError(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"x"}}]}`+"\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stop := errors.New("client went away")
	_, err := p.Stream(context.Background(), []Message{{Role: models.ChatRoleUser, Content: "hi"}}, models.BoardContext{},
		func(string) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestOpenAIProviderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"quota exhausted", http.StatusPaymentRequired, ErrQuotaExhausted},
		{"server error", http.StatusServiceUnavailable, ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, gw := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				writeGatewayError(w, tt.status, "nope")
			})
			msgs := []Message{{Role: models.ChatRoleUser, Content: "hi"}}

			if _, err := p.Complete(context.Background(), msgs, models.BoardContext{}); !errors.Is(err, tt.want) {
				t.Errorf("Complete: expected %v, got %v", tt.want, err)
			}
			if _, err := p.Stream(context.Background(), msgs, models.BoardContext{}, nil); !errors.Is(err, tt.want) {
				t.Errorf("Stream: expected %v, got %v", tt.want, err)
			}

			gw.mu.Lock()
			defer gw.mu.Unlock()
			if len(gw.requests) != 2 {
				t.Errorf("expected no automatic retries (2 requests), got %d", len(gw.requests))
			}
		})
	}
}

func TestOpenAIProviderNoChoices(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	})

	_, err := p.Complete(context.Background(), []Message{{Role: models.ChatRoleUser, Content: "hi"}}, models.BoardContext{})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}
