package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/kanban-assistant/internal/services/ai"
)

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sw := NewWriter(rec)
	if sw.Started() {
		t.Fatal("writer should not start before the first frame")
	}

	for _, part := range []string{"Hel", "lo"} {
		if err := sw.WriteDelta(part); err != nil {
			t.Fatalf("WriteDelta() error = %v", err)
		}
	}
	calls := []ai.ToolCall{{ID: "c1", Name: ai.ToolCreateTask, Arguments: `{"title":"A"}`}}
	if err := sw.WriteToolCalls(calls); err != nil {
		t.Fatalf("WriteToolCalls() error = %v", err)
	}
	if err := sw.Done(); err != nil {
		t.Fatalf("Done() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `data: {"choices":[{"delta":{"content":"Hel"}}]}`) {
		t.Errorf("unexpected frame layout:\n%s", rec.Body.String())
	}

	asm := NewAssembler()
	if err := Read(strings.NewReader(rec.Body.String()), func(c Chunk) error {
		asm.Add(c)
		return nil
	}); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	got := asm.Completion()
	if got.Content != "Hello" {
		t.Errorf("Content = %q", got.Content)
	}
	if len(got.ToolCalls) != 1 || got.ToolCalls[0] != calls[0] {
		t.Errorf("ToolCalls = %+v", got.ToolCalls)
	}
}

func TestWriterError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sw := NewWriter(rec)
	if err := sw.WriteError(http.StatusTooManyRequests, "rate limited"); err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"error":{"status":429,"message":"rate limited"}`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
