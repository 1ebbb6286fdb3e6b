package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/benvon/kanban-assistant/internal/services/ai"
)

// Writer emits chat-completion chunks as server-sent events. Headers are
// written on the first frame so that a failure before any output can still
// be answered with a plain error status.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewWriter wraps w. Flushing is skipped when w does not support it.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// Started reports whether any frame has been written
func (sw *Writer) Started() bool {
	return sw.started
}

func (sw *Writer) start() {
	if sw.started {
		return
	}
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	sw.w.WriteHeader(http.StatusOK)
	sw.started = true
}

func (sw *Writer) writeFrame(payload string) error {
	sw.start()
	if _, err := fmt.Fprintf(sw.w, "%s%s\n\n", dataPrefix, payload); err != nil {
		return fmt.Errorf("failed to write stream frame: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

func (sw *Writer) writeChunk(chunk Chunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode stream frame: %w", err)
	}
	return sw.writeFrame(string(data))
}

// WriteDelta emits one text fragment
func (sw *Writer) WriteDelta(content string) error {
	return sw.writeChunk(Chunk{Choices: []Choice{{Delta: Delta{Content: content}}}})
}

// WriteToolCalls emits the complete tool calls of the turn in one frame
func (sw *Writer) WriteToolCalls(calls []ai.ToolCall) error {
	if len(calls) == 0 {
		return nil
	}
	deltas := make([]ToolCallDelta, 0, len(calls))
	for i, call := range calls {
		deltas = append(deltas, ToolCallDelta{
			Index:    i,
			ID:       call.ID,
			Type:     "function",
			Function: FunctionDelta{Name: call.Name, Arguments: call.Arguments},
		})
	}
	return sw.writeChunk(Chunk{Choices: []Choice{{Delta: Delta{ToolCalls: deltas}}}})
}

// WriteError emits an error frame for a failure after the stream started
func (sw *Writer) WriteError(status int, message string) error {
	return sw.writeChunk(Chunk{Error: &ErrorFrame{Status: status, Message: message}})
}

// Done emits the terminating marker
func (sw *Writer) Done() error {
	return sw.writeFrame(doneMarker)
}
