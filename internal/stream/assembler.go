package stream

import (
	"sort"
	"strings"

	"github.com/benvon/kanban-assistant/internal/services/ai"
)

// Assembler accumulates streamed chunks into the final completion
type Assembler struct {
	content strings.Builder
	calls   map[int]*ai.ToolCall
}

// NewAssembler creates an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{calls: make(map[int]*ai.ToolCall)}
}

// Add folds one chunk into the completion and returns its text delta
func (a *Assembler) Add(chunk Chunk) string {
	if len(chunk.Choices) == 0 {
		return ""
	}
	delta := chunk.Choices[0].Delta
	a.content.WriteString(delta.Content)

	for _, tc := range delta.ToolCalls {
		call, ok := a.calls[tc.Index]
		if !ok {
			call = &ai.ToolCall{}
			a.calls[tc.Index] = call
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Function.Name != "" {
			call.Name = tc.Function.Name
		}
		call.Arguments += tc.Function.Arguments
	}
	return delta.Content
}

// Completion returns the assembled prose and tool calls in index order
func (a *Assembler) Completion() *ai.Completion {
	completion := &ai.Completion{Content: a.content.String()}

	indexes := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		completion.ToolCalls = append(completion.ToolCalls, *a.calls[idx])
	}
	return completion
}
