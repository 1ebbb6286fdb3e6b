package chatlog

import (
	"context"
	"fmt"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/queue"
	"github.com/benvon/kanban-assistant/internal/session"
)

// Appender persists one chat log entry
type Appender interface {
	Append(ctx context.Context, entry *models.ChatLogEntry) error
}

// QueueRecorder hands chat messages to the job queue so that a turn never
// waits on the audit log write
type QueueRecorder struct {
	queue queue.JobQueue
}

// NewQueueRecorder creates a recorder publishing to q
func NewQueueRecorder(q queue.JobQueue) *QueueRecorder {
	return &QueueRecorder{queue: q}
}

// Record enqueues entry for the chat log worker
func (r *QueueRecorder) Record(ctx context.Context, entry models.ChatLogEntry) error {
	// the turn may finish before the publish; don't let its cancellation drop the entry
	if err := r.queue.Enqueue(context.WithoutCancel(ctx), queue.NewChatLogJob(entry)); err != nil {
		return fmt.Errorf("failed to enqueue chat log entry: %w", err)
	}
	return nil
}

// DirectRecorder writes chat messages straight to the store. It is used when
// no message broker is configured.
type DirectRecorder struct {
	store Appender
}

// NewDirectRecorder creates a recorder writing to store
func NewDirectRecorder(store Appender) *DirectRecorder {
	return &DirectRecorder{store: store}
}

// Record appends entry synchronously
func (r *DirectRecorder) Record(ctx context.Context, entry models.ChatLogEntry) error {
	return r.store.Append(context.WithoutCancel(ctx), &entry)
}

var (
	_ session.ChatLogger = (*QueueRecorder)(nil)
	_ session.ChatLogger = (*DirectRecorder)(nil)
)
