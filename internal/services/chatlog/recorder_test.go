package chatlog

import (
	"context"
	"errors"
	"testing"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/queue"
	"github.com/google/uuid"
)

type mockJobQueue struct {
	enqueueFunc func(ctx context.Context, job *queue.Job) error
	jobs        []*queue.Job
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(context.Context) error { return nil }

var _ queue.JobQueue = (*mockJobQueue)(nil)

type mockAppender struct {
	entries []*models.ChatLogEntry
	err     error
}

func (m *mockAppender) Append(_ context.Context, entry *models.ChatLogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func TestQueueRecorder_Record(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "published", err: nil},
		{name: "broker down", err: errors.New("channel closed"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := &mockJobQueue{enqueueFunc: func(ctx context.Context, job *queue.Job) error {
				if ctx.Err() != nil {
					t.Error("publish context should not inherit cancellation")
				}
				return tt.err
			}}
			rec := NewQueueRecorder(q)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			userID := uuid.New()
			err := rec.Record(ctx, models.ChatLogEntry{UserID: userID, Role: models.ChatRoleUser, Content: "hi"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Record() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(q.jobs) != 1 {
				t.Fatalf("published %d jobs, want 1", len(q.jobs))
			}
			job := q.jobs[0]
			if job.Type != queue.JobTypeChatLog || job.UserID != userID || job.ChatLog.Content != "hi" {
				t.Errorf("job = %+v", job)
			}
		})
	}
}

func TestDirectRecorder_Record(t *testing.T) {
	t.Parallel()

	store := &mockAppender{}
	rec := NewDirectRecorder(store)
	if err := rec.Record(context.Background(), models.ChatLogEntry{Role: models.ChatRoleAssistant, Content: "ok"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.entries) != 1 || store.entries[0].Content != "ok" {
		t.Errorf("entries = %+v", store.entries)
	}

	store.err = errors.New("db down")
	if err := rec.Record(context.Background(), models.ChatLogEntry{}); err == nil {
		t.Error("expected store error to propagate")
	}
}
