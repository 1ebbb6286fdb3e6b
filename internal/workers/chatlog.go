package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/kanban-assistant/internal/logger"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/queue"
	"go.uber.org/zap"
)

// baseRetryDelay is the first redelivery delay; it doubles per attempt
const baseRetryDelay = 5 * time.Second

// ChatLogStore persists chat log entries
type ChatLogStore interface {
	Append(ctx context.Context, entry *models.ChatLogEntry) error
}

// ChatLogPersister drains chat log jobs into the database
type ChatLogPersister struct {
	store    ChatLogStore
	jobQueue queue.JobQueue // for re-enqueueing failed jobs with a delay
	logger   *zap.Logger
	now      func() time.Time
}

// NewChatLogPersister creates a new chat log persister
func NewChatLogPersister(store ChatLogStore, jobQueue queue.JobQueue, zapLogger *zap.Logger) *ChatLogPersister {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &ChatLogPersister{
		store:    store,
		jobQueue: jobQueue,
		logger:   zapLogger,
		now:      time.Now,
	}
}

// Run consumes jobs until ctx is cancelled or the delivery channel closes
func (p *ChatLogPersister) Run(ctx context.Context, prefetch int) error {
	msgChan, errChan, err := p.jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			p.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("message channel closed")
			}
			if err := p.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				p.logger.Error("job_failed",
					zap.String("job_id", job.ID.String()),
					zap.String("job_type", string(job.Type)),
					zap.Int("retry_count", job.RetryCount),
					logger.Error(err),
				)
			}
		}
	}
}

// ProcessJob handles one delivery and settles it
func (p *ChatLogPersister) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	switch job.Type {
	case queue.JobTypeChatLog:
		if job.ChatLog == nil {
			if nackErr := msg.Nack(false); nackErr != nil {
				p.logger.Warn("nack_failed", zap.Error(nackErr))
			}
			return fmt.Errorf("chat log job %s has no payload", job.ID)
		}

		entry := *job.ChatLog
		if err := p.store.Append(ctx, &entry); err != nil {
			return p.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		p.logger.Debug("chat_log_persisted",
			zap.String("job_id", job.ID.String()),
			zap.String("user_id", job.UserID.String()),
		)
		return nil

	default:
		// unknown job type, send to DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError re-enqueues the job with exponential backoff while retries
// remain and dead-letters it afterwards
func (p *ChatLogPersister) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, cause error) error {
	if !job.CanRetry() {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed after %d retries: %w", job.MaxRetries, cause)
	}

	notBefore := p.now().Add(retryDelay(job.RetryCount))
	if err := p.jobQueue.Enqueue(ctx, job.Retry(notBefore)); err != nil {
		// keep the message; the broker redelivers it
		if nackErr := msg.Nack(true); nackErr != nil {
			p.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue job: %w (original error: %w)", err, cause)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Warn("ack_failed", zap.Error(ackErr))
	}
	return fmt.Errorf("job failed, retry %d/%d scheduled: %w", job.RetryCount+1, job.MaxRetries, cause)
}

func retryDelay(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	return baseRetryDelay << attempt
}
