package queue

import (
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeChatLog persists one chat message to the audit log
	JobTypeChatLog JobType = "chat_log"
)

// DefaultMaxRetries bounds redelivery before a job is dead-lettered
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID            `json:"id"`
	Type       JobType              `json:"type"`
	UserID     uuid.UUID            `json:"user_id"`
	ChatLog    *models.ChatLogEntry `json:"chat_log,omitempty"`
	NotBefore  *time.Time           `json:"not_before,omitempty"` // earliest processing time, nil = immediate
	NotAfter   *time.Time           `json:"not_after,omitempty"`  // latest processing time, nil = no expiry
	Metadata   map[string]any       `json:"metadata,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	RetryCount int                  `json:"retry_count"`
	MaxRetries int                  `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

// NewChatLogJob wraps a chat message for asynchronous persistence. The entry
// id is fixed here so redelivery stays idempotent.
func NewChatLogJob(entry models.ChatLogEntry) *Job {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	job := NewJob(JobTypeChatLog, entry.UserID)
	job.ChatLog = &entry
	return job
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// Retry returns a copy of the job scheduled no earlier than notBefore with
// the retry count incremented
func (j *Job) Retry(notBefore time.Time) *Job {
	next := *j
	next.NotBefore = &notBefore
	next.RetryCount = j.RetryCount + 1
	return &next
}
