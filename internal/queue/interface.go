package queue

import (
	"context"
	"time"
)

// MessageInterface is a delivered job awaiting settlement. Workers depend on
// it rather than on *Message so they can be tested without a broker.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue carries background jobs from the API server to the worker
type JobQueue interface {
	Enqueue(ctx context.Context, job *Job) error
	// Consume starts delivering jobs. At most prefetchCount deliveries are
	// unsettled at a time; the caller must Ack or Nack each one. Both
	// channels close when ctx is done.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)
	Close() error
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered jobs older than retention and reports how
// many were removed
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
