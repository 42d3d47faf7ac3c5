package ingest

import (
	"context"
	"fmt"

	"imgvault/internal/models"
)

// Queue is the bounded FIFO handoff between request handlers and the worker.
type Queue struct {
	jobs chan models.UploadJob
}

// NewQueue returns a queue holding at most capacity jobs.
func NewQueue(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity must be > 0")
	}
	return &Queue{jobs: make(chan models.UploadJob, capacity)}, nil
}

// Enqueue adds job, blocking while the queue is full. It only fails when ctx
// is done first.
func (q *Queue) Enqueue(ctx context.Context, job models.UploadJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.jobs)
}
