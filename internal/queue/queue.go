// Package queue provides the bounded in-memory work queue feeding the
// list-mode worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pageharvest/harvestd/internal/harvest"
)

// ErrClosed reports an operation against a closed queue. Consumers treat
// it as a shutdown signal, not a retryable failure.
var ErrClosed = errors.New("queue closed")

// Task is one URL's trip through the harvest pipeline.
type Task struct {
	JobID  string
	URL    string
	Folder string
	Format harvest.OutputFormat
}

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan Task
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	return &Queue{
		ch: make(chan Task, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case <-ctx.Done():
		return Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return Task{}, ErrClosed
		}
		return task, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
