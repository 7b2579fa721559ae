// Package queue is the outbox that carries committed changes from the engine
// to the delivery workers.
//
// Enqueue never blocks: when the buffer is full the change is refused and the
// caller decides what to do. The event log stays authoritative, so a refused
// change is a missed notification, not lost state.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Change represents the payload type flowing through the queue.
type Change = model.Change

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a change to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, c Change) bool

	// Dequeue returns a channel that will receive changes as they become available.
	// The channel will be closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Change

	// Len returns the current number of queued changes.
	Len(ctx context.Context) int

	// Close stops accepting changes. Buffered changes remain readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	changes  chan Change
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	q.changes = make(chan Change, q.capacity)

	// Initialize metrics
	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a change to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Change) bool { //nolint:gocritic // hugeParam: Change is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	select {
	case q.changes <- c:
		metrics.RecordQueueEnqueue()
		q.observeSize()
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Publish enqueues c. It lets the queue serve as the engine's publisher.
func (q *InMemoryQueue) Publish(ctx context.Context, c Change) bool { //nolint:gocritic // hugeParam: see Enqueue
	return q.Enqueue(ctx, c)
}

// Dequeue returns a channel that will receive changes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Change {
	out := make(chan Change)
	go func() {
		defer close(out)
		for c := range q.changes {
			select {
			case out <- c:
				metrics.RecordQueueDequeue()
				q.observeSize()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued changes.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return q.observeSize()
}

// Capacity returns the maximum number of buffered changes.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

func (q *InMemoryQueue) observeSize() int {
	size := len(q.changes)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close stops accepting changes.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.changes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
