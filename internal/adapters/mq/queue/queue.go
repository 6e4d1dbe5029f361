// Package queue buffers behavioral events between the API and the worker
// pool. Enqueue never blocks: a full queue is backpressure for the caller.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/pkg/metrics"
)

// DefaultCapacity is the queue size when none is configured.
const DefaultCapacity = 10000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event. It returns ErrFull or ErrClosed when the event
	// was not accepted.
	Enqueue(ctx context.Context, e model.Event) error

	// Dequeue returns a channel of queued events. The channel is closed
	// once the queue is closed and drained, or when ctx is done.
	Dequeue(ctx context.Context) <-chan model.Event

	// Len returns the current number of queued events.
	Len() int

	// Close stops accepting events. Already queued events stay readable.
	Close() error

	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan model.Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan model.Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives events as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Event {
	out := make(chan model.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-q.events:
				if !ok {
					return
				}
				select {
				case out <- e:
					metrics.RecordQueueDequeue()
					q.observe()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len() int {
	return len(q.events)
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close stops accepting events.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.events)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
