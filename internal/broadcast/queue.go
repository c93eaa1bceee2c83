package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
)

// ErrQueueClosed is returned by Pop once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a FIFO of events for a single subscriber. Push never blocks.
// With a positive limit, a push that would exceed it closes the queue and
// drops its contents instead.
type Queue struct {
	mu       sync.Mutex
	items    []domain.WireEvent
	limit    int
	closed   bool
	overflow bool
	ready    chan struct{}
}

// NewQueue creates a queue. limit <= 0 means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Push appends ev. It returns false if the queue is closed, including when
// this push overflowed the limit and closed it.
func (q *Queue) Push(ev domain.WireEvent) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if q.limit > 0 && len(q.items) >= q.limit {
		q.closed = true
		q.overflow = true
		q.items = nil
		q.mu.Unlock()
		q.signal()
		return false
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.signal()
	return true
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled after a push or close. A single consumer waits on it and
// then drains with TryPop.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// TryPop removes and returns the oldest event, if any.
func (q *Queue) TryPop() (domain.WireEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.WireEvent{}, false
	}
	ev := q.items[0]
	q.items[0] = domain.WireEvent{}
	q.items = q.items[1:]
	return ev, true
}

// Pop blocks until an event is available, the queue is closed or ctx is done.
func (q *Queue) Pop(ctx context.Context) (domain.WireEvent, error) {
	for {
		if ev, ok := q.TryPop(); ok {
			return ev, nil
		}
		if q.Closed() {
			return domain.WireEvent{}, ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			return domain.WireEvent{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Close stops further pushes and discards pending events. Safe to call more
// than once.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Overflowed reports whether the queue was closed by exceeding its limit.
func (q *Queue) Overflowed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflow
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
