package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Chichichkin/LogentriesAgent/internal/logging"
)

var ErrQueueFull = errors.New("event queue full")

// Queue is a bounded FIFO of formatted log lines. Any number of goroutines
// may enqueue; a single consumer dequeues.
type Queue struct {
	lines   chan string
	policy  logging.QueuePolicy
	evictMu sync.Mutex // serialises drop-oldest producers
	dropped atomic.Uint64
	pending atomic.Int64 // enqueued and not yet marked Done
}

func New(size int, policy logging.QueuePolicy) *Queue {
	if size <= 0 {
		size = logging.DefaultQueueSize
	}
	if policy == "" {
		policy = logging.PolicyBlock
	}
	return &Queue{
		lines:  make(chan string, size),
		policy: policy,
	}
}

// Enqueue appends line at the tail. With PolicyBlock it waits for space or
// ctx; with PolicyDropNewest it returns ErrQueueFull; with PolicyDropOldest
// it evicts the head and always succeeds. The returned bool reports whether
// a line (this one or an evicted one) was discarded.
func (q *Queue) Enqueue(ctx context.Context, line string) (dropped bool, err error) {
	q.pending.Add(1)

	switch q.policy {
	case logging.PolicyDropNewest:
		select {
		case q.lines <- line:
			return false, nil
		default:
			q.pending.Add(-1)
			q.dropped.Add(1)
			return true, ErrQueueFull
		}

	case logging.PolicyDropOldest:
		q.evictMu.Lock()
		defer q.evictMu.Unlock()
		for {
			select {
			case q.lines <- line:
				return dropped, nil
			default:
			}
			select {
			case <-q.lines:
				q.pending.Add(-1)
				q.dropped.Add(1)
				dropped = true
			default:
				// consumer took the head in between, retry the send
			}
		}

	default:
		select {
		case q.lines <- line:
			return false, nil
		case <-ctx.Done():
			q.pending.Add(-1)
			return false, ctx.Err()
		}
	}
}

// Dequeue removes the head, waiting until a line arrives or ctx is done.
// The consumer calls Done once it has finished with the line.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case line := <-q.lines:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// IsEmpty is a snapshot; concurrent producers may change it immediately.
func (q *Queue) IsEmpty() bool {
	return len(q.lines) == 0
}

// Done marks a dequeued line as handled, sent or abandoned.
func (q *Queue) Done() {
	q.pending.Add(-1)
}

// Pending counts lines enqueued but not yet marked Done, including the one
// the consumer is working on.
func (q *Queue) Pending() int64 {
	return q.pending.Load()
}

func (q *Queue) Len() int {
	return len(q.lines)
}

func (q *Queue) Cap() int {
	return cap(q.lines)
}

// Dropped counts lines discarded by the drop policies.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
