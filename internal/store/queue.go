package store

import (
	"context"
	"sync"

	"github.com/roach88/giftswap/internal/exchange"
)

// job is one queued durable write. done receives exactly one result.
type job struct {
	ctx    context.Context
	commit exchange.Commit
	done   chan error
}

// jobQueue is a thread-safe FIFO queue of pending writes.
//
// Producers are request goroutines committing mutations; the single consumer
// is the Writer loop. The queue is unbounded: the registry holds its lock for
// the duration of a write, so in practice it rarely holds more than one job.
//
// The queue uses a channel for signaling so the consumer can block without
// polling; Close wakes it by closing the channel.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []*job
	closed bool
	signal chan struct{} // buffered, size 1
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]*job, 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *jobQueue) Enqueue(j *job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, j)

	// Non-blocking: a buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Dequeue removes and returns the front job, blocking until one is available.
// Returns (nil, false) once the queue is closed and drained.
func (q *jobQueue) Dequeue() (*job, bool) {
	for {
		if j, ok := q.TryDequeue(); ok {
			return j, true
		}

		q.mu.Lock()
		if q.closed && len(q.jobs) == 0 {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		<-q.signal
	}
}

// TryDequeue removes the front job without blocking.
func (q *jobQueue) TryDequeue() (*job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}

	j := q.jobs[0]
	// Nil out the slot so the snapshot can be collected.
	q.jobs[0] = nil
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}

	return j, true
}

// Len returns the number of pending jobs.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops accepting jobs and wakes the consumer.
func (q *jobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
