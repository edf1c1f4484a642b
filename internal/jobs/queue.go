package jobs

import "sync"

// runQueue is a thread-safe FIFO of run ids with de-duplication: a run id
// that is queued or being processed is not queued again. Redelivering the
// same run is harmless (Advance is idempotent) but wasteful.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the worker loop.
type runQueue struct {
	mu      sync.Mutex
	ids     []string
	tracked map[string]bool // queued or in flight
	closed  bool
	signal  chan struct{} // signals availability (buffered, size 1)
}

func newRunQueue() *runQueue {
	return &runQueue{
		ids:     make([]string, 0, 64),
		tracked: make(map[string]bool),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds id to the back of the queue.
// Returns false if the queue is closed or id is already tracked.
func (q *runQueue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.tracked[id] {
		return false
	}
	q.ids = append(q.ids, id)
	q.tracked[id] = true

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front id without blocking. The id stays
// tracked until Done is called.
func (q *runQueue) TryDequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	if len(q.ids) == 1 {
		q.ids = q.ids[:0]
	} else {
		q.ids = q.ids[1:]
	}

	// Wake another waiter if work remains. After Close the signal channel
	// is closed and every waiter is already awake.
	if len(q.ids) > 0 && !q.closed {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return id, true
}

// Done releases id so it may be queued again.
func (q *runQueue) Done(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.tracked, id)
}

// Wait returns a channel that signals when ids may be available. It is
// closed by Close.
func (q *runQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued (not in-flight) ids.
func (q *runQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Drained reports whether the queue is closed and empty.
func (q *runQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.ids) == 0
}

// Close stops accepting ids and wakes all waiters. Queued ids are still
// handed out by TryDequeue.
func (q *runQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
