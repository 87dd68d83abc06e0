package dispatch

import "sync"

// Queue is a FIFO of functions run by a single draining goroutine. Posting
// never blocks.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	wake   func()
	closed bool
}

// New returns an open queue. wake, when non-nil, is called after every post.
func New(wake func()) *Queue {
	return &Queue{wake: wake}
}

// Post appends fn to the queue. It reports false when the queue is closed.
func (q *Queue) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	if q.wake != nil {
		q.wake()
	}
	return true
}

// Drain runs every queued function in order on the calling goroutine and
// returns how many ran. Work posted by a running function waits for the next
// Drain.
func (q *Queue) Drain() int {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task()
	}
	return len(tasks)
}

// Close rejects further posts and discards queued work. Safe to call
// repeatedly.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.tasks = nil
}
