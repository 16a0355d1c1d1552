package session

import "sync"

// queue is an unbounded FIFO drained by a single goroutine. Pushing never
// blocks, so the goroutine may push onto its own queue.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	wake   chan struct{}
	closed bool
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{wake: make(chan struct{}, 1)}
}

// push appends v. It reports false once the queue is closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// close stops accepting items. Items already queued are still drained.
func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.wake)
}

// drain runs fn for every item, in order, until the queue is closed and
// empty.
func (q *queue[T]) drain(fn func(T)) {
	for {
		q.mu.Lock()
		items := q.items
		q.items = nil
		q.mu.Unlock()

		for _, item := range items {
			fn(item)
		}
		if len(items) > 0 {
			continue
		}
		if _, ok := <-q.wake; !ok {
			q.mu.Lock()
			rest := q.items
			q.items = nil
			q.mu.Unlock()
			for _, item := range rest {
				fn(item)
			}
			return
		}
	}
}
