package native

import (
	"context"
	"sync"
)

// Latch is a single-assignment completion. The first Fire wins; later calls
// are ignored and report false.
type Latch[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

func NewLatch[T any]() *Latch[T] {
	return &Latch[T]{done: make(chan struct{})}
}

// Fire completes the latch with v. It returns true only for the call that
// completed it.
func (l *Latch[T]) Fire(v T) bool {
	fired := false
	l.once.Do(func() {
		l.value = v
		close(l.done)
		fired = true
	})
	return fired
}

// Done is closed once the latch has fired.
func (l *Latch[T]) Done() <-chan struct{} {
	return l.done
}

// Value returns the fired value. It is the zero value before Done is closed.
func (l *Latch[T]) Value() T {
	select {
	case <-l.done:
		return l.value
	default:
		var zero T
		return zero
	}
}

// Wait blocks until the latch fires or ctx ends.
func (l *Latch[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-l.done:
		return l.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
