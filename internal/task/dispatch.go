package task

import (
	"context"
	"sync"
)

// Dispatcher runs sink callbacks on the execution context the caller chose
type Dispatcher interface {
	Dispatch(fn func())
}

// Inline runs callbacks directly on the worker goroutine
type Inline struct{}

func (Inline) Dispatch(fn func()) { fn() }

// Loop queues callbacks until the owning goroutine drains them with Run,
// RunUntil or Drain. Callbacks run in the order they were dispatched.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	notify chan struct{}
	closed bool
}

// NewLoop creates an empty loop
func NewLoop() *Loop {
	return &Loop{notify: make(chan struct{}, 1)}
}

// Dispatch enqueues fn. It never blocks. Callbacks dispatched after
// Close are dropped.
func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Drain runs every queued callback and returns how many ran
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
		n++
	}
}

// Run processes callbacks until ctx is done or the loop is closed
func (l *Loop) Run(ctx context.Context) error {
	return l.RunUntil(ctx, nil)
}

// RunUntil processes callbacks until done is closed, ctx is done or the
// loop is closed. Callbacks already queued when done closes are run.
func (l *Loop) RunUntil(ctx context.Context, done <-chan struct{}) error {
	for {
		l.Drain()

		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			l.Drain()
			return nil
		case <-l.notify:
		}
	}
}

// Close stops Run and drops anything dispatched afterwards
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}
