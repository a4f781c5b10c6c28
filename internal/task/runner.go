// Package task runs blocking mail operations off the caller's goroutine
// and reports their progress and outcome through callbacks.
//
// Every callback goes through the runner's Dispatcher, so a caller that
// owns a Loop sees all callbacks on its own goroutine.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Operation names the kind of work a unit performs
type Operation string

const (
	OpConnect  Operation = "connect"
	OpFetch    Operation = "fetch"
	OpSend     Operation = "send"
	OpClassify Operation = "classify"
)

// WorkUnit is one blocking operation plus its sinks. Do runs on its own
// goroutine. Exactly one of OnResult and OnError is called, exactly once.
type WorkUnit[T any] struct {
	Operation Operation
	Do        func(ctx context.Context, progress func(string)) (T, error)

	OnProgress func(string)
	OnResult   func(T)
	OnError    func(error)
}

// Runner starts work units and tracks the outstanding ones
type Runner struct {
	ctx        context.Context
	dispatcher Dispatcher
	logger     *logrus.Logger

	mu       sync.RWMutex
	timeouts map[Operation]time.Duration

	wg sync.WaitGroup
}

// NewRunner creates a runner whose units inherit ctx
func NewRunner(ctx context.Context, dispatcher Dispatcher, logger *logrus.Logger) *Runner {
	if dispatcher == nil {
		dispatcher = Inline{}
	}
	return &Runner{
		ctx:        ctx,
		dispatcher: dispatcher,
		logger:     logger,
		timeouts:   make(map[Operation]time.Duration),
	}
}

// SetTimeout bounds every later unit of op. Zero removes the bound.
func (r *Runner) SetTimeout(op Operation, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d <= 0 {
		delete(r.timeouts, op)
		return
	}
	r.timeouts[op] = d
}

func (r *Runner) timeout(op Operation) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timeouts[op]
}

// Wait blocks until every submitted unit has finished running. Sinks
// queued on a Loop may still be pending.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Submit starts w on a new goroutine and returns immediately
func Submit[T any](r *Runner, w WorkUnit[T]) *Handle {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d := r.timeout(w.Operation); d > 0 {
		ctx, cancel = context.WithTimeout(r.ctx, d)
	} else {
		ctx, cancel = context.WithCancel(r.ctx)
	}

	h := &Handle{
		ID:        uuid.New().String(),
		Operation: w.Operation,
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	log := r.logger.WithFields(logrus.Fields{
		"task": h.ID,
		"op":   w.Operation,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		start := time.Now()
		log.Debug("Task started")

		// progressMu orders every queued notice before the terminal callback
		var (
			progressMu sync.Mutex
			finished   bool
		)
		progress := func(msg string) {
			if w.OnProgress == nil {
				return
			}
			progressMu.Lock()
			defer progressMu.Unlock()
			if finished {
				return
			}
			r.deliver(h, log, func() { w.OnProgress(msg) }, false)
		}

		result, err := run(ctx, w, progress)
		progressMu.Lock()
		finished = true
		progressMu.Unlock()

		entry := log.WithField("duration", time.Since(start).String())
		if err != nil {
			entry.WithError(err).Debug("Task failed")
		} else {
			entry.Debug("Task finished")
		}

		r.deliver(h, log, func() {
			switch {
			case err != nil && w.OnError != nil:
				w.OnError(err)
			case err != nil:
				log.WithError(err).Error("Task failed with no error handler")
			case w.OnResult != nil:
				w.OnResult(result)
			}
		}, true)
	}()

	return h
}

// run calls Do, turning a panic into an error
func run[T any](ctx context.Context, w WorkUnit[T], progress func(string)) (result T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			result, err = zero, fmt.Errorf("%s task panicked: %v", w.Operation, rec)
		}
	}()
	if w.Do == nil {
		return result, fmt.Errorf("%s task has nothing to do", w.Operation)
	}
	return w.Do(ctx, progress)
}

// deliver hands fn to the dispatcher. A detached handle drops fn; a
// panicking sink is logged. The terminal delivery closes the handle.
func (r *Runner) deliver(h *Handle, log *logrus.Entry, fn func(), terminal bool) {
	r.dispatcher.Dispatch(func() {
		if terminal {
			defer close(h.done)
		}
		if h.detached.Load() {
			return
		}
		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", fmt.Sprint(rec)).Error("Task callback panicked")
			}
		}()
		fn()
	})
}
