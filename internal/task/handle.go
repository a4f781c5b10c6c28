package task

import (
	"context"
	"sync/atomic"
)

// Handle identifies one submitted unit. Callers key results by handle,
// not by completion order.
type Handle struct {
	ID        string
	Operation Operation

	done     chan struct{}
	cancel   context.CancelFunc
	detached atomic.Bool
}

// Done is closed once the terminal callback has run, or was skipped
// because the handle is detached. It never closes if the dispatcher
// drops the callback, as a closed Loop does.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until Done is closed or ctx ends
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel cancels the unit's context. Whether the operation stops early
// depends on the operation; one sink still fires.
func (h *Handle) Cancel() {
	h.cancel()
}

// Detach stops further callbacks. The unit keeps running to completion.
func (h *Handle) Detach() {
	h.detached.Store(true)
}

// Detached reports whether Detach was called
func (h *Handle) Detached() bool {
	return h.detached.Load()
}
