package loaddata

import (
	"context"
	"sync"
	"time"
)

// Resolver is a future for primary image IDs: the decoding pipeline resolves
// a key when the ID becomes available, and waiters block until then or until
// their budget runs out. Replaces poll-until-present with an explicit,
// testable wait.
type Resolver struct {
	mu      sync.Mutex
	values  map[Key]string
	waiters map[Key]chan struct{}
}

// NewResolver builds an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		values:  make(map[Key]string),
		waiters: make(map[Key]chan struct{}),
	}
}

// Resolve records the image ID for a key and wakes every waiter. The first
// resolution wins; later calls for the same key are ignored.
func (r *Resolver) Resolve(key Key, imageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, done := r.values[key]; done {
		return
	}
	r.values[key] = imageID
	if waiter, ok := r.waiters[key]; ok {
		close(waiter)
		delete(r.waiters, key)
	}
}

// Await blocks until the key resolves, the budget elapses, or ctx is
// cancelled. A miss is reported via ok=false, never an error; callers give
// up silently by design.
func (r *Resolver) Await(ctx context.Context, key Key, budget time.Duration) (string, bool) {
	r.mu.Lock()
	if id, done := r.values[key]; done {
		r.mu.Unlock()
		return id, true
	}
	waiter, ok := r.waiters[key]
	if !ok {
		waiter = make(chan struct{})
		r.waiters[key] = waiter
	}
	r.mu.Unlock()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case <-waiter:
		r.mu.Lock()
		id := r.values[key]
		r.mu.Unlock()
		return id, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}
