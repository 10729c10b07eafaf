package core

// limiter.go bounds concurrent file workers within one dataset, keeping
// open file handles and in-flight work at a fixed ceiling regardless of
// directory size.

import "context"

// workerGate is a semaphore over file workers. A slot must be released
// exactly once per successful Acquire.
type workerGate struct {
	sem chan struct{}
}

func newWorkerGate(size int) *workerGate {
	if size <= 0 {
		size = 1
	}
	return &workerGate{sem: make(chan struct{}, size)}
}

// Acquire blocks until a slot frees up or ctx is done.
func (g *workerGate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (g *workerGate) Release() {
	<-g.sem
}

// Active returns the number of occupied slots.
func (g *workerGate) Active() int {
	return len(g.sem)
}
