package service

import (
	"context"
	"sync"
)

// sessionLocks serializes turn processing per session. Waiters queue in
// FIFO order so concurrent submissions for one session are processed in
// arrival order; distinct sessions never contend.
type sessionLocks struct {
	mu     sync.Mutex
	queues map[string][]chan struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{queues: make(map[string][]chan struct{})}
}

// acquire blocks until the caller holds the lock for id or ctx expires.
// The returned release function must be called exactly once.
func (l *sessionLocks) acquire(ctx context.Context, id string) (func(), error) {
	ready := make(chan struct{})

	l.mu.Lock()
	l.queues[id] = append(l.queues[id], ready)
	if len(l.queues[id]) == 1 {
		close(ready) // head of the queue holds the lock
	}
	l.mu.Unlock()

	select {
	case <-ready:
		return func() { l.release(id) }, nil
	case <-ctx.Done():
		l.abandon(id, ready)
		return nil, ctx.Err()
	}
}

// release hands the lock to the next queued waiter, if any.
func (l *sessionLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.queues[id]
	if len(q) == 0 {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(l.queues, id)
		return
	}
	l.queues[id] = q
	close(q[0])
}

// abandon removes a waiter that gave up. If the waiter became the holder
// between ctx expiry and this call, the lock is passed on.
func (l *sessionLocks) abandon(id string, ready chan struct{}) {
	l.mu.Lock()

	q := l.queues[id]
	for i, ch := range q {
		if ch != ready {
			continue
		}
		if i == 0 {
			// Became the holder while giving up; release to the next waiter.
			l.mu.Unlock()
			l.release(id)
			return
		}
		l.queues[id] = append(q[:i], q[i+1:]...)
		break
	}
	l.mu.Unlock()
}

// pending returns the number of queued entries for id, holder included.
func (l *sessionLocks) pending(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues[id])
}
