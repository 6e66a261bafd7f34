package semaphore

import (
	"container/list"
	"context"
	"sync"
)

// Semaphore is a counting semaphore with a mutable ceiling and strict
// FIFO wakeup order. The N-th caller to block in Acquire is the N-th to
// be woken, regardless of how Release calls interleave with new arrivals.
type Semaphore struct {
	mu        sync.Mutex
	available int
	max       int
	waiters   *list.List // of chan struct{}
}

// New creates a semaphore with maxPermits permits available.
// A maxPermits below 1 is raised to 1.
func New(maxPermits int) *Semaphore {
	if maxPermits < 1 {
		maxPermits = 1
	}
	return &Semaphore{
		available: maxPermits,
		max:       maxPermits,
		waiters:   list.New(),
	}
}

// Acquire obtains a permit, blocking until one is available or ctx is
// done. On cancellation the caller's queue slot is surrendered; if a
// permit was handed to the caller in the same instant, it is returned.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.available > 0 && s.waiters.Len() == 0 {
		s.available--
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := s.waiters.PushBack(ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		select {
		case <-ready:
			// Granted concurrently with cancellation; hand the permit
			// to the next waiter instead of losing it. The caller is
			// still cancelled and must not proceed as a holder.
			s.releaseLocked()
			s.mu.Unlock()
			return ctx.Err()
		default:
		}
		s.waiters.Remove(elem)
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Release returns a permit. The available count is clamped so it never
// exceeds the current ceiling; if waiters are queued the permit is
// handed directly to the longest-waiting one.
func (s *Semaphore) Release() {
	s.mu.Lock()
	s.releaseLocked()
	s.mu.Unlock()
}

func (s *Semaphore) releaseLocked() {
	if front := s.waiters.Front(); front != nil {
		s.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	if s.available < s.max {
		s.available++
	}
}

// Available returns the point-in-time count of unclaimed permits.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Waiting returns the point-in-time count of blocked Acquire callers.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}

// MaxPermits returns the current ceiling.
func (s *Semaphore) MaxPermits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// SetMaxPermits changes the ceiling. Raising it by delta grants delta
// permits immediately, longest-waiting callers first, remainder added to
// the available count. Lowering it never revokes permits already out;
// the available count drifts down as Release calls are clamped to the
// new ceiling.
func (s *Semaphore) SetMaxPermits(newMax int) {
	if newMax < 1 {
		newMax = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delta := newMax - s.max
	s.max = newMax

	for delta > 0 {
		front := s.waiters.Front()
		if front == nil {
			break
		}
		s.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		delta--
	}
	if delta > 0 {
		s.available += delta
		if s.available > s.max {
			s.available = s.max
		}
	}
}

// ReleaseAll wakes every currently queued waiter unconditionally,
// bypassing ceiling bookkeeping. It is a teardown primitive: the woken
// callers collectively hold more live permits than the ceiling allows,
// which paced Release calls then absorb via clamping.
func (s *Semaphore) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for front := s.waiters.Front(); front != nil; front = s.waiters.Front() {
		s.waiters.Remove(front)
		close(front.Value.(chan struct{}))
	}
}
