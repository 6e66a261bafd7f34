package semaphore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func acquireOrFatal(t *testing.T, s *Semaphore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
}

func TestNewClampsMinimum(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"normal", 4, 4},
		{"zero raised to one", 0, 1},
		{"negative raised to one", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.max)
			if got := s.MaxPermits(); got != tt.want {
				t.Errorf("MaxPermits() = %d, want %d", got, tt.want)
			}
			if got := s.Available(); got != tt.want {
				t.Errorf("Available() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAcquireRelease(t *testing.T) {
	s := New(2)

	acquireOrFatal(t, s)
	acquireOrFatal(t, s)

	if got := s.Available(); got != 0 {
		t.Errorf("Available() after two acquires = %d, want 0", got)
	}

	s.Release()
	if got := s.Available(); got != 1 {
		t.Errorf("Available() after release = %d, want 1", got)
	}
}

func TestReleaseClampsToCeiling(t *testing.T) {
	s := New(2)

	// Releasing without a matching acquire must never push the
	// available count past the ceiling.
	s.Release()
	s.Release()

	if got := s.Available(); got != 2 {
		t.Errorf("Available() = %d, want 2", got)
	}
}

func TestAvailableNeverNegative(t *testing.T) {
	s := New(1)
	acquireOrFatal(t, s)

	if got := s.Available(); got != 0 {
		t.Errorf("Available() = %d, want 0", got)
	}
}

func TestFIFOWakeupOrder(t *testing.T) {
	s := New(1)
	acquireOrFatal(t, s)

	const waiters = 5

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := s.Acquire(context.Background()); err != nil {
				t.Errorf("waiter %d: Acquire() error = %v", n, err)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)

		// Let each goroutine join the queue before the next starts
		// so arrival order is deterministic.
		waitForWaiting(t, s, i+1)
	}

	for i := 0; i < waiters; i++ {
		s.Release()
		waitForOrderLen(t, &mu, &order, i+1)
	}
	wg.Wait()

	for i, n := range order {
		if n != i {
			t.Fatalf("wakeup order = %v, want sequential arrival order", order)
		}
	}
}

func TestSetMaxPermitsRaiseWakesWaiters(t *testing.T) {
	s := New(1)
	acquireOrFatal(t, s)

	var wg sync.WaitGroup
	woken := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			woken <- struct{}{}
		}()
	}
	waitForWaiting(t, s, 2)

	// Raising by 3 should wake both waiters and leave one extra permit.
	s.SetMaxPermits(4)
	wg.Wait()

	if len(woken) != 2 {
		t.Fatalf("woken waiters = %d, want 2", len(woken))
	}
	if got := s.Available(); got != 1 {
		t.Errorf("Available() = %d, want 1", got)
	}
	if got := s.Waiting(); got != 0 {
		t.Errorf("Waiting() = %d, want 0", got)
	}
}

func TestSetMaxPermitsLowerDoesNotRevoke(t *testing.T) {
	s := New(4)
	acquireOrFatal(t, s)
	acquireOrFatal(t, s)
	// available = 2, two permits outstanding

	s.SetMaxPermits(1)

	if got := s.Available(); got != 2 {
		t.Errorf("Available() immediately after lowering = %d, want 2 (not revoked)", got)
	}

	// Returned permits are clamped to the new ceiling: the available
	// count drifts down to 1, never back up to the old ceiling.
	s.Release()
	s.Release()

	if got := s.Available(); got != 1 {
		t.Errorf("Available() after outstanding permits returned = %d, want 1", got)
	}
}

func TestReleaseAllWakesEveryWaiterOnce(t *testing.T) {
	s := New(1)
	acquireOrFatal(t, s)

	const waiters = 4
	var wg sync.WaitGroup
	woken := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			woken <- struct{}{}
		}()
	}
	waitForWaiting(t, s, waiters)

	s.ReleaseAll()
	wg.Wait()

	if len(woken) != waiters {
		t.Fatalf("woken waiters = %d, want %d", len(woken), waiters)
	}
	if got := s.Waiting(); got != 0 {
		t.Errorf("Waiting() = %d, want 0", got)
	}
	// ReleaseAll bypasses the available count entirely.
	if got := s.Available(); got != 0 {
		t.Errorf("Available() = %d, want 0", got)
	}
}

func TestAcquireCancellation(t *testing.T) {
	s := New(1)
	acquireOrFatal(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Acquire(ctx)
	}()
	waitForWaiting(t, s, 1)

	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled Acquire did not return")
	}

	if got := s.Waiting(); got != 0 {
		t.Errorf("Waiting() after cancellation = %d, want 0", got)
	}

	// The queue slot must be gone: a release now lands in available.
	s.Release()
	if got := s.Available(); got != 1 {
		t.Errorf("Available() = %d, want 1", got)
	}
}

func TestCancelReleaseRaceNeverGrantsTwice(t *testing.T) {
	// A waiter whose cancellation races the Release that woke it must
	// not come out holding a permit while the permit is also passed on:
	// either it was granted (and owns the permit) or it was cancelled
	// (and the permit is free), never both.
	for i := 0; i < 200; i++ {
		s := New(1)
		acquireOrFatal(t, s)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Acquire(ctx)
		}()
		waitForWaiting(t, s, 1)

		go cancel()
		s.Release()

		err := <-errCh
		if err == nil {
			// Granted: the waiter owns the sole permit.
			if got := s.Available(); got != 0 {
				t.Fatalf("iteration %d: Acquire() = nil but Available() = %d, want 0", i, got)
			}
			s.Release()
		} else if err != context.Canceled {
			t.Fatalf("iteration %d: Acquire() error = %v, want nil or context.Canceled", i, err)
		}

		// Exactly one permit exists either way.
		if got := s.Available(); got != 1 {
			t.Fatalf("iteration %d: Available() = %d, want 1", i, got)
		}
		acquireOrFatal(t, s)
		if got := s.Available(); got != 0 {
			t.Fatalf("iteration %d: Available() after re-acquire = %d, want 0", i, got)
		}
	}
}

func TestCeilingNeverExceededUnderChurn(t *testing.T) {
	s := New(3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := s.Acquire(context.Background()); err != nil {
					t.Errorf("Acquire() error = %v", err)
					return
				}
				s.Release()

				if got := s.Available(); got < 0 || got > 3 {
					t.Errorf("Available() = %d, want within [0, 3]", got)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := s.Available(); got != 3 {
		t.Errorf("Available() after churn = %d, want 3", got)
	}
}

func waitForWaiting(t *testing.T, s *Semaphore, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Waiting() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d queued waiters (have %d)", n, s.Waiting())
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForOrderLen(t *testing.T, mu *sync.Mutex, order *[]int, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		l := len(*order)
		mu.Unlock()
		if l >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d wakeups (have %d)", n, l)
		}
		time.Sleep(time.Millisecond)
	}
}
