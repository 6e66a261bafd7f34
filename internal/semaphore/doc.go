// Package semaphore provides the FIFO counting semaphore that bounds
// how many per-video pipeline invocations run concurrently.
//
// Unlike a plain buffered channel, the ceiling is mutable at runtime:
// the scheduler resizes it as system resources fluctuate. Waiters are
// served strictly in arrival order, and teardown can flush the entire
// wait queue at once via ReleaseAll.
package semaphore
