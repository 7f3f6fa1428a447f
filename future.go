package leaderboard

import "context"

// Future is a handle to a result produced by a goroutine performing I/O
// against the store. Every Leaderboard/PeriodicLeaderboard operation that
// talks to the store returns one instead of blocking the caller directly,
// per spec.md §4.1/§9.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// newFuture starts fn in its own goroutine and returns a Future that
// resolves when fn returns.
func newFuture[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		f.val, f.err = fn()
		close(f.done)
	}()
	return f
}

// resolvedFuture wraps an already-computed result, for call sites that can
// fail fast (e.g. validation errors) without spawning a goroutine.
func resolvedFuture[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// Get blocks until the future resolves or ctx is done, whichever comes
// first. A context cancellation returns ctx.Err(), not ErrInterrupted —
// ErrInterrupted is reserved for a retry loop's own backoff being cut short.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks uninterruptibly until the future resolves.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done returns a channel closed when the future resolves, for use in a
// select alongside other events.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
