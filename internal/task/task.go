// Package task models simulated latency as a cancellable delayed action.
package task

import (
	"context"
	"sync"
	"time"
)

// Task applies a single action after a delay unless cancelled first
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// After starts a task that calls apply once d has elapsed.
// apply never runs if ctx is done or Cancel is called before the delay ends.
func After(ctx context.Context, d time.Duration, apply func()) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer cancel()

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			t.setErr(ctx.Err())
		case <-timer.C:
			apply()
		}
	}()

	return t
}

// Cancel aborts the task if apply has not run yet
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the task has applied or been cancelled
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes; it returns the cancellation cause if apply did not run
func (t *Task) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}
