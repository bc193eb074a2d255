// Package bounded runs a unit of work under a wall-clock deadline.
package bounded

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched by errors.Is when the deadline elapsed before the
// work completed.
var ErrTimeout = errors.New("bounded: deadline exceeded")

// TimeoutError reports a unit of work that did not finish in time.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("work did not complete within %s", e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PanicError wraps a value recovered from a panicking unit of work.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work panicked: %v", e.Value)
}

type outcome[T any] struct {
	value T
	err   error
}

// Run executes work in its own goroutine and waits at most timeout for it.
//
// The context handed to work is cancelled when Run returns, so work that
// honours it stops promptly; work that ignores it keeps running in the
// background and its result is discarded. The outcome channel has room for
// exactly one value, so a late finisher never blocks and never touches
// anything the caller can observe.
//
// Run returns a *TimeoutError when the deadline passes first, work's own
// error when work fails first, and the parent's error when ctx is
// cancelled first. A non-positive timeout disables the deadline.
func Run[T any](ctx context.Context, timeout time.Duration, work func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		var o outcome[T]
		defer func() {
			if r := recover(); r != nil {
				o = outcome[T]{err: &PanicError{Value: r}}
			}
			done <- o
		}()
		o.value, o.err = work(workCtx)
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case o := <-done:
		if o.err != nil {
			return zero, o.err
		}
		return o.value, nil
	case <-deadline:
		return zero, &TimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
