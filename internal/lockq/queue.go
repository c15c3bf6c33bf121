// Package lockq provides an exclusive-access queue: an asynchronous mutex
// that runs critical sections one at a time in strict call order.
package lockq

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError is returned to the caller whose action panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("action panicked: %v", e.Value)
}

// Queue serializes actions. The zero value is ready to use.
//
// Each caller takes a ticket that waits on its predecessor's ticket, so
// actions run in the order InLock was called regardless of scheduler
// fairness. A failing action only affects its own caller.
type Queue struct {
	mu   sync.Mutex
	tail chan struct{} // closed when the most recent ticket is released
}

// InLock runs action once every earlier caller has finished and returns its
// result. If ctx ends while waiting, the action is skipped and ctx.Err() is
// returned; later callers still proceed in order.
func InLock[T any](ctx context.Context, q *Queue, action func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	prev, mine := q.ticket()
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Hand our slot on only once the predecessor is done.
			go func() {
				<-prev
				close(mine)
			}()
			return zero, ctx.Err()
		}
	}
	defer close(mine)

	return run(ctx, action)
}

// Do is InLock for actions without a result.
func (q *Queue) Do(ctx context.Context, action func(ctx context.Context) error) error {
	_, err := InLock(ctx, q, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

func (q *Queue) ticket() (prev, mine chan struct{}) {
	mine = make(chan struct{})
	q.mu.Lock()
	prev = q.tail
	q.tail = mine
	q.mu.Unlock()
	return prev, mine
}

func run[T any](ctx context.Context, action func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return action(ctx)
}
