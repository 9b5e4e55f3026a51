// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package executor provides a concurrency limited task runner with a FIFO
// overflow queue and a drain on close contract.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/z5labs/otel-cli/internal/noop"
	"github.com/z5labs/otel-cli/internal/try"
)

// Func is a unit of work which transforms an input into an output.
type Func[I, O any] func(context.Context, I) (O, error)

// Task is a unit of work which only reports success or failure.
type Task func(context.Context) error

// ClosedError is returned when a task is submitted after [Executor.Close]
// has been called. The task is never started.
type ClosedError struct{}

// Error implements the [error] interface.
func (ClosedError) Error() string {
	return "executor: closed"
}

// ErrClosed is the [ClosedError] value returned by [Execute].
var ErrClosed = ClosedError{}

// DrainError occurs when the [context.Context] given to [Executor.Close]
// ends before every running and queued task has completed.
type DrainError struct {
	Active int
	Queued int
	Cause  error
}

// Error implements the [error] interface.
func (e DrainError) Error() string {
	return fmt.Sprintf("executor: failed to drain %d active and %d queued tasks: %s", e.Active, e.Queued, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DrainError) Unwrap() error {
	return e.Cause
}

type item struct {
	ctx context.Context
	run func(context.Context)
}

// Executor runs at most a fixed number of tasks concurrently. Tasks which
// arrive while the executor is at capacity wait in a FIFO queue.
//
// The zero value is not usable, use [New].
type Executor struct {
	limit int
	log   *slog.Logger

	mu      sync.Mutex
	active  int
	queue   []*item
	closed  bool
	drained chan struct{}
}

// Option configures an [Executor].
type Option func(*Executor)

// LogHandler sets the handler used to report tasks which panicked.
func LogHandler(h slog.Handler) Option {
	return func(e *Executor) {
		e.log = slog.New(h)
	}
}

// New returns an [Executor] which runs at most limit tasks at once.
// A limit less than 1 is treated as 1.
func New(limit int, opts ...Option) *Executor {
	if limit < 1 {
		limit = 1
	}
	e := &Executor{
		limit:   limit,
		log:     slog.New(noop.LogHandler{}),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute submits f bound to input. The returned [Future] completes with
// f's result once f has run. If e has been closed, [ErrClosed] is returned
// and f is never called.
//
// f is called with a context which carries ctx's values but is never
// cancelled by the submitter.
func Execute[I, O any](ctx context.Context, e *Executor, f Func[I, O], input I) (*Future[O], error) {
	fut := newFuture[O]()
	it := &item{
		ctx: context.WithoutCancel(ctx),
		run: func(ctx context.Context) {
			var (
				out O
				err error
			)
			defer func() {
				var perr try.PanicError
				if errors.As(err, &perr) {
					e.log.ErrorContext(ctx, "recovered from panic in task", slog.Any("error", err))
				}
				fut.complete(out, err)
			}()
			defer try.Recover(&err)

			out, err = f(ctx, input)
		},
	}

	err := e.submit(it)
	if err != nil {
		return nil, err
	}
	return fut, nil
}

// Go is a convenience wrapper around [Execute] for tasks without an output.
func (e *Executor) Go(ctx context.Context, t Task) (*Future[struct{}], error) {
	return Execute(ctx, e, func(ctx context.Context, _ struct{}) (struct{}, error) {
		return struct{}{}, t(ctx)
	}, struct{}{})
}

func (e *Executor) submit(it *item) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.active >= e.limit {
		e.queue = append(e.queue, it)
		return nil
	}
	e.active++
	go e.work(it)
	return nil
}

// work runs it and then keeps running queued items for as long as the
// queue is non-empty. The slot is only released once the queue is empty.
func (e *Executor) work(it *item) {
	for it != nil {
		it.run(it.ctx)
		it = e.next()
	}
}

// next either hands the current slot to the oldest queued item or
// releases the slot. Both happen under the same lock so a concurrent
// submit can never observe a free slot while the queue is non-empty.
func (e *Executor) next() *item {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) > 0 {
		it := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		return it
	}

	e.active--
	if e.closed && e.active == 0 {
		e.signalDrained()
	}
	return nil
}

// must be called with e.mu held
func (e *Executor) signalDrained() {
	select {
	case <-e.drained:
	default:
		close(e.drained)
	}
}

// Close stops e from accepting new tasks and blocks until every running
// and queued task has completed. If ctx ends first a [DrainError] is
// returned, the tasks keep running regardless.
//
// Close may be called more than once, every call waits for the same drain.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	if e.active == 0 {
		e.signalDrained()
	}
	e.mu.Unlock()

	// a finished drain wins over an ended ctx
	select {
	case <-e.drained:
		return nil
	default:
	}

	select {
	case <-e.drained:
		return nil
	case <-ctx.Done():
		e.mu.Lock()
		defer e.mu.Unlock()
		return DrainError{
			Active: e.active,
			Queued: len(e.queue),
			Cause:  ctx.Err(),
		}
	}
}

// Active returns the number of tasks currently running.
func (e *Executor) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Queued returns the number of tasks waiting for a free slot.
func (e *Executor) Queued() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Closed reports whether [Executor.Close] has been called.
func (e *Executor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Limit returns the maximum number of concurrently running tasks.
func (e *Executor) Limit() int {
	return e.limit
}

// IsClosed reports whether err is, or wraps, [ErrClosed].
func IsClosed(err error) bool {
	return errors.As(err, new(ClosedError))
}
