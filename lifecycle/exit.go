// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/z5labs/otel-cli/internal/noop"
	"github.com/z5labs/otel-cli/internal/slogfield"
)

// DefaultHookTimeout bounds how long [Exit] waits for the exit hooks.
const DefaultHookTimeout = 30 * time.Second

// Registry holds the exit hooks of a process.
type Registry struct {
	log         *slog.Logger
	exit        func(int)
	hookTimeout time.Duration

	mu    sync.Mutex
	hooks multiHook
	code  int

	once sync.Once
	done chan struct{}
}

// RegistryOption configures a [Registry].
type RegistryOption func(*Registry)

// ExitFunc replaces [os.Exit] as the final step of [Registry.Exit].
func ExitFunc(f func(int)) RegistryOption {
	return func(r *Registry) {
		r.exit = f
	}
}

// HookTimeout sets how long [Registry.Exit] waits for the hooks to return.
func HookTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.hookTimeout = d
	}
}

// RegistryLogHandler sets the handler used to report failing hooks.
func RegistryLogHandler(h slog.Handler) RegistryOption {
	return func(r *Registry) {
		r.log = slog.New(h)
	}
}

// NewRegistry returns an empty [Registry].
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		log:         slog.New(noop.LogHandler{}),
		exit:        os.Exit,
		hookTimeout: DefaultHookTimeout,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnExit registers h to be run by [Registry.Exit]. Hooks run in
// registration order. Hooks registered once exiting has begun are ignored.
//
// A hook must not call [Registry.Exit] itself, it would wait on its own
// completion until the hook timeout.
func (r *Registry) OnExit(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Exit runs every registered hook, once per process, and then terminates.
// Concurrent callers all wait for the same hook run. The process ends with
// the first non-zero code passed to Exit, so a hook which fails and asks
// for a non-zero exit is never overridden by the caller which started the
// exit with 0.
//
// Hooks get a context which ends after the hook timeout. Callers wait a
// little longer than that so hooks reacting to the deadline can still
// record their exit code.
func (r *Registry) Exit(code int) {
	r.mu.Lock()
	if r.code == 0 {
		r.code = code
	}
	r.mu.Unlock()

	r.once.Do(func() {
		r.mu.Lock()
		hooks := make(multiHook, len(r.hooks))
		copy(hooks, r.hooks)
		r.mu.Unlock()

		go r.runHooks(code, hooks)
	})

	timer := time.NewTimer(r.hookTimeout + exitGrace(r.hookTimeout))
	defer timer.Stop()

	select {
	case <-r.done:
	case <-timer.C:
		r.log.Error("timed out waiting for exit hooks", slogfield.Duration("timeout", r.hookTimeout))
	}

	r.mu.Lock()
	code = r.code
	r.mu.Unlock()
	r.exit(code)
}

func exitGrace(hookTimeout time.Duration) time.Duration {
	return max(hookTimeout/10, 50*time.Millisecond)
}

func (r *Registry) runHooks(code int, hooks multiHook) {
	defer close(r.done)

	ctx, cancel := context.WithTimeout(context.Background(), r.hookTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, exitCodeKey{}, code)

	for _, h := range hooks {
		err := runHook(ctx, h)
		if err != nil {
			r.log.ErrorContext(ctx, "exit hook failed", slogfield.ExitCode(code), slogfield.Error(err))
		}
	}
}

func runHook(ctx context.Context, h Hook) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = HookPanicError{Value: v}
		}
	}()
	return h.Run(ctx)
}

var (
	defaultMu       sync.Mutex
	defaultRegistry = NewRegistry()
)

// Default returns the process wide [Registry] used by [OnExit] and [Exit].
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

// SetDefault replaces the process wide [Registry].
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = r
}

// OnExit registers h with the [Default] registry.
func OnExit(h Hook) {
	Default().OnExit(h)
}

// Exit runs the hooks of the [Default] registry and terminates with code.
func Exit(code int) {
	Default().Exit(code)
}
