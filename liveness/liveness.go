// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package liveness watches the process which started the relay and shuts
// the relay down once that process is gone.
package liveness

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/z5labs/otel-cli/internal/noop"
	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/lifecycle"

	"github.com/benbjohnson/clock"
)

// DefaultInterval is how often the parent process is probed.
const DefaultInterval = 5 * time.Second

// State of a [Monitor].
type State int32

const (
	// Watching means the parent was present at the last probe.
	Watching State = iota

	// Terminated is final, the target has been shut down.
	Terminated
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case Watching:
		return "Watching"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Shutdowner is stopped by the [Monitor] once the parent is gone.
type Shutdowner interface {
	Shutdown(context.Context) error
}

type options struct {
	interval   time.Duration
	prober     Prober
	clock      clock.Clock
	terminate  func(int)
	logHandler slog.Handler
	signals    []os.Signal
	registry   *lifecycle.Registry
}

// Option configures a [Monitor].
type Option func(*options)

// Interval sets how often the parent process is probed.
func Interval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithProber replaces the [ProcessProber].
func WithProber(p Prober) Option {
	return func(o *options) {
		o.prober = p
	}
}

// Clock
func Clock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// Terminator replaces [lifecycle.Exit] as the way the process ends.
func Terminator(f func(code int)) Option {
	return func(o *options) {
		o.terminate = f
	}
}

// LogHandler
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Signals overrides [lifecycle.TerminationSignals].
func Signals(sigs ...os.Signal) Option {
	return func(o *options) {
		o.signals = sigs
	}
}

// Registry sets the exit hook registry, [lifecycle.Default] otherwise.
func Registry(r *lifecycle.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// Monitor polls a parent process and shuts its target down once the
// parent has exited or been replaced.
type Monitor struct {
	target    Shutdowner
	ppid      int32
	interval  time.Duration
	prober    Prober
	clock     clock.Clock
	terminate func(int)
	log       *slog.Logger
	signals   []os.Signal
	registry  *lifecycle.Registry

	state atomic.Int32
}

// NewMonitor returns a [Monitor] watching the process identified by
// parentPID on behalf of target.
func NewMonitor(target Shutdowner, parentPID int32, opts ...Option) *Monitor {
	o := &options{
		interval:   DefaultInterval,
		prober:     ProcessProber{},
		clock:      clock.New(),
		terminate:  lifecycle.Exit,
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = lifecycle.Default()
	}

	return &Monitor{
		target:    target,
		ppid:      parentPID,
		interval:  o.interval,
		prober:    o.prober,
		clock:     o.clock,
		terminate: o.terminate,
		log:       slog.New(o.logHandler),
		signals:   o.signals,
		registry:  o.registry,
	}
}

// State returns the current state of m.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Run watches the parent process until it goes away or ctx ends.
// A parent pid of 0 disables watching and Run returns immediately.
//
// Run also registers an exit hook which shuts the target down and routes
// termination signals to [lifecycle.Registry.Exit], so the target is
// drained however the process ends.
func (m *Monitor) Run(ctx context.Context) error {
	if m.ppid == 0 {
		m.log.DebugContext(ctx, "no parent process to watch")
		return nil
	}
	log := m.log.With(slogfield.PID(m.ppid))

	m.registry.OnExit(lifecycle.HookFunc(func(ctx context.Context) error {
		return m.target.Shutdown(ctx)
	}))
	stop := m.registry.HandleSignals(ctx, m.signals...)
	defer stop()

	initial, err := m.prober.Probe(ctx, m.ppid)
	if err != nil {
		log.WarnContext(ctx, "parent process is already gone", slogfield.Error(err))
		m.terminated(ctx)
		return nil
	}
	log.InfoContext(ctx, "watching parent process", slogfield.Duration("interval", m.interval))

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		snap, err := m.prober.Probe(ctx, m.ppid)
		if ctx.Err() != nil {
			return nil
		}

		var unreachable ParentUnreachableError
		switch {
		case errors.As(err, &unreachable):
			log.InfoContext(ctx, "parent process exited", slogfield.Error(err))
		case err != nil:
			log.WarnContext(ctx, "failed to probe parent process", slogfield.Error(err))
		case snap != initial:
			log.InfoContext(ctx, "parent process was replaced")
		default:
			continue
		}

		m.terminated(ctx)
		return nil
	}
}

func (m *Monitor) terminated(ctx context.Context) {
	if !m.state.CompareAndSwap(int32(Watching), int32(Terminated)) {
		return
	}

	err := m.target.Shutdown(ctx)
	if err != nil {
		m.log.ErrorContext(ctx, "failed to shut down", slogfield.Error(err))
	}
	m.terminate(0)
}
