// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package relay implements the background process which accepts spans over
// HTTP and exports them with bounded concurrency while the submitting
// processes exit immediately.
package relay

import (
	"log/slog"
	"time"

	"github.com/z5labs/otel-cli/internal/noop"
	"github.com/z5labs/otel-cli/lifecycle"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultHost is the interface the relay listens on.
	DefaultHost = "localhost"

	// DefaultPort is the port the relay listens on.
	DefaultPort = 7777

	// DefaultConcurrency is the number of exports which may run at once.
	DefaultConcurrency = 10

	// DefaultShutdownGracePeriod is how long the relay keeps running after
	// a successful drain, giving the shutdown response time to be written.
	DefaultShutdownGracePeriod = time.Second

	// DefaultMaxBodyBytes bounds the size of an export request body.
	DefaultMaxBodyBytes = 4 << 20
)

type options struct {
	logHandler   slog.Handler
	concurrency  int
	grace        time.Duration
	clock        clock.Clock
	terminate    func(int)
	maxBodyBytes int64
	host         string
	port         uint
}

// Option configures a [Controller], the handler returned by [NewHandler]
// or a [Runtime]. Options which do not apply to the value being built are
// ignored.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		logHandler:   noop.LogHandler{},
		concurrency:  DefaultConcurrency,
		grace:        DefaultShutdownGracePeriod,
		clock:        clock.New(),
		terminate:    lifecycle.Exit,
		maxBodyBytes: DefaultMaxBodyBytes,
		host:         DefaultHost,
		port:         DefaultPort,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LogHandler
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Concurrency sets how many exports the [Controller] runs at once.
func Concurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// ShutdownGracePeriod sets the delay between a successful drain and
// process termination.
func ShutdownGracePeriod(d time.Duration) Option {
	return func(o *options) {
		o.grace = d
	}
}

// Clock replaces the wall clock used to schedule termination.
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

// MaxBodyBytes bounds the size of an export request body.
func MaxBodyBytes(n int64) Option {
	return func(o *options) {
		o.maxBodyBytes = n
	}
}

// Host sets the interface the [Runtime] listens on.
//
// Default host is localhost.
func Host(host string) Option {
	return func(o *options) {
		o.host = host
	}
}

// Port sets the port the [Runtime] listens on. Port 0 picks a free port,
// see [Runtime.Addr].
//
// Default port is 7777.
func Port(port uint) Option {
	return func(o *options) {
		o.port = port
	}
}
