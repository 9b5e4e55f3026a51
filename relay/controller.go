// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package relay

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/z5labs/otel-cli/exporter"
	"github.com/z5labs/otel-cli/internal/executor"
	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/internal/try"
	"github.com/z5labs/otel-cli/tracedata"

	"github.com/benbjohnson/clock"
)

// Controller owns the exporter and the executor which bounds how many
// exports run at once.
type Controller struct {
	log       *slog.Logger
	exp       exporter.Exporter
	exec      *executor.Executor
	clock     clock.Clock
	grace     time.Duration
	terminate func(int)

	shutdownInitiated atomic.Bool
}

// NewController returns a [Controller] exporting through exp.
//
// The relevant options are [Concurrency], [ShutdownGracePeriod],
// [LogHandler], [Clock] and [Terminator].
func NewController(exp exporter.Exporter, opts ...Option) *Controller {
	o := newOptions(opts...)

	return &Controller{
		log:       slog.New(o.logHandler),
		exp:       exp,
		exec:      executor.New(o.concurrency, executor.LogHandler(o.logHandler)),
		clock:     o.clock,
		grace:     o.grace,
		terminate: o.terminate,
	}
}

// Submit schedules d for export and returns without waiting for it.
// Export failures are logged and never returned. The only error is
// [executor.ErrClosed] once [Controller.Shutdown] has been called.
func (c *Controller) Submit(ctx context.Context, d tracedata.TraceData) error {
	_, err := c.exec.Go(ctx, func(ctx context.Context) error {
		err := c.exp.Export(ctx, d)
		if err != nil {
			c.log.ErrorContext(
				ctx,
				"failed to export spans",
				slogfield.Strings("trace_ids", d.TraceIDs()),
				slogfield.Int("spans", len(d.Spans)),
				slogfield.Any("data", d),
				slogfield.Error(err),
			)
			return err
		}
		c.log.DebugContext(
			ctx,
			"exported spans",
			slogfield.Strings("trace_ids", d.TraceIDs()),
			slogfield.Int("spans", len(d.Spans)),
		)
		return nil
	})
	return err
}

// Shutdown stops accepting exports, waits for the pending ones to finish
// and then schedules process termination after the grace period. Only the
// first call does any work, later calls return nil immediately.
//
// If the pending exports cannot be drained before ctx ends the process is
// terminated with code 1 and a [ShutdownError] is returned.
func (c *Controller) Shutdown(ctx context.Context) error {
	if !c.shutdownInitiated.CompareAndSwap(false, true) {
		return nil
	}
	c.log.InfoContext(
		ctx,
		"shutting down",
		slogfield.Int("active", c.exec.Active()),
		slogfield.Int("queued", c.exec.Queued()),
	)

	err := c.exec.Close(ctx)
	if err != nil {
		c.log.ErrorContext(ctx, "failed to drain pending exports", slogfield.Error(err))
		c.terminate(1)
		return ShutdownError{Cause: err}
	}

	var cerr error
	try.Close(&cerr, c.exp)
	if cerr != nil {
		c.log.WarnContext(ctx, "failed to close exporter", slogfield.Error(cerr))
	}

	c.log.InfoContext(ctx, "drained pending exports", slogfield.Duration("grace_period", c.grace))
	c.clock.AfterFunc(c.grace, func() {
		c.terminate(0)
	})
	return nil
}

// ShutdownInitiated reports whether [Controller.Shutdown] has been called.
func (c *Controller) ShutdownInitiated() bool {
	return c.shutdownInitiated.Load()
}

// Active returns the number of exports currently running.
func (c *Controller) Active() int {
	return c.exec.Active()
}

// Queued returns the number of exports waiting for a free slot.
func (c *Controller) Queued() int {
	return c.exec.Queued()
}
