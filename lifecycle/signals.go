// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package lifecycle

import (
	"context"
	"os"
	"os/signal"

	"github.com/z5labs/otel-cli/internal/slogfield"
)

// HandleSignals routes the given signals, or [TerminationSignals] if none
// are given, to [Registry.Exit] with code 0. Signal delivery stops once ctx
// is done or the returned func is called.
func (r *Registry) HandleSignals(ctx context.Context, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = TerminationSignals()
	}

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)

		select {
		case <-ctx.Done():
		case sig := <-ch:
			r.log.Info("received termination signal", slogfield.String("signal", sig.String()))
			r.Exit(0)
		}
	}()
	return cancel
}

// HandleSignals installs signal handling on the [Default] registry.
func HandleSignals(ctx context.Context, sigs ...os.Signal) (stop func()) {
	return Default().HandleSignals(ctx, sigs...)
}
