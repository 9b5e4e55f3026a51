// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/z5labs/otel-cli/internal/slogfield"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// Runtime serves a relay handler until its context ends.
type Runtime struct {
	host   string
	port   uint
	listen func(string, string) (net.Listener, error)

	log *slog.Logger
	h   http.Handler

	mu        sync.Mutex
	addr      net.Addr
	ready     chan struct{}
	readyOnce sync.Once
}

// NewRuntime returns a [Runtime] serving h.
//
// The relevant options are [Host], [Port] and [LogHandler].
func NewRuntime(h http.Handler, opts ...Option) *Runtime {
	o := newOptions(opts...)

	return &Runtime{
		host:   o.host,
		port:   o.port,
		listen: net.Listen,
		log:    slog.New(o.logHandler),
		h:      h,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the runtime is listening for connections.
func (rt *Runtime) Ready() <-chan struct{} {
	return rt.ready
}

// Addr returns the address the runtime is listening on, or nil
// if it has not started listening yet.
func (rt *Runtime) Addr() net.Addr {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.addr
}

// Run listens on the configured host and port and serves connections
// until ctx ends, at which point the server is gracefully shut down.
// Run may be called again after it returns, Ready stays closed.
func (rt *Runtime) Run(ctx context.Context) error {
	ls, err := rt.listen("tcp", net.JoinHostPort(rt.host, strconv.FormatUint(uint64(rt.port), 10)))
	if err != nil {
		rt.log.ErrorContext(ctx, "failed to listen for connections", slogfield.Error(err))
		return err
	}

	rt.mu.Lock()
	rt.addr = ls.Addr()
	rt.mu.Unlock()
	rt.readyOnce.Do(func() { close(rt.ready) })

	s := &http.Server{
		Handler: otelhttp.NewHandler(
			rt.h,
			"relay",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		),
	}
	s.SetKeepAlivesEnabled(false)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		defer rt.log.Info("relay stopped")

		rt.log.Info("stopping relay")
		return s.Shutdown(ctx)
	})
	g.Go(func() error {
		rt.log.Info("relay listening", slogfield.Endpoint(addrString(ls.Addr())))
		return s.Serve(ls)
	})

	err = g.Wait()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	rt.log.Error("relay encountered unexpected error", slogfield.Error(err))
	return err
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
