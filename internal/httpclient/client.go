// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpclient builds the http.Client used by the OTLP/HTTP and
// relay exporters.
package httpclient

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/z5labs/otel-cli/internal/noop"
	"github.com/z5labs/otel-cli/internal/slogfield"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Breaker configures a circuit breaker in front of the transport.
type Breaker struct {
	// TripAfter is the number of consecutive failures which open the
	// circuit. Zero means 5.
	TripAfter uint32

	// OpenTimeout is how long the circuit stays open before letting
	// HalfOpenRequests through. Zero means gobreaker's default of 60s.
	OpenTimeout time.Duration

	HalfOpenRequests uint32

	// FailureCodes are the response status codes counted as failures.
	// Empty means 500, 502, 503 and 504.
	FailureCodes []int
}

// RetryPolicy configures retries of failed requests.
type RetryPolicy struct {
	Max     int
	WaitMin time.Duration
	WaitMax time.Duration
}

type options struct {
	name    string
	timeout time.Duration
	base    http.RoundTripper
	traced  bool
	log     slog.Handler
	breaker *Breaker
	retry   *RetryPolicy
}

// Option configures the client returned by [New].
type Option func(*options)

// Name is attached to every log record of the client and names its breaker.
func Name(s string) Option {
	return func(o *options) {
		o.name = s
	}
}

// Timeout bounds each attempt of a request.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// RoundTripper sets the base transport, http.DefaultTransport by default.
func RoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// LogHandler sets the handler requests and circuit changes are logged to.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.log = h
	}
}

// WithoutTracing leaves out the otelhttp transport.
func WithoutTracing() Option {
	return func(o *options) {
		o.traced = false
	}
}

// CircuitBreaker fails requests fast while the server keeps failing.
func CircuitBreaker(b Breaker) Option {
	return func(o *options) {
		o.breaker = &b
	}
}

// Retry retries connection errors, 429s and 5xx responses, except 501.
func Retry(p RetryPolicy) Option {
	return func(o *options) {
		o.retry = &p
	}
}

// New returns an http.Client. From the outside in, its transport retries,
// guards with a circuit breaker, logs and traces each attempt.
func New(opts ...Option) *http.Client {
	o := &options{
		base:   http.DefaultTransport,
		traced: true,
		log:    noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(o)
	}

	log := slog.New(o.log)
	if o.name != "" {
		log = log.With(slogfield.String("http_client", o.name))
	}

	rt := o.base
	if o.traced {
		rt = otelhttp.NewTransport(rt)
	}
	rt = loggingTransport{next: rt, log: log}
	if o.breaker != nil {
		rt = newBreakerTransport(o.name, rt, *o.breaker, log)
	}

	client := &http.Client{Timeout: o.timeout, Transport: rt}
	if o.retry == nil {
		return client
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = client
	rc.Logger = nil
	rc.RetryMax = o.retry.Max
	rc.RetryWaitMin = o.retry.WaitMin
	rc.RetryWaitMax = o.retry.WaitMax
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc.StandardClient()
}

type loggingTransport struct {
	next http.RoundTripper
	log  *slog.Logger
}

func (t loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	log := t.log.With(slogfield.String("method", req.Method), slogfield.String("url", req.URL.String()))

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		log.DebugContext(ctx, "request failed", slogfield.Error(err))
		return nil, err
	}
	log.DebugContext(
		ctx,
		"response received",
		slogfield.Int("status_code", resp.StatusCode),
		slogfield.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

// failedResponse lets a response count as a breaker failure while still
// being handed back to the caller.
type failedResponse struct {
	resp *http.Response
}

func (e failedResponse) Error() string {
	return "unsuccessful response: " + e.resp.Status
}

type breakerTransport struct {
	next  http.RoundTripper
	cb    *gobreaker.CircuitBreaker
	codes []int
}

func newBreakerTransport(name string, next http.RoundTripper, b Breaker, log *slog.Logger) *breakerTransport {
	if b.TripAfter == 0 {
		b.TripAfter = 5
	}
	if len(b.FailureCodes) == 0 {
		b.FailureCodes = []int{
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}

	return &breakerTransport{
		next:  next,
		codes: b.FailureCodes,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: b.HalfOpenRequests,
			Timeout:     b.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= b.TripAfter
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				log.Warn(
					"circuit breaker changed state",
					slogfield.String("from", from.String()),
					slogfield.String("to", to.String()),
				)
			},
		}),
	}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := t.cb.Execute(func() (any, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if slices.Contains(t.codes, resp.StatusCode) {
			return nil, failedResponse{resp: resp}
		}
		return resp, nil
	})

	var ferr failedResponse
	if errors.As(err, &ferr) {
		return ferr.resp, nil
	}
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}
