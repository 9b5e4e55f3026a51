// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package exporter sends spans to an OTLP collector, to stdout or to a
// running otel-cli relay.
package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/z5labs/otel-cli/internal/httpclient"
	"github.com/z5labs/otel-cli/internal/noop"
	"github.com/z5labs/otel-cli/tracedata"
)

// Exporter delivers spans to their destination.
type Exporter interface {
	Export(context.Context, tracedata.TraceData) error
}

// Protocol names an OTLP transport.
type Protocol string

const (
	ProtocolHTTPJSON     Protocol = "http/json"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolGRPC         Protocol = "grpc"
	ProtocolConsole      Protocol = "console"
)

// Protocols lists every supported [Protocol].
func Protocols() []Protocol {
	return []Protocol{
		ProtocolHTTPJSON,
		ProtocolHTTPProtobuf,
		ProtocolGRPC,
		ProtocolConsole,
	}
}

// UnknownProtocolError is returned by [New] for an unsupported protocol.
type UnknownProtocolError struct {
	Protocol string
}

// Error implements the [error] interface.
func (e UnknownProtocolError) Error() string {
	return fmt.Sprintf("unrecognized exporter OTLP protocol: %s", e.Protocol)
}

// MissingEndpointError is returned by [New] when a network protocol is
// configured without an endpoint.
type MissingEndpointError struct {
	Protocol Protocol
}

// Error implements the [error] interface.
func (e MissingEndpointError) Error() string {
	return fmt.Sprintf("an endpoint is required for the %s protocol", e.Protocol)
}

// TransportError is returned when spans could not be delivered, either
// because of a network failure or a non-2xx response.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Cause      error
}

// Error implements the [error] interface.
func (e TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to export spans to %s: unexpected status code %d: %s", e.Endpoint, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("failed to export spans to %s: %s", e.Endpoint, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TransportError) Unwrap() error {
	return e.Cause
}

type options struct {
	timeout     time.Duration
	logHandler  slog.Handler
	writer      io.Writer
	client      *http.Client
	clientOpts  []httpclient.Option
	serviceName string
}

// Option configures the exporters built by [New].
type Option func(*options)

// Timeout bounds every export call. The default is 10s.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// LogHandler sets the handler exporters log to.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Writer sets where the console exporter writes. The default is stdout.
func Writer(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// HTTPClient replaces the client used by HTTP based exporters.
func HTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// HTTPClientOptions are passed to [httpclient.New] when no [HTTPClient] is set.
func HTTPClientOptions(opts ...httpclient.Option) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		timeout:    10 * time.Second,
		logHandler: noop.LogHandler{},
		writer:     os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) httpClient(name string) *http.Client {
	if o.client != nil {
		return o.client
	}
	opts := append([]httpclient.Option{
		httpclient.Name(name),
		httpclient.Timeout(o.timeout),
		httpclient.LogHandler(o.logHandler),
	}, o.clientOpts...)
	return httpclient.New(opts...)
}

// New returns the [Exporter] for protocol. For the http protocols endpoint
// is the full traces url, for grpc it is the collector address.
func New(protocol Protocol, endpoint string, headers map[string]string, opts ...Option) (Exporter, error) {
	o := newOptions(opts...)

	switch protocol {
	case ProtocolConsole:
		return newConsole(o)
	case ProtocolHTTPJSON, ProtocolHTTPProtobuf, ProtocolGRPC:
	default:
		return nil, UnknownProtocolError{Protocol: string(protocol)}
	}

	if endpoint == "" {
		return nil, MissingEndpointError{Protocol: protocol}
	}
	switch protocol {
	case ProtocolHTTPJSON:
		return newOTLPHTTP(endpoint, headers, jsonEncoding, o), nil
	case ProtocolHTTPProtobuf:
		return newOTLPHTTP(endpoint, headers, protobufEncoding, o), nil
	default:
		return newOTLPGRPC(endpoint, headers, o)
	}
}

// TracesEndpoint resolves the url spans are sent to. An explicit traces
// endpoint is used as is. Otherwise the http protocols append /v1/traces
// to the base endpoint and grpc uses the base endpoint unchanged.
func TracesEndpoint(protocol Protocol, endpoint, tracesEndpoint string) string {
	if tracesEndpoint != "" {
		return tracesEndpoint
	}
	if endpoint == "" {
		return ""
	}
	switch protocol {
	case ProtocolHTTPJSON, ProtocolHTTPProtobuf:
		return strings.TrimSuffix(endpoint, "/") + "/v1/traces"
	default:
		return endpoint
	}
}
