// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/tracedata"

	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// PartialSuccessError is returned when the collector accepted only some
// of the exported spans.
type PartialSuccessError struct {
	RejectedSpans int64
	Message       string
}

// Error implements the [error] interface.
func (e PartialSuccessError) Error() string {
	return fmt.Sprintf("collector rejected %d spans: %s", e.RejectedSpans, e.Message)
}

// OTLPGRPC exports spans with the OTLP/gRPC protocol.
type OTLPGRPC struct {
	log      *slog.Logger
	conn     *grpc.ClientConn
	client   ptraceotlp.GRPCClient
	endpoint string
	md       metadata.MD
	timeout  time.Duration
}

func newOTLPGRPC(endpoint string, headers map[string]string, o *options) (*OTLPGRPC, error) {
	target := grpcTarget(endpoint)
	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, TransportError{Endpoint: endpoint, Cause: err}
	}

	md := metadata.New(nil)
	for k, v := range headers {
		md.Set(k, v)
	}

	return &OTLPGRPC{
		log:      slog.New(o.logHandler),
		conn:     conn,
		client:   ptraceotlp.NewGRPCClient(conn),
		endpoint: target,
		md:       md,
		timeout:  o.timeout,
	}, nil
}

// grpcTarget strips the url scheme and path the OTEL_* endpoint
// variables usually carry.
func grpcTarget(endpoint string) string {
	for _, scheme := range []string{"http://", "https://", "grpc://"} {
		endpoint = strings.TrimPrefix(endpoint, scheme)
	}
	host, _, _ := strings.Cut(endpoint, "/")
	return host
}

// Export implements the [Exporter] interface.
func (e *OTLPGRPC) Export(ctx context.Context, d tracedata.TraceData) error {
	td, err := ToTraces(d)
	if err != nil {
		return err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if e.md.Len() > 0 {
		ctx = metadata.NewOutgoingContext(ctx, e.md)
	}

	e.log.DebugContext(ctx, "exporting spans", slogfield.Endpoint(e.endpoint), slogfield.Int("spans", len(d.Spans)))
	resp, err := e.client.Export(ctx, ptraceotlp.NewExportRequestFromTraces(td))
	if err != nil {
		return TransportError{Endpoint: e.endpoint, Cause: err}
	}

	ps := resp.PartialSuccess()
	if ps.RejectedSpans() > 0 {
		return PartialSuccessError{
			RejectedSpans: ps.RejectedSpans(),
			Message:       ps.ErrorMessage(),
		}
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (e *OTLPGRPC) Close() error {
	return e.conn.Close()
}
