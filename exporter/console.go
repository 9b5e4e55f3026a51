// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package exporter

import (
	"context"
	"time"

	"github.com/z5labs/otel-cli/tracedata"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// Console writes spans as indented JSON using the OpenTelemetry SDK
// stdout exporter. It is meant for local debugging.
type Console struct {
	exp *stdouttrace.Exporter
}

func newConsole(o *options) (*Console, error) {
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(o.writer),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}
	return &Console{exp: exp}, nil
}

// Export implements the [Exporter] interface.
func (c *Console) Export(ctx context.Context, d tracedata.TraceData) error {
	stubs, err := toSpanStubs(d)
	if err != nil {
		return err
	}
	return c.exp.ExportSpans(ctx, stubs.Snapshots())
}

// Close shuts the stdout exporter down.
func (c *Console) Close() error {
	return c.exp.Shutdown(context.Background())
}

func toSpanStubs(d tracedata.TraceData) (tracetest.SpanStubs, error) {
	resAttrs := toKeyValues(d.Metadata.ResourceAttributes)
	if d.Metadata.ServiceName != "" {
		resAttrs = append(resAttrs, attribute.String(tracedata.ServiceNameKey, d.Metadata.ServiceName))
	}
	res := resource.NewSchemaless(resAttrs...)

	stubs := make(tracetest.SpanStubs, 0, len(d.Spans))
	for _, s := range d.Spans {
		stub, err := toSpanStub(s, res)
		if err != nil {
			return nil, err
		}
		stubs = append(stubs, stub)
	}
	return stubs, nil
}

func toSpanStub(s tracedata.Span, res *resource.Resource) (tracetest.SpanStub, error) {
	traceID, err := trace.TraceIDFromHex(s.TraceID)
	if err != nil {
		return tracetest.SpanStub{}, tracedata.InvalidIDError{Kind: "trace id", ID: s.TraceID}
	}
	spanID, err := trace.SpanIDFromHex(s.SpanID)
	if err != nil {
		return tracetest.SpanStub{}, tracedata.InvalidIDError{Kind: "span id", ID: s.SpanID}
	}

	var parent trace.SpanContext
	if s.ParentSpanID != "" {
		parentID, err := trace.SpanIDFromHex(s.ParentSpanID)
		if err != nil {
			return tracetest.SpanStub{}, tracedata.InvalidIDError{Kind: "parent span id", ID: s.ParentSpanID}
		}
		parent = trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     parentID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
	}

	ts, err := trace.ParseTraceState(s.TraceState)
	if err != nil {
		return tracetest.SpanStub{}, err
	}

	return tracetest.SpanStub{
		Name: s.Name,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
			TraceState: ts,
		}),
		Parent:            parent,
		SpanKind:          trace.SpanKind(s.Kind),
		StartTime:         time.Unix(0, int64(s.StartTimeUnixNano)),
		EndTime:           time.Unix(0, int64(s.EndTimeUnixNano)),
		Attributes:        toKeyValues(s.Attributes),
		DroppedAttributes: int(s.DroppedAttributesCount),
		Status: sdktrace.Status{
			Code:        toStatusCode(s.Status.Code),
			Description: s.Status.Message,
		},
		Resource: res,
	}, nil
}

// toStatusCode maps OTLP status codes onto the SDK codes, which number
// Error and Ok the other way round.
func toStatusCode(c tracedata.SpanStatusCode) codes.Code {
	switch c {
	case tracedata.StatusCodeOK:
		return codes.Ok
	case tracedata.StatusCodeError:
		return codes.Error
	default:
		return codes.Unset
	}
}

func toKeyValues(attrs []tracedata.Attribute) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		v := attr.Value
		switch {
		case v.StringValue != nil:
			kvs = append(kvs, attribute.String(attr.Key, *v.StringValue))
		case v.BoolValue != nil:
			kvs = append(kvs, attribute.Bool(attr.Key, *v.BoolValue))
		case v.IntValue != nil:
			kvs = append(kvs, attribute.Int64(attr.Key, *v.IntValue))
		case v.DoubleValue != nil:
			kvs = append(kvs, attribute.Float64(attr.Key, *v.DoubleValue))
		}
	}
	return kvs
}
