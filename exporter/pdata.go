// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package exporter

import (
	"encoding/hex"

	"github.com/z5labs/otel-cli/tracedata"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

// ScopeName is the instrumentation scope of every exported span.
const ScopeName = "otel-cli"

// ToTraces converts d into OTLP traces. The service name is set as the
// service.name resource attribute and overrides any resource attribute of
// the same key.
func ToTraces(d tracedata.TraceData) (ptrace.Traces, error) {
	td := ptrace.NewTraces()
	rs := td.ResourceSpans().AppendEmpty()

	res := rs.Resource().Attributes()
	putAttributes(res, d.Metadata.ResourceAttributes)
	if d.Metadata.ServiceName != "" {
		res.PutStr(tracedata.ServiceNameKey, d.Metadata.ServiceName)
	}

	ss := rs.ScopeSpans().AppendEmpty()
	ss.Scope().SetName(ScopeName)

	spans := ss.Spans()
	spans.EnsureCapacity(len(d.Spans))
	for _, s := range d.Spans {
		err := putSpan(spans.AppendEmpty(), s)
		if err != nil {
			return ptrace.Traces{}, err
		}
	}
	return td, nil
}

func putSpan(span ptrace.Span, s tracedata.Span) error {
	var traceID pcommon.TraceID
	err := decodeID(traceID[:], "trace id", s.TraceID)
	if err != nil {
		return err
	}
	var spanID pcommon.SpanID
	err = decodeID(spanID[:], "span id", s.SpanID)
	if err != nil {
		return err
	}

	span.SetTraceID(traceID)
	span.SetSpanID(spanID)
	if s.ParentSpanID != "" {
		var parentID pcommon.SpanID
		err = decodeID(parentID[:], "parent span id", s.ParentSpanID)
		if err != nil {
			return err
		}
		span.SetParentSpanID(parentID)
	}
	if s.TraceState != "" {
		span.TraceState().FromRaw(s.TraceState)
	}

	span.SetName(s.Name)
	span.SetKind(ptrace.SpanKind(s.Kind))
	span.SetStartTimestamp(pcommon.Timestamp(s.StartTimeUnixNano))
	span.SetEndTimestamp(pcommon.Timestamp(s.EndTimeUnixNano))
	span.Status().SetCode(ptrace.StatusCode(s.Status.Code))
	span.Status().SetMessage(s.Status.Message)
	putAttributes(span.Attributes(), s.Attributes)
	span.SetDroppedAttributesCount(s.DroppedAttributesCount)
	return nil
}

// decodeID hex decodes s into dst, which must be exactly filled.
func decodeID(dst []byte, kind, s string) error {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(dst) {
		return tracedata.InvalidIDError{Kind: kind, ID: s}
	}
	copy(dst, b)
	return nil
}

func putAttributes(m pcommon.Map, attrs []tracedata.Attribute) {
	m.EnsureCapacity(m.Len() + len(attrs))
	for _, attr := range attrs {
		v := attr.Value
		switch {
		case v.StringValue != nil:
			m.PutStr(attr.Key, *v.StringValue)
		case v.BoolValue != nil:
			m.PutBool(attr.Key, *v.BoolValue)
		case v.IntValue != nil:
			m.PutInt(attr.Key, *v.IntValue)
		case v.DoubleValue != nil:
			m.PutDouble(attr.Key, *v.DoubleValue)
		default:
			m.PutEmpty(attr.Key)
		}
	}
}
