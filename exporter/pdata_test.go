// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package exporter

import (
	"testing"

	"github.com/z5labs/otel-cli/tracedata"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

func TestToTraces(t *testing.T) {
	t.Run("will convert the span and its resource", func(t *testing.T) {
		td, err := ToTraces(testTraceData())
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, 1, td.SpanCount()) {
			return
		}

		rs := td.ResourceSpans().At(0)
		svc, ok := rs.Resource().Attributes().Get(tracedata.ServiceNameKey)
		if !assert.True(t, ok) {
			return
		}
		if !assert.Equal(t, "build", svc.Str()) {
			return
		}

		ss := rs.ScopeSpans().At(0)
		if !assert.Equal(t, ScopeName, ss.Scope().Name()) {
			return
		}

		span := ss.Spans().At(0)
		if !assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.TraceID().String()) {
			return
		}
		if !assert.Equal(t, "00f067aa0ba902b7", span.SpanID().String()) {
			return
		}
		if !assert.Equal(t, "b7ad6b7169203331", span.ParentSpanID().String()) {
			return
		}
		if !assert.Equal(t, ptrace.SpanKindClient, span.Kind()) {
			return
		}
		if !assert.Equal(t, ptrace.StatusCodeError, span.Status().Code()) {
			return
		}
		if !assert.Equal(t, "exit status 2", span.Status().Message()) {
			return
		}

		retries, ok := span.Attributes().Get("retries")
		if !assert.True(t, ok) {
			return
		}
		if !assert.Equal(t, int64(3), retries.Int()) {
			return
		}
		ratio, ok := span.Attributes().Get("ratio")
		if !assert.True(t, ok) {
			return
		}
		if !assert.Equal(t, 0.5, ratio.Double()) {
			return
		}
	})

	t.Run("will return an InvalidIDError", func(t *testing.T) {
		t.Run("if a span id is not hex", func(t *testing.T) {
			d := testTraceData()
			d.Spans[0].SpanID = "not-hex-at-all!!"

			_, err := ToTraces(d)

			var ierr tracedata.InvalidIDError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Equal(t, "span id", ierr.Kind) {
				return
			}
		})

		t.Run("if the trace id has the wrong length", func(t *testing.T) {
			d := testTraceData()
			d.Spans[0].TraceID = "00f067aa0ba902b7"

			_, err := ToTraces(d)

			var ierr tracedata.InvalidIDError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Equal(t, "trace id", ierr.Kind) {
				return
			}
		})
	})
}
