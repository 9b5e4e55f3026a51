// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package exporter

import (
	"testing"

	"github.com/z5labs/otel-cli/tracedata"

	"github.com/stretchr/testify/assert"
)

func testTraceData() tracedata.TraceData {
	return tracedata.TraceData{
		Metadata: tracedata.TraceMetadata{
			ServiceName: "build",
			ResourceAttributes: []tracedata.Attribute{
				{Key: "env", Value: tracedata.StringValue("ci")},
				{Key: tracedata.ServiceNameKey, Value: tracedata.StringValue("ignored")},
			},
		},
		Spans: []tracedata.Span{
			{
				TraceID:           "4bf92f3577b34da6a3ce929d0e0e4736",
				SpanID:            "00f067aa0ba902b7",
				ParentSpanID:      "b7ad6b7169203331",
				Name:              "compile",
				Kind:              tracedata.SpanKindClient,
				StartTimeUnixNano: 1700000000000000000,
				EndTimeUnixNano:   1700000001000000000,
				Status: tracedata.SpanStatus{
					Code:    tracedata.StatusCodeError,
					Message: "exit status 2",
				},
				Attributes: []tracedata.Attribute{
					{Key: "retries", Value: tracedata.IntValue(3)},
					{Key: "cached", Value: tracedata.BoolValue(false)},
					{Key: "ratio", Value: tracedata.DoubleValue(0.5)},
				},
			},
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("will return an UnknownProtocolError", func(t *testing.T) {
		t.Run("if the protocol is not supported", func(t *testing.T) {
			_, err := New("carrier/pigeon", "http://localhost:4318", nil)

			var perr UnknownProtocolError
			if !assert.ErrorAs(t, err, &perr) {
				return
			}
			if !assert.Equal(t, "carrier/pigeon", perr.Protocol) {
				return
			}
		})
	})

	t.Run("will return a MissingEndpointError", func(t *testing.T) {
		t.Run("if a network protocol has no endpoint", func(t *testing.T) {
			_, err := New(ProtocolHTTPJSON, "", nil)

			var merr MissingEndpointError
			if !assert.ErrorAs(t, err, &merr) {
				return
			}
		})
	})

	t.Run("will not require an endpoint", func(t *testing.T) {
		t.Run("if the protocol is console", func(t *testing.T) {
			exp, err := New(ProtocolConsole, "", nil)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.IsType(t, &Console{}, exp) {
				return
			}
		})
	})

	t.Run("will return the matching exporter", func(t *testing.T) {
		testCases := []struct {
			Protocol Protocol
			Type     any
		}{
			{Protocol: ProtocolHTTPJSON, Type: &OTLPHTTP{}},
			{Protocol: ProtocolHTTPProtobuf, Type: &OTLPHTTP{}},
			{Protocol: ProtocolGRPC, Type: &OTLPGRPC{}},
		}

		for _, testCase := range testCases {
			t.Run(string(testCase.Protocol), func(t *testing.T) {
				exp, err := New(testCase.Protocol, "http://localhost:4318/v1/traces", nil)
				if !assert.Nil(t, err) {
					return
				}
				if !assert.IsType(t, testCase.Type, exp) {
					return
				}
			})
		}
	})
}

func TestTracesEndpoint(t *testing.T) {
	testCases := []struct {
		Name           string
		Protocol       Protocol
		Endpoint       string
		TracesEndpoint string
		Expected       string
	}{
		{
			Name:           "explicit traces endpoint",
			Protocol:       ProtocolHTTPJSON,
			Endpoint:       "http://localhost:4318",
			TracesEndpoint: "http://collector/custom",
			Expected:       "http://collector/custom",
		},
		{
			Name:     "http base endpoint",
			Protocol: ProtocolHTTPProtobuf,
			Endpoint: "http://localhost:4318/",
			Expected: "http://localhost:4318/v1/traces",
		},
		{
			Name:     "grpc base endpoint",
			Protocol: ProtocolGRPC,
			Endpoint: "localhost:4317",
			Expected: "localhost:4317",
		},
		{
			Name:     "no endpoint",
			Protocol: ProtocolHTTPJSON,
			Expected: "",
		},
	}

	for _, testCase := range testCases {
		t.Run("will resolve the "+testCase.Name, func(t *testing.T) {
			got := TracesEndpoint(testCase.Protocol, testCase.Endpoint, testCase.TracesEndpoint)
			if !assert.Equal(t, testCase.Expected, got) {
				return
			}
		})
	}
}
