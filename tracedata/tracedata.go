// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package tracedata defines the span payload exchanged between the
// otel-cli commands and the background relay.
package tracedata

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServiceNameKey is the resource attribute holding the service name.
const ServiceNameKey = "service.name"

// SpanKind mirrors the OTLP span kind enumeration.
type SpanKind int32

const (
	SpanKindUnspecified SpanKind = iota
	SpanKindInternal
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

var spanKindNames = [...]string{
	SpanKindUnspecified: "UNSPECIFIED",
	SpanKindInternal:    "INTERNAL",
	SpanKindServer:      "SERVER",
	SpanKindClient:      "CLIENT",
	SpanKindProducer:    "PRODUCER",
	SpanKindConsumer:    "CONSUMER",
}

// String implements the [fmt.Stringer] interface.
func (k SpanKind) String() string {
	if k < 0 || int(k) >= len(spanKindNames) {
		return fmt.Sprintf("SpanKind(%d)", int32(k))
	}
	return spanKindNames[k]
}

// ParseSpanKind returns the [SpanKind] with the given name. Names are
// matched case insensitively.
func ParseSpanKind(s string) (SpanKind, error) {
	i, err := parseEnum("span kind", spanKindNames[:], s)
	return SpanKind(i), err
}

// UnmarshalJSON implements the [json.Unmarshaler] interface. Both the
// numeric value and the name are accepted.
func (k *SpanKind) UnmarshalJSON(b []byte) error {
	i, err := unmarshalEnum("span kind", spanKindNames[:], b)
	if err != nil {
		return err
	}
	*k = SpanKind(i)
	return nil
}

// SpanStatusCode mirrors the OTLP status code enumeration.
type SpanStatusCode int32

const (
	StatusCodeUnset SpanStatusCode = iota
	StatusCodeOK
	StatusCodeError
)

var statusCodeNames = [...]string{
	StatusCodeUnset: "UNSET",
	StatusCodeOK:    "OK",
	StatusCodeError: "ERROR",
}

// String implements the [fmt.Stringer] interface.
func (c SpanStatusCode) String() string {
	if c < 0 || int(c) >= len(statusCodeNames) {
		return fmt.Sprintf("SpanStatusCode(%d)", int32(c))
	}
	return statusCodeNames[c]
}

// ParseSpanStatusCode returns the [SpanStatusCode] with the given name.
// Names are matched case insensitively.
func ParseSpanStatusCode(s string) (SpanStatusCode, error) {
	i, err := parseEnum("span status code", statusCodeNames[:], s)
	return SpanStatusCode(i), err
}

// UnmarshalJSON implements the [json.Unmarshaler] interface. Both the
// numeric value and the name are accepted.
func (c *SpanStatusCode) UnmarshalJSON(b []byte) error {
	i, err := unmarshalEnum("span status code", statusCodeNames[:], b)
	if err != nil {
		return err
	}
	*c = SpanStatusCode(i)
	return nil
}

func parseEnum(enum string, names []string, s string) (int32, error) {
	upper := strings.ToUpper(s)
	for i, name := range names {
		if name == upper {
			return int32(i), nil
		}
	}
	return 0, UnknownEnumError{Enum: enum, Value: s}
}

func unmarshalEnum(enum string, names []string, b []byte) (int32, error) {
	if string(b) == "null" {
		return 0, nil
	}

	var name string
	if json.Unmarshal(b, &name) == nil {
		return parseEnum(enum, names, name)
	}

	var n int32
	err := json.Unmarshal(b, &n)
	if err != nil {
		return 0, err
	}
	if n < 0 || int(n) >= len(names) {
		return 0, UnknownEnumError{Enum: enum, Value: string(b)}
	}
	return n, nil
}

// UnknownEnumError is returned when parsing an unrecognised enum name.
type UnknownEnumError struct {
	Enum  string
	Value string
}

// Error implements the [error] interface.
func (e UnknownEnumError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Enum, e.Value)
}

// Value is a typed attribute value. Exactly one field is set.
type Value struct {
	StringValue *string  `json:"stringValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
	IntValue    *int64   `json:"intValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
}

// StringValue returns a [Value] holding s.
func StringValue(s string) Value { return Value{StringValue: &s} }

// BoolValue returns a [Value] holding b.
func BoolValue(b bool) Value { return Value{BoolValue: &b} }

// IntValue returns a [Value] holding n.
func IntValue(n int64) Value { return Value{IntValue: &n} }

// DoubleValue returns a [Value] holding f.
func DoubleValue(f float64) Value { return Value{DoubleValue: &f} }

// Attribute is a key with a typed value.
type Attribute struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// SpanStatus is the outcome of a span.
type SpanStatus struct {
	Code    SpanStatusCode `json:"code"`
	Message string         `json:"message,omitempty"`
}

// Span is a single completed span. Ids are lowercase hex strings.
type Span struct {
	TraceID                string      `json:"traceId"`
	SpanID                 string      `json:"spanId"`
	TraceState             string      `json:"traceState,omitempty"`
	ParentSpanID           string      `json:"parentSpanId,omitempty"`
	Name                   string      `json:"name"`
	Kind                   SpanKind    `json:"kind"`
	StartTimeUnixNano      uint64      `json:"startTimeUnixNano"`
	EndTimeUnixNano        uint64      `json:"endTimeUnixNano"`
	Status                 SpanStatus  `json:"status"`
	Attributes             []Attribute `json:"attributes"`
	DroppedAttributesCount uint32      `json:"droppedAttributesCount"`
}

// Validate reports the first problem which would prevent s from being
// exported.
func (s Span) Validate() error {
	if !ValidTraceID(s.TraceID) {
		return InvalidIDError{Kind: "trace id", ID: s.TraceID}
	}
	if !ValidSpanID(s.SpanID) {
		return InvalidIDError{Kind: "span id", ID: s.SpanID}
	}
	if s.ParentSpanID != "" && !ValidSpanID(s.ParentSpanID) {
		return InvalidIDError{Kind: "parent span id", ID: s.ParentSpanID}
	}
	return nil
}

// TraceMetadata describes the resource which produced the spans.
type TraceMetadata struct {
	ServiceName        string      `json:"serviceName"`
	ResourceAttributes []Attribute `json:"resourceAttributes"`
}

// TraceData is the body of a relay export request.
type TraceData struct {
	Metadata TraceMetadata `json:"metadata"`
	Spans    []Span        `json:"spans"`
}

// TraceIDs returns the trace ids of every span in d.
func (d TraceData) TraceIDs() []string {
	ids := make([]string, 0, len(d.Spans))
	for _, s := range d.Spans {
		ids = append(ids, s.TraceID)
	}
	return ids
}
