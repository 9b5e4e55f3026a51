// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package tracedata

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	traceIDBytes = 16
	spanIDBytes  = 8
)

var (
	traceIDPattern     = regexp.MustCompile(`^[a-f\d]{32}$`)
	spanIDPattern      = regexp.MustCompile(`^[a-f\d]{16}$`)
	traceParentPattern = regexp.MustCompile(`^00-[a-f\d]{32}-[a-f\d]{16}-[a-f\d]{2}$`)
)

// InvalidIDError is returned for malformed trace, span or traceparent values.
type InvalidIDError struct {
	Kind string
	ID   string
}

// Error implements the [error] interface.
func (e InvalidIDError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Kind, e.ID)
}

// GenerateTraceID returns a random 16 byte id, hex encoded.
func GenerateTraceID() (string, error) {
	return generateID(rand.Reader, traceIDBytes)
}

// GenerateSpanID returns a random 8 byte id, hex encoded.
func GenerateSpanID() (string, error) {
	return generateID(rand.Reader, spanIDBytes)
}

// generateID never returns an all zero id, which W3C trace context
// treats as invalid.
func generateID(r io.Reader, n int) (string, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	if err != nil {
		return "", err
	}
	for _, x := range b {
		if x != 0 {
			return hex.EncodeToString(b), nil
		}
	}
	b[n-1] = 1
	return hex.EncodeToString(b), nil
}

// ValidTraceID reports whether id is 32 lowercase hex characters.
func ValidTraceID(id string) bool {
	return traceIDPattern.MatchString(id)
}

// ValidSpanID reports whether id is 16 lowercase hex characters.
func ValidSpanID(id string) bool {
	return spanIDPattern.MatchString(id)
}

// NormalizeID strips a leading 0x from id.
func NormalizeID(id string) string {
	return strings.TrimPrefix(id, "0x")
}

// ParseTraceParent extracts the trace id and parent span id from a W3C
// traceparent header value.
func ParseTraceParent(s string) (traceID, spanID string, err error) {
	if !traceParentPattern.MatchString(s) {
		return "", "", InvalidIDError{Kind: "traceparent", ID: s}
	}
	parts := strings.Split(s, "-")
	return parts[1], parts[2], nil
}

// FormatTraceParent returns a sampled W3C traceparent for the given ids.
func FormatTraceParent(traceID, spanID string) string {
	return fmt.Sprintf("00-%s-%s-01", traceID, spanID)
}
