// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package tracedata

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTraceID(t *testing.T) {
	t.Run("will return a valid trace id", func(t *testing.T) {
		id, err := GenerateTraceID()
		if !assert.Nil(t, err) {
			return
		}
		if !assert.True(t, ValidTraceID(id)) {
			return
		}
	})
}

func TestGenerateSpanID(t *testing.T) {
	t.Run("will return a valid span id", func(t *testing.T) {
		id, err := GenerateSpanID()
		if !assert.Nil(t, err) {
			return
		}
		if !assert.True(t, ValidSpanID(id)) {
			return
		}
	})
}

func TestGenerateID(t *testing.T) {
	t.Run("will never return an all zero id", func(t *testing.T) {
		id, err := generateID(bytes.NewReader(make([]byte, 8)), 8)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "0000000000000001", id) {
			return
		}
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the random source is exhausted", func(t *testing.T) {
			_, err := generateID(bytes.NewReader([]byte{1, 2}), 8)
			if !assert.Error(t, err) {
				return
			}
		})
	})
}

func TestParseTraceParent(t *testing.T) {
	t.Run("will extract the trace and span id", func(t *testing.T) {
		traceID, spanID, err := ParseTraceParent("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID) {
			return
		}
		if !assert.Equal(t, "00f067aa0ba902b7", spanID) {
			return
		}
	})

	testCases := []struct {
		Name        string
		TraceParent string
	}{
		{Name: "unsupported version", TraceParent: "01-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
		{Name: "short trace id", TraceParent: "00-4bf92f3577b34da6-00f067aa0ba902b7-01"},
		{Name: "missing flags", TraceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7"},
		{Name: "empty", TraceParent: ""},
	}

	for _, testCase := range testCases {
		t.Run("will return an InvalidIDError if "+testCase.Name, func(t *testing.T) {
			_, _, err := ParseTraceParent(testCase.TraceParent)

			var ierr InvalidIDError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Equal(t, "traceparent", ierr.Kind) {
				return
			}
		})
	}
}

func TestFormatTraceParent(t *testing.T) {
	t.Run("will round trip through ParseTraceParent", func(t *testing.T) {
		tp := FormatTraceParent("4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
		if !assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", tp) {
			return
		}

		_, _, err := ParseTraceParent(tp)
		if !assert.Nil(t, err) {
			return
		}
	})
}

func TestNormalizeID(t *testing.T) {
	t.Run("will strip a 0x prefix", func(t *testing.T) {
		if !assert.Equal(t, "00f067aa0ba902b7", NormalizeID("0x00f067aa0ba902b7")) {
			return
		}
		if !assert.Equal(t, "00f067aa0ba902b7", NormalizeID("00f067aa0ba902b7")) {
			return
		}
	})
}
