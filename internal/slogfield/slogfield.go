// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield provides consistently named slog attributes.
package slogfield

import (
	"log/slog"
	"time"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Bool returns an slog.Attr for a bool.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Strings returns an slog.Attr for a slice of strings.
func Strings(key string, values []string) slog.Attr {
	return slog.Any(key, values)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Int32 returns an slog.Attr for a int32.
func Int32(key string, n int32) slog.Attr {
	return slog.Int64(key, int64(n))
}

// Int64 returns an slog.Attr for a int64.
func Int64(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// TraceID returns an slog.Attr for the hex encoded id of an exported trace.
func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// SpanID returns an slog.Attr for the hex encoded id of an exported span.
func SpanID(id string) slog.Attr {
	return slog.String("span_id", id)
}

// PID returns an slog.Attr for an operating system process id.
func PID(pid int32) slog.Attr {
	return slog.Int64("pid", int64(pid))
}

// Endpoint returns an slog.Attr for a remote address or url.
func Endpoint(endpoint string) slog.Attr {
	return slog.String("endpoint", endpoint)
}

// Protocol returns an slog.Attr for an export protocol name.
func Protocol(protocol string) slog.Attr {
	return slog.String("protocol", protocol)
}

// ExitCode returns an slog.Attr for a process exit code.
func ExitCode(code int) slog.Attr {
	return slog.Int("exit_code", code)
}
