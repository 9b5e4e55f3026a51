// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package noop provides do-nothing implementations used as defaults.
package noop

import (
	"context"
	"log/slog"
)

// LogHandler discards every record. It reports every level as disabled
// so callers skip building attributes.
type LogHandler struct{}

func (LogHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (LogHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h LogHandler) WithAttrs(_ []slog.Attr) slog.Handler        { return h }
func (h LogHandler) WithGroup(_ string) slog.Handler             { return h }

// Terminate ignores the exit code. It is useful for components which would
// otherwise end the process.
func Terminate(int) {}
