// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelslog correlates log records with the span found in their
// context.
package otelslog

import (
	"context"
	"io"
	"log/slog"

	"github.com/z5labs/otel-cli/internal/slogfield"

	"go.opentelemetry.io/otel/trace"
)

// Handler adds trace_id and span_id attributes to every record logged
// with a context carrying a valid span context.
type Handler struct {
	next slog.Handler
}

// NewHandler returns a [Handler] which forwards records to next.
func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

// New is shorthand for slog.New(NewHandler(next)).
func New(next slog.Handler) *slog.Logger {
	return slog.New(NewHandler(next))
}

// NewTextHandler is the handler every otel-cli command logs through.
func NewTextHandler(w io.Writer, lvl slog.Leveler) *Handler {
	return NewHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r = r.Clone()
		r.AddAttrs(
			slogfield.TraceID(sc.TraceID().String()),
			slogfield.SpanID(sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}
