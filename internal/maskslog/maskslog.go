// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog provides a slog.Handler which masks the values of
// selected attributes, e.g. exporter headers carrying API keys.
package maskslog

import (
	"context"
	"log/slog"
	"strings"
)

// Option helps configure the Handler.
type Option func(map[string]func(slog.Attr) slog.Attr)

// Attr registers a function for masking a slog.Attr given its key.
func Attr(key string, f func(slog.Attr) slog.Attr) Option {
	return func(m map[string]func(slog.Attr) slog.Attr) {
		m[key] = f
	}
}

// AnonymousStringAttr replaces the value of a with "****" regardless
// of its type.
func AnonymousStringAttr(a slog.Attr) slog.Attr {
	return slog.String(a.Key, "****")
}

// KeyValueAttr masks the values of "key=value" pairs while keeping the
// keys readable. It accepts a string attribute, a comma separated list,
// or an any attribute holding a []string.
func KeyValueAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, strings.Join(maskPairs(strings.Split(a.Value.String(), ",")), ","))
	case slog.KindAny:
		pairs, ok := a.Value.Any().([]string)
		if !ok {
			return AnonymousStringAttr(a)
		}
		return slog.Any(a.Key, maskPairs(pairs))
	default:
		return AnonymousStringAttr(a)
	}
}

func maskPairs(pairs []string) []string {
	masked := make([]string, len(pairs))
	for i, pair := range pairs {
		k, _, ok := strings.Cut(pair, "=")
		if !ok {
			masked[i] = "****"
			continue
		}
		masked[i] = k + "=****"
	}
	return masked
}

// Handler is an slog.Handler.
type Handler struct {
	slog  slog.Handler
	masks map[string]func(slog.Attr) slog.Attr
}

// NewHandler returns a new Handler.
func NewHandler(h slog.Handler, opts ...Option) *Handler {
	masks := make(map[string]func(slog.Attr) slog.Attr)
	for _, opt := range opts {
		opt(masks)
	}
	return &Handler{
		slog:  h,
		masks: masks,
	}
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.masks) == 0 {
		return h.slog.Handle(ctx, record)
	}

	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.mask(a))
		return true
	})

	nr := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	nr.AddAttrs(attrs...)
	return h.slog.Handle(ctx, nr)
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if f, ok := h.masks[a.Key]; ok {
		return f(a)
	}
	if a.Value.Kind() != slog.KindGroup {
		return a
	}

	group := a.Value.Group()
	masked := make([]any, len(group))
	for i, ga := range group {
		masked[i] = h.mask(ga)
	}
	return slog.Group(a.Key, masked...)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{
		slog:  h.slog.WithAttrs(masked),
		masks: h.masks,
	}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		slog:  h.slog.WithGroup(name),
		masks: h.masks,
	}
}
