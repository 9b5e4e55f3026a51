// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/z5labs/otel-cli/internal/executor"
	"github.com/z5labs/otel-cli/internal/httpvalidate"
	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/internal/try"
	"github.com/z5labs/otel-cli/tracedata"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// ExportPath accepts POST requests carrying a trace data document.
	ExportPath = "/export"

	// ShutdownPath accepts DELETE requests which drain and stop the relay.
	ShutdownPath = "/shutdown"
)

// Service is what the HTTP layer drives. It is implemented by [Controller].
type Service interface {
	Submit(context.Context, tracedata.TraceData) error
	Shutdown(context.Context) error
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type handler struct {
	log          *slog.Logger
	svc          Service
	maxBodyBytes int64
}

// NewHandler returns the relay's HTTP API backed by svc.
//
// The relevant options are [LogHandler] and [MaxBodyBytes].
func NewHandler(svc Service, opts ...Option) http.Handler {
	o := newOptions(opts...)

	h := &handler{
		log:          slog.New(o.logHandler),
		svc:          svc,
		maxBodyBytes: o.maxBodyBytes,
	}

	mux := http.NewServeMux()
	registerEndpoint(
		mux,
		ExportPath,
		httpvalidate.Request(
			http.HandlerFunc(h.export),
			httpvalidate.ForMethods(http.MethodPost),
			httpvalidate.ForContentTypes("application/json"),
		),
	)
	registerEndpoint(
		mux,
		ShutdownPath,
		httpvalidate.Request(
			http.HandlerFunc(h.shutdown),
			httpvalidate.ForMethods(http.MethodDelete),
		),
	)

	return closeConnection(h.recoverer(mux))
}

func registerEndpoint(mux *http.ServeMux, path string, h http.Handler) {
	mux.Handle(path, otelhttp.WithRouteTag(path, h))
}

func closeConnection(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		h.ServeHTTP(w, r)
	})
}

func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer func() {
			if err == nil {
				return
			}
			h.log.ErrorContext(
				r.Context(),
				"recovered from panic while handling request",
				slogfield.String("method", r.Method),
				slogfield.String("path", r.URL.Path),
				slogfield.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "InternalError", err)
		}()
		defer try.Recover(&err)

		next.ServeHTTP(w, r)
	})
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	d, err := decodeTraceData(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		err = MalformedRequestError{Cause: err}
		h.log.WarnContext(ctx, "rejected export request", slogfield.Error(err))
		writeError(w, http.StatusBadRequest, "MalformedRequest", err)
		return
	}

	err = h.svc.Submit(ctx, d)
	if executor.IsClosed(err) {
		h.log.WarnContext(ctx, "rejected export request after shutdown", slogfield.Strings("trace_ids", d.TraceIDs()))
		writeError(w, http.StatusServiceUnavailable, "ExecutorClosed", err)
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "failed to submit export", slogfield.Error(err))
		writeError(w, http.StatusInternalServerError, errorType(err), err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

var errTrailingData = errors.New("unexpected data after trace data")

// decodeTraceData requires the body to hold exactly one JSON document.
func decodeTraceData(r io.Reader) (tracedata.TraceData, error) {
	var d tracedata.TraceData
	dec := json.NewDecoder(r)
	err := dec.Decode(&d)
	if err != nil {
		return d, err
	}
	if _, err = dec.Token(); err != io.EOF {
		return d, errTrailingData
	}
	return d, nil
}

func (h *handler) shutdown(w http.ResponseWriter, r *http.Request) {
	// the drain must finish even if the requesting client goes away
	ctx := context.WithoutCancel(r.Context())

	err := h.svc.Shutdown(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorType(err), err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func errorType(err error) string {
	var serr ShutdownError
	if errors.As(err, &serr) {
		return "ShutdownFailure"
	}
	return "InternalError"
}

func writeError(w http.ResponseWriter, status int, typ string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.Encode(ErrorResponse{
		Type:    typ,
		Message: err.Error(),
	})
}
