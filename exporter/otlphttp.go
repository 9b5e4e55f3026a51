// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package exporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/tracedata"

	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
)

type encoding struct {
	contentType string
	marshal     func(ptraceotlp.ExportRequest) ([]byte, error)
}

var (
	jsonEncoding = encoding{
		contentType: "application/json",
		marshal: func(req ptraceotlp.ExportRequest) ([]byte, error) {
			return req.MarshalJSON()
		},
	}

	protobufEncoding = encoding{
		contentType: "application/x-protobuf",
		marshal: func(req ptraceotlp.ExportRequest) ([]byte, error) {
			return req.MarshalProto()
		},
	}
)

// OTLPHTTP exports spans with the OTLP/HTTP protocol.
type OTLPHTTP struct {
	log      *slog.Logger
	client   *http.Client
	endpoint string
	headers  map[string]string
	enc      encoding
}

func newOTLPHTTP(endpoint string, headers map[string]string, enc encoding, o *options) *OTLPHTTP {
	return &OTLPHTTP{
		log:      slog.New(o.logHandler),
		client:   o.httpClient("otlp"),
		endpoint: endpoint,
		headers:  headers,
		enc:      enc,
	}
}

// Export implements the [Exporter] interface.
func (e *OTLPHTTP) Export(ctx context.Context, d tracedata.TraceData) error {
	td, err := ToTraces(d)
	if err != nil {
		return err
	}
	body, err := e.enc.marshal(ptraceotlp.NewExportRequestFromTraces(td))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return TransportError{Endpoint: e.endpoint, Cause: err}
	}
	req.Header.Set("Content-Type", e.enc.contentType)
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	e.log.DebugContext(ctx, "exporting spans", slogfield.Endpoint(e.endpoint), slogfield.Int("spans", len(d.Spans)))
	return post(e.client, req)
}

// post sends req and turns network failures and non-2xx responses into
// a [TransportError].
func post(client *http.Client, req *http.Request) error {
	endpoint := req.URL.String()
	resp, err := client.Do(req)
	if err != nil {
		return TransportError{Endpoint: endpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg = bytes.TrimSpace(msg)
	cause := errors.New(http.StatusText(resp.StatusCode))
	if len(msg) > 0 {
		cause = errors.New(string(msg))
	}
	return TransportError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Cause:      cause,
	}
}
