// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/tracedata"
)

// Relay hands spans to a running otel-cli relay, which exports them in
// the background.
type Relay struct {
	log     *slog.Logger
	client  *http.Client
	baseURL string
}

// NewRelay returns a [Relay] for the relay listening on host:port.
func NewRelay(host string, port int, opts ...Option) *Relay {
	o := newOptions(opts...)
	return &Relay{
		log:     slog.New(o.logHandler),
		client:  o.httpClient("relay"),
		baseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

// Export implements the [Exporter] interface. It returns once the relay
// has accepted the spans, not once they were exported.
func (r *Relay) Export(ctx context.Context, d tracedata.TraceData) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}

	url := r.baseURL + "/export"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return TransportError{Endpoint: url, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	r.log.DebugContext(ctx, "handing spans to relay", slogfield.Endpoint(url), slogfield.Int("spans", len(d.Spans)))
	return post(r.client, req)
}

// Shutdown asks the relay to drain and exit. It returns once every
// pending export has completed.
func (r *Relay) Shutdown(ctx context.Context) error {
	url := r.baseURL + "/shutdown"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return TransportError{Endpoint: url, Cause: err}
	}

	r.log.DebugContext(ctx, "shutting relay down", slogfield.Endpoint(url))
	err = post(r.client, req)
	if err != nil {
		return fmt.Errorf("failed to shutdown relay: %w", err)
	}
	return nil
}
