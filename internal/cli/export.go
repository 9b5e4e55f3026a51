// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/z5labs/otel-cli/config"
	"github.com/z5labs/otel-cli/exporter"
	"github.com/z5labs/otel-cli/internal/app"
	"github.com/z5labs/otel-cli/internal/httpclient"
	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/internal/try"
	"github.com/z5labs/otel-cli/relay"
	"github.com/z5labs/otel-cli/tracedata"

	"github.com/spf13/cobra"
)

type timeConfig struct {
	Nanos  uint64 `config:"nanos"`
	Micros uint64 `config:"micros"`
	Millis uint64 `config:"millis"`
	Secs   uint64 `config:"secs"`
}

// unixNano returns the first unit which is set, converted to nanoseconds.
func (c timeConfig) unixNano() (uint64, bool) {
	switch {
	case c.Nanos != 0:
		return c.Nanos, true
	case c.Micros != 0:
		return c.Micros * 1e3, true
	case c.Millis != 0:
		return c.Millis * 1e6, true
	case c.Secs != 0:
		return c.Secs * 1e9, true
	default:
		return 0, false
	}
}

type exportConfig struct {
	Verbose bool       `config:"verbose"`
	OTLP    otlpConfig `config:"otlp"`

	Service struct {
		Name string `config:"name"`
	} `config:"service"`

	Resource struct {
		Attributes []string `config:"attributes"`
	} `config:"resource"`

	TraceParent struct {
		Value   string `config:"value"`
		Disable bool   `config:"disable"`
		Print   bool   `config:"print"`
	} `config:"traceparent"`

	Trace struct {
		ID string `config:"id"`
	} `config:"trace"`

	Span struct {
		ID         string     `config:"id"`
		ParentID   string     `config:"parent_id"`
		Name       string     `config:"name"`
		Kind       string     `config:"kind"`
		Attributes []string   `config:"attributes"`
		StartTime  timeConfig `config:"start_time"`
		EndTime    timeConfig `config:"end_time"`
		Status     struct {
			Code    string `config:"code"`
			Message string `config:"message"`
		} `config:"status"`
	} `config:"span"`

	Server struct {
		Host string `config:"host"`
		Port int    `config:"port"`
	} `config:"server"`
}

func exportCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a single span",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := config.Map{
				"otlp": otlpDefaults,
				"span": config.Map{
					"kind": tracedata.SpanKindInternal.String(),
					"status": config.Map{
						"code": tracedata.StatusCodeUnset.String(),
					},
				},
				"server": config.Map{
					"host": relay.DefaultHost,
				},
			}

			return app.Run(
				cmd.Context(),
				app.BuilderFunc[exportConfig](func(ctx context.Context, cfg exportConfig) (app.App, error) {
					return buildExport(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
				}),
				sources(cmd, o, defaults)...,
			)
		},
	}

	fs := cmd.Flags()
	bindOTLPFlags(fs)
	fs.String("traceparent", "", "Traceparent header in W3C trace context format")
	fs.Bool("traceparent-disable", false, "Disable traceparent header based W3C trace context propagation for the exported span")
	fs.Bool("traceparent-print", false, "Print traceparent header in W3C trace context format for the exported span")
	fs.StringP("trace-id", "t", "", "Trace id")
	fs.StringP("span-id", "s", "", "Span id (generated when omitted)")
	fs.String("parent-span-id", "", "Parent span id")
	fs.StringP("name", "n", "", "Span name")
	fs.String("service-name", "", "Service name")
	fs.StringP("kind", "k", "", "Span kind (INTERNAL, SERVER, CLIENT, PRODUCER, CONSUMER)")
	for _, bound := range []string{"start", "end"} {
		for _, unit := range []string{"nanos", "micros", "millis", "secs"} {
			name := fmt.Sprintf("%s-time-%s", bound, unit)
			fs.Uint64(name, 0, fmt.Sprintf("Span %s time in %s", bound, unit))
			mustBindFlag(fs, name, fmt.Sprintf("span.%s_time.%s", bound, unit))
		}
	}
	fs.String("status-code", "", "Status code (UNSET, OK, ERROR)")
	fs.String("status-message", "", "Status message")
	fs.StringSliceP("attributes", "a", nil, "Span attributes as key=value pairs")
	fs.StringSlice("resource-attributes", nil, "Resource attributes as key=value pairs")
	fs.Int("server-port", 0, "Port of a running relay to hand the span to instead of exporting it")

	mustBindFlag(fs, "traceparent", "traceparent.value")
	mustBindFlag(fs, "traceparent-disable", "traceparent.disable")
	mustBindFlag(fs, "traceparent-print", "traceparent.print")
	mustBindFlag(fs, "trace-id", "trace.id")
	mustBindFlag(fs, "span-id", "span.id")
	mustBindFlag(fs, "parent-span-id", "span.parent_id")
	mustBindFlag(fs, "name", "span.name")
	mustBindFlag(fs, "service-name", "service.name")
	mustBindFlag(fs, "kind", "span.kind")
	mustBindFlag(fs, "status-code", "span.status.code")
	mustBindFlag(fs, "status-message", "span.status.message")
	mustBindFlag(fs, "attributes", "span.attributes")
	mustBindFlag(fs, "resource-attributes", "resource.attributes")
	mustBindFlag(fs, "server-port", "server.port")

	return cmd
}

var exportRetries = httpclient.RetryPolicy{
	Max:     2,
	WaitMin: 100 * time.Millisecond,
	WaitMax: time.Second,
}

func buildExport(stdout, stderr io.Writer, cfg exportConfig) (app.App, error) {
	logHandler := newLogHandler(stderr, cfg.Verbose)

	d, err := traceData(cfg)
	if err != nil {
		return nil, err
	}

	var exp exporter.Exporter
	if cfg.Server.Port != 0 {
		exp = exporter.NewRelay(cfg.Server.Host, cfg.Server.Port, exporter.LogHandler(logHandler))
	} else {
		slog.New(logHandler).Debug("exporting directly to collector", slog.Any("otlp", cfg.OTLP))
		exp, err = cfg.OTLP.exporter(
			exporter.LogHandler(logHandler),
			exporter.HTTPClientOptions(httpclient.Retry(exportRetries)),
		)
		if err != nil {
			return nil, err
		}
	}

	export := &exportApp{
		log:  slog.New(logHandler),
		out:  stdout,
		exp:  exp,
		data: d,
	}
	if cfg.TraceParent.Print {
		export.traceParent = tracedata.FormatTraceParent(d.Spans[0].TraceID, d.Spans[0].SpanID)
	}
	return export, nil
}

func traceData(cfg exportConfig) (tracedata.TraceData, error) {
	var zero tracedata.TraceData

	traceID := cfg.Trace.ID
	parentSpanID := cfg.Span.ParentID
	if tp := cfg.TraceParent.Value; tp != "" && !cfg.TraceParent.Disable {
		tpTraceID, tpSpanID, err := tracedata.ParseTraceParent(tp)
		if err != nil {
			return zero, err
		}
		if traceID == "" {
			traceID = tpTraceID
		}
		if parentSpanID == "" {
			parentSpanID = tpSpanID
		}
	}
	if traceID == "" {
		return zero, MissingOptionError{Option: "trace id"}
	}
	if cfg.Span.Name == "" {
		return zero, MissingOptionError{Option: "span name"}
	}
	if cfg.Service.Name == "" {
		return zero, MissingOptionError{Option: "service name"}
	}

	spanID := cfg.Span.ID
	if spanID == "" {
		var err error
		spanID, err = tracedata.GenerateSpanID()
		if err != nil {
			return zero, err
		}
	}

	start, ok := cfg.Span.StartTime.unixNano()
	if !ok {
		return zero, MissingOptionError{Option: "span start time"}
	}
	end, ok := cfg.Span.EndTime.unixNano()
	if !ok {
		return zero, MissingOptionError{Option: "span end time"}
	}

	kind, err := tracedata.ParseSpanKind(cfg.Span.Kind)
	if err != nil {
		return zero, err
	}
	code, err := tracedata.ParseSpanStatusCode(cfg.Span.Status.Code)
	if err != nil {
		return zero, err
	}
	attrs, err := tracedata.ParseKeyValues(cfg.Span.Attributes)
	if err != nil {
		return zero, err
	}
	resAttrs, err := tracedata.ParseKeyValues(cfg.Resource.Attributes)
	if err != nil {
		return zero, err
	}

	span := tracedata.Span{
		TraceID:           tracedata.NormalizeID(traceID),
		SpanID:            tracedata.NormalizeID(spanID),
		ParentSpanID:      tracedata.NormalizeID(parentSpanID),
		Name:              cfg.Span.Name,
		Kind:              kind,
		StartTimeUnixNano: start,
		EndTimeUnixNano:   end,
		Status: tracedata.SpanStatus{
			Code:    code,
			Message: cfg.Span.Status.Message,
		},
		Attributes: tracedata.FlattenAttributes(attrs),
	}
	err = span.Validate()
	if err != nil {
		return zero, err
	}

	d := tracedata.TraceData{
		Metadata: tracedata.TraceMetadata{
			ServiceName:        cfg.Service.Name,
			ResourceAttributes: tracedata.FlattenAttributes(tracedata.WithoutKeys(resAttrs, tracedata.ServiceNameKey)),
		},
		Spans: []tracedata.Span{span},
	}
	return d, nil
}

type exportApp struct {
	log         *slog.Logger
	out         io.Writer
	exp         exporter.Exporter
	data        tracedata.TraceData
	traceParent string
}

// Run exports the span. A failed export is logged, the traceparent is
// still printed so scripts keep propagating context.
func (a *exportApp) Run(ctx context.Context) (err error) {
	defer try.Close(&err, a.exp)

	span := a.data.Spans[0]
	log := a.log.With(slogfield.TraceID(span.TraceID), slogfield.SpanID(span.SpanID))

	log.DebugContext(ctx, "exporting span", slogfield.Any("data", a.data))
	exportErr := a.exp.Export(ctx, a.data)
	if exportErr != nil {
		log.ErrorContext(ctx, "unable to export span", slogfield.Error(exportErr))
	} else {
		log.DebugContext(ctx, "exported span")
	}

	if a.traceParent != "" {
		_, err = fmt.Fprintln(a.out, a.traceParent)
	}
	return err
}
