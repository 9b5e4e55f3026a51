// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"log/slog"
	"strings"
	"time"

	"github.com/z5labs/otel-cli/config"
	"github.com/z5labs/otel-cli/exporter"
	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/tracedata"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ConfigFileEnv names the environment variable holding the config file path
// when --config is not given.
const ConfigFileEnv = "OTEL_CLI_CONFIG_FILE"

var envBindings = []config.Binding{
	config.Bind("OTEL_EXPORTER_OTLP_ENDPOINT", "otlp.endpoint"),
	config.Bind("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "otlp.traces_endpoint"),
	config.Bind("OTEL_EXPORTER_OTLP_PROTOCOL", "otlp.protocol"),
	config.Bind("OTEL_EXPORTER_OTLP_HEADERS", "otlp.headers"),
	config.Bind("OTEL_EXPORTER_OTLP_TIMEOUT", "otlp.timeout"),
	config.Bind("OTEL_SERVICE_NAME", "service.name"),
	// takes precedence over OTEL_SERVICE_NAME
	config.Bind("OTEL_CLI_SERVICE_NAME", "service.name"),
	config.Bind("OTEL_RESOURCE_ATTRIBUTES", "resource.attributes"),
	config.Bind("TRACEPARENT", "traceparent.value"),
	config.Bind("OTEL_CLI_VERBOSE", "verbose"),
	config.Bind("OTEL_CLI_TRACE_ID", "trace.id"),
	config.Bind("OTEL_CLI_TRACEPARENT_DISABLE", "traceparent.disable"),
	config.Bind("OTEL_CLI_TRACEPARENT_PRINT", "traceparent.print"),
	config.Bind("OTEL_CLI_SERVER_PORT", "server.port"),
	config.Bind("OTEL_CLI_SERVER_PPID", "server.ppid"),
}

type otlpConfig struct {
	Endpoint       string        `config:"endpoint"`
	TracesEndpoint string        `config:"traces_endpoint"`
	Protocol       string        `config:"protocol"`
	Headers        []string      `config:"headers"`
	Timeout        time.Duration `config:"timeout"`
}

// LogValue implements the [slog.LogValuer] interface.
func (c otlpConfig) LogValue() slog.Value {
	protocol := exporter.Protocol(c.Protocol)
	return slog.GroupValue(
		slogfield.Protocol(c.Protocol),
		slogfield.Endpoint(exporter.TracesEndpoint(protocol, c.Endpoint, c.TracesEndpoint)),
		slogfield.Strings("headers", c.Headers),
		slogfield.Duration("timeout", c.Timeout),
	)
}

func (c otlpConfig) exporter(opts ...exporter.Option) (exporter.Exporter, error) {
	headers, err := tracedata.ParseKeyValues(c.Headers)
	if err != nil {
		return nil, err
	}

	protocol := exporter.Protocol(c.Protocol)
	endpoint := exporter.TracesEndpoint(protocol, c.Endpoint, c.TracesEndpoint)
	opts = append([]exporter.Option{exporter.Timeout(c.Timeout)}, opts...)
	return exporter.New(protocol, endpoint, headers, opts...)
}

var otlpDefaults = config.Map{
	"protocol": string(exporter.ProtocolHTTPJSON),
	"timeout":  10 * time.Second,
}

func bindOTLPFlags(fs *pflag.FlagSet) {
	fs.StringP("endpoint", "e", "", "OTEL Exporter OTLP endpoint")
	fs.String("traces-endpoint", "", "OTEL Exporter OTLP traces endpoint")
	fs.StringP("protocol", "p", "", "OTEL Exporter OTLP protocol ("+protocolNames()+")")
	fs.StringSliceP("headers", "H", nil, "OTEL Exporter OTLP headers as key=value pairs")
	fs.Duration("timeout", 0, "OTEL Exporter OTLP timeout")

	mustBindFlag(fs, "endpoint", "otlp.endpoint")
	mustBindFlag(fs, "traces-endpoint", "otlp.traces_endpoint")
	mustBindFlag(fs, "protocol", "otlp.protocol")
	mustBindFlag(fs, "headers", "otlp.headers")
	mustBindFlag(fs, "timeout", "otlp.timeout")
}

func protocolNames() string {
	ps := exporter.Protocols()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func mustBindFlag(fs *pflag.FlagSet, name, path string) {
	err := config.BindFlag(fs, name, path)
	if err != nil {
		panic(err)
	}
}

// configFile returns the config file named by --config or the
// environment, if any.
func configFile(cmd *cobra.Command, environ []string) string {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return path
	}
	for _, pair := range environ {
		k, v, ok := strings.Cut(pair, "=")
		if ok && k == ConfigFileEnv {
			return v
		}
	}
	return ""
}

// sources returns the config sources of a command, later ones take
// precedence: defaults, config file, environment and finally flags.
func sources(cmd *cobra.Command, o *options, defaults config.Map) []config.Source {
	srcs := []config.Source{defaults}
	if path := configFile(cmd, o.environ()); path != "" {
		srcs = append(srcs, config.FromYaml(config.NewFileReader(o.fs, path)))
	}
	return append(
		srcs,
		config.FromEnviron(o.environ, envBindings...),
		config.FromFlags(cmd.Flags()),
	)
}
