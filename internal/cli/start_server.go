// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/otel-cli/config"
	"github.com/z5labs/otel-cli/exporter"
	"github.com/z5labs/otel-cli/internal/app"
	"github.com/z5labs/otel-cli/internal/httpclient"
	"github.com/z5labs/otel-cli/internal/slogfield"
	"github.com/z5labs/otel-cli/liveness"
	"github.com/z5labs/otel-cli/relay"

	"github.com/spf13/cobra"
)

type startServerConfig struct {
	Verbose bool       `config:"verbose"`
	OTLP    otlpConfig `config:"otlp"`

	Server struct {
		Host                string        `config:"host"`
		Port                uint          `config:"port"`
		PPID                int32         `config:"ppid"`
		Detach              bool          `config:"detach"`
		Concurrency         int           `config:"concurrency"`
		LivenessInterval    time.Duration `config:"liveness_interval"`
		ShutdownGracePeriod time.Duration `config:"shutdown_grace_period"`
	} `config:"server"`
}

func startServerCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Run a relay which exports spans in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := config.Map{
				"otlp": otlpDefaults,
				"server": config.Map{
					"host":                  relay.DefaultHost,
					"port":                  relay.DefaultPort,
					"ppid":                  o.getppid(),
					"concurrency":           relay.DefaultConcurrency,
					"liveness_interval":     liveness.DefaultInterval,
					"shutdown_grace_period": relay.DefaultShutdownGracePeriod,
				},
			}

			return app.Run(
				cmd.Context(),
				app.BuilderFunc[startServerConfig](func(ctx context.Context, cfg startServerConfig) (app.App, error) {
					logHandler := newLogHandler(cmd.ErrOrStderr(), cfg.Verbose)
					if cfg.Server.Detach {
						return buildDetach(cmd, o, logHandler, cfg)
					}
					return buildStartServer(o, logHandler, cfg)
				}),
				sources(cmd, o, defaults)...,
			)
		},
	}

	fs := cmd.Flags()
	bindOTLPFlags(fs)
	fs.Uint("server-port", 0, "Port the relay listens on (default 7777)")
	fs.Int("concurrency", 0, "Maximum number of concurrent exports (default 10)")
	fs.Bool("detach", false, "Run the relay as a detached background process and return immediately")

	mustBindFlag(fs, "server-port", "server.port")
	mustBindFlag(fs, "concurrency", "server.concurrency")
	mustBindFlag(fs, "detach", "server.detach")

	return cmd
}

func buildStartServer(o *options, logHandler slog.Handler, cfg startServerConfig) (app.App, error) {
	slog.New(logHandler).Debug("configuring relay exporter", slog.Any("otlp", cfg.OTLP))
	exp, err := cfg.OTLP.exporter(
		exporter.LogHandler(logHandler),
		exporter.HTTPClientOptions(httpclient.CircuitBreaker(httpclient.Breaker{})),
	)
	if err != nil {
		return nil, err
	}

	ctrl := relay.NewController(
		exp,
		relay.Concurrency(cfg.Server.Concurrency),
		relay.ShutdownGracePeriod(cfg.Server.ShutdownGracePeriod),
		relay.Terminator(o.terminate),
		relay.LogHandler(logHandler),
	)
	rt := relay.NewRuntime(
		relay.NewHandler(ctrl, relay.LogHandler(logHandler)),
		relay.Host(cfg.Server.Host),
		relay.Port(cfg.Server.Port),
		relay.LogHandler(logHandler),
	)
	monitor := liveness.NewMonitor(
		ctrl,
		cfg.Server.PPID,
		liveness.Interval(cfg.Server.LivenessInterval),
		liveness.Terminator(o.terminate),
		liveness.Registry(o.registry),
		liveness.LogHandler(logHandler),
	)

	return app.Recover(app.Concurrently(rt, monitor)), nil
}

// buildDetach re-executes otel-cli as a relay in its own session. The
// resolved config is handed over through the environment, and the relay
// watches the shell which invoked this process rather than this process.
func buildDetach(cmd *cobra.Command, o *options, logHandler slog.Handler, cfg startServerConfig) (app.App, error) {
	path, err := o.executable()
	if err != nil {
		return nil, err
	}

	protocol := exporter.Protocol(cfg.OTLP.Protocol)
	env := append(
		o.environ(),
		"OTEL_EXPORTER_OTLP_PROTOCOL="+cfg.OTLP.Protocol,
		"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT="+exporter.TracesEndpoint(protocol, cfg.OTLP.Endpoint, cfg.OTLP.TracesEndpoint),
		"OTEL_EXPORTER_OTLP_HEADERS="+strings.Join(cfg.OTLP.Headers, ","),
		"OTEL_EXPORTER_OTLP_TIMEOUT="+strconv.FormatInt(cfg.OTLP.Timeout.Milliseconds(), 10),
		"OTEL_CLI_SERVER_PORT="+strconv.FormatUint(uint64(cfg.Server.Port), 10),
		"OTEL_CLI_SERVER_PPID="+strconv.Itoa(o.getppid()),
		"OTEL_CLI_VERBOSE="+strconv.FormatBool(cfg.Verbose),
	)
	if file := configFile(cmd, o.environ()); file != "" {
		env = append(env, ConfigFileEnv+"="+file)
	}

	child := exec.Command(path, "start-server")
	child.Env = env

	log := slog.New(logHandler)
	return app.Func(func(ctx context.Context) error {
		err := o.spawn(child)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "started relay in background", slogfield.Int("port", int(cfg.Server.Port)))
		return nil
	}), nil
}

func spawnDetached(cmd *exec.Cmd) error {
	detach(cmd)
	err := cmd.Start()
	if err != nil {
		return err
	}
	return cmd.Process.Release()
}
