// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"
	"time"

	"github.com/z5labs/otel-cli/config"
	"github.com/z5labs/otel-cli/exporter"
	"github.com/z5labs/otel-cli/internal/app"
	"github.com/z5labs/otel-cli/relay"

	"github.com/spf13/cobra"
)

// ShutdownTimeout bounds how long shutdown-server waits for the relay
// to drain.
const ShutdownTimeout = 30 * time.Second

type shutdownServerConfig struct {
	Verbose bool `config:"verbose"`

	Server struct {
		Host string `config:"host"`
		Port int    `config:"port"`
	} `config:"server"`
}

func shutdownServerCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shutdown-server",
		Short: "Gracefully stop a running relay once its pending exports finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := config.Map{
				"server": config.Map{
					"host": relay.DefaultHost,
					"port": relay.DefaultPort,
				},
			}

			return app.Run(
				cmd.Context(),
				app.BuilderFunc[shutdownServerConfig](func(ctx context.Context, cfg shutdownServerConfig) (app.App, error) {
					if cfg.Server.Port == 0 {
						return nil, MissingOptionError{Option: "server port"}
					}

					r := exporter.NewRelay(
						cfg.Server.Host,
						cfg.Server.Port,
						exporter.Timeout(ShutdownTimeout),
						exporter.LogHandler(newLogHandler(cmd.ErrOrStderr(), cfg.Verbose)),
					)
					return app.Func(r.Shutdown), nil
				}),
				sources(cmd, o, defaults)...,
			)
		},
	}

	fs := cmd.Flags()
	fs.Int("server-port", 0, "Port of the relay to shut down")
	mustBindFlag(fs, "server-port", "server.port")

	return cmd
}
