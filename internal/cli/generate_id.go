// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"
	"fmt"

	"github.com/z5labs/otel-cli/config"
	"github.com/z5labs/otel-cli/internal/app"
	"github.com/z5labs/otel-cli/tracedata"

	"github.com/spf13/cobra"
)

type generateIDConfig struct {
	ID struct {
		Type string `config:"type"`
	} `config:"id"`
}

var idGenerators = map[string]func() (string, error){
	"trace": tracedata.GenerateTraceID,
	"span":  tracedata.GenerateSpanID,
}

// Validate implements the [app.Validator] interface.
func (c generateIDConfig) Validate() error {
	if _, ok := idGenerators[c.ID.Type]; !ok {
		return UnknownIDTypeError{Type: c.ID.Type}
	}
	return nil
}

func generateIDCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-id",
		Short: "Print a random trace or span id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(
				cmd.Context(),
				app.BuilderFunc[generateIDConfig](func(ctx context.Context, cfg generateIDConfig) (app.App, error) {
					generate := idGenerators[cfg.ID.Type]
					return app.Func(func(ctx context.Context) error {
						id, err := generate()
						if err != nil {
							return err
						}
						_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
						return err
					}), nil
				}),
				sources(cmd, o, config.Map{})...,
			)
		},
	}

	fs := cmd.Flags()
	fs.StringP("type", "t", "", "Type of the id to be generated (trace, span)")
	mustBindFlag(fs, "type", "id.type")
	cmd.MarkFlagRequired("type")

	return cmd
}
