// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cli implements the otel-cli command tree.
package cli

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"

	"github.com/z5labs/otel-cli/internal/maskslog"
	"github.com/z5labs/otel-cli/internal/otelslog"
	"github.com/z5labs/otel-cli/lifecycle"

	"github.com/spf13/cobra"
)

// Name of the binary.
const Name = "otel-cli"

type options struct {
	environ    func() []string
	getppid    func() int
	fs         fs.FS
	terminate  func(int)
	registry   *lifecycle.Registry
	spawn      func(*exec.Cmd) error
	executable func() (string, error)
}

// Option configures the command tree returned by [New].
type Option func(*options)

// Environ replaces [os.Environ] as the source of environment variables.
func Environ(f func() []string) Option {
	return func(o *options) {
		o.environ = f
	}
}

// FS sets the file system config files are read from.
func FS(fsys fs.FS) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// Terminator replaces [lifecycle.Exit] as the way a relay ends the process.
func Terminator(f func(code int)) Option {
	return func(o *options) {
		o.terminate = f
	}
}

// Registry sets the exit hook registry used by the relay.
func Registry(r *lifecycle.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// Spawn replaces how a detached relay process is started.
func Spawn(f func(*exec.Cmd) error) Option {
	return func(o *options) {
		o.spawn = f
	}
}

// New returns the root otel-cli command.
func New(opts ...Option) *cobra.Command {
	o := &options{
		environ:    os.Environ,
		getppid:    os.Getppid,
		fs:         osFS{},
		terminate:  lifecycle.Exit,
		spawn:      spawnDetached,
		executable: os.Executable,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = lifecycle.Default()
	}

	cmd := &cobra.Command{
		Use:           Name,
		Short:         "OTEL CLI is a command-line tool for sending OpenTelemetry traces",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose mode")
	flags.String("config", "", "Path to a YAML config file")
	mustBindFlag(flags, "verbose", "verbose")

	cmd.AddCommand(
		exportCommand(o),
		generateIDCommand(o),
		startServerCommand(o),
		shutdownServerCommand(o),
	)
	return cmd
}

func newLogHandler(w io.Writer, verbose bool) slog.Handler {
	lvl := slog.LevelInfo
	if verbose {
		lvl = slog.LevelDebug
	}
	return maskslog.NewHandler(
		otelslog.NewTextHandler(w, lvl),
		maskslog.Attr("headers", maskslog.KeyValueAttr),
	)
}

type osFS struct{}

func (osFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}
