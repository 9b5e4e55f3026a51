// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides the plumbing shared by every otel-cli command:
// reading config, building the command's [App] and running it.
package app

import (
	"context"
	"fmt"

	"github.com/z5labs/otel-cli/config"
	"github.com/z5labs/otel-cli/internal/try"

	"golang.org/x/sync/errgroup"
)

// App is the body of a command.
type App interface {
	Run(context.Context) error
}

// Func is a func variant of the [App] interface.
type Func func(context.Context) error

// Run implements the [App] interface.
func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}

// Builder turns a command's config into its [App].
type Builder[T any] interface {
	Build(ctx context.Context, cfg T) (App, error)
}

// BuilderFunc is a func variant of the [Builder] interface.
type BuilderFunc[T any] func(context.Context, T) (App, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context, cfg T) (App, error) {
	return f(ctx, cfg)
}

// Validator is implemented by configs which can reject themselves
// before an [App] is built from them.
type Validator interface {
	Validate() error
}

// Run merges srcs into a T, builds an [App] from it and runs it. Each
// stage wraps its failure in its own error type.
func Run[T any](ctx context.Context, b Builder[T], srcs ...config.Source) error {
	m, err := config.Read(srcs...)
	if err != nil {
		return ConfigReadError{Cause: err}
	}

	var cfg T
	if err = m.Unmarshal(&cfg); err != nil {
		return ConfigUnmarshalError{Cause: err}
	}
	if v, ok := any(cfg).(Validator); ok {
		if err = v.Validate(); err != nil {
			return ConfigUnmarshalError{Cause: err}
		}
	}

	a, err := b.Build(ctx, cfg)
	if err != nil {
		return AppBuildError{Cause: err}
	}
	if err = a.Run(ctx); err != nil {
		return AppRunError{Cause: err}
	}
	return nil
}

// Recover turns a panic in a into a [try.PanicError].
func Recover(a App) App {
	return Func(func(ctx context.Context) (err error) {
		defer try.Recover(&err)
		return a.Run(ctx)
	})
}

// Concurrently runs apps at once and waits for all of them. The first
// failure cancels the context of the rest.
func Concurrently(apps ...App) App {
	return Func(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, a := range apps {
			g.Go(func() error {
				return a.Run(gctx)
			})
		}
		return g.Wait()
	})
}

// ConfigReadError occurs when a config source fails to apply.
type ConfigReadError struct {
	Cause error
}

func (e ConfigReadError) Error() string {
	return fmt.Sprintf("reading config: %s", e.Cause)
}

func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// ConfigUnmarshalError occurs when the merged config can not be decoded
// into the command's config type or fails its own validation.
type ConfigUnmarshalError struct {
	Cause error
}

func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("invalid config: %s", e.Cause)
}

func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// AppBuildError occurs when a command can not be built from its config.
type AppBuildError struct {
	Cause error
}

func (e AppBuildError) Error() string {
	return e.Cause.Error()
}

func (e AppBuildError) Unwrap() error {
	return e.Cause
}

// AppRunError occurs when a command fails while running.
type AppRunError struct {
	Cause error
}

func (e AppRunError) Error() string {
	return e.Cause.Error()
}

func (e AppRunError) Unwrap() error {
	return e.Cause
}
