// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle centralises process termination. Components register
// exit hooks with [OnExit] and every path which ends the process, explicit
// calls and termination signals alike, goes through [Exit] so the hooks
// run exactly once.
package lifecycle

import (
	"context"
	"errors"
)

// Hook represents functionality that needs to be performed
// before the process exits.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	errs := make([]error, 0, len(mh))
	for _, h := range mh {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// MultiHook returns a [Hook] that's the logical concatenation
// of the provided [Hook]s. They're applied sequentially and a
// failing [Hook] does not prevent the following ones from running.
func MultiHook(hooks ...Hook) Hook {
	return multiHook(hooks)
}

type exitCodeKey struct{}

// ExitCode returns the exit code the process is terminating with. It is
// only available on the [context.Context] given to exit hooks.
func ExitCode(ctx context.Context) (int, bool) {
	code, ok := ctx.Value(exitCodeKey{}).(int)
	return code, ok
}
