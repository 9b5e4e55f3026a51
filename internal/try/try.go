// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try turns panics and deferred close failures into errors.
package try

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
)

// PanicError is a recovered panic value along with the stack of the
// goroutine which panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the [error] interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recover must be called directly by defer. A recovered panic is
// appended to *err as a [PanicError].
func Recover(err *error) {
	if v := recover(); v != nil {
		join(err, PanicError{Value: v, Stack: debug.Stack()})
	}
}

// CloseError is a failed call to Close.
type CloseError struct {
	Cause error
}

// Error implements the [error] interface.
func (e CloseError) Error() string {
	return "close: " + e.Cause.Error()
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CloseError) Unwrap() error {
	return e.Cause
}

// Close is meant to be deferred on values which may or may not be an
// [io.Closer], e.g. an exporter or a config source. Nothing happens
// unless v implements [io.Closer].
func Close(err *error, v any) {
	c, ok := v.(io.Closer)
	if !ok || c == nil {
		return
	}
	if cerr := c.Close(); cerr != nil {
		join(err, CloseError{Cause: cerr})
	}
}

func join(dst *error, err error) {
	if *dst != nil {
		err = errors.Join(*dst, err)
	}
	*dst = err
}
