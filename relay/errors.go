// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package relay

import "fmt"

// ShutdownError is returned by [Controller.Shutdown] when the pending
// exports could not be drained.
type ShutdownError struct {
	Cause error
}

// Error implements the [error] interface.
func (e ShutdownError) Error() string {
	return fmt.Sprintf("relay: shutdown failed: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ShutdownError) Unwrap() error {
	return e.Cause
}

// MalformedRequestError occurs when an export request body is not a
// valid trace data document.
type MalformedRequestError struct {
	Cause error
}

// Error implements the [error] interface.
func (e MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed export request: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e MalformedRequestError) Unwrap() error {
	return e.Cause
}
