// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import "fmt"

// MissingOptionError occurs when a required option was neither given as a
// flag nor found in the environment or config file.
type MissingOptionError struct {
	Option string
}

// Error implements the [error] interface.
func (e MissingOptionError) Error() string {
	return fmt.Sprintf("%s must be specified", e.Option)
}

// UnknownIDTypeError is returned by generate-id for anything other than
// trace or span.
type UnknownIDTypeError struct {
	Type string
}

// Error implements the [error] interface.
func (e UnknownIDTypeError) Error() string {
	return fmt.Sprintf("unrecognized id type: %q", e.Type)
}
