// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package lifecycle

import "fmt"

// HookPanicError is reported when an exit hook panics.
type HookPanicError struct {
	Value any
}

// Error implements the [error] interface.
func (e HookPanicError) Error() string {
	return fmt.Sprintf("exit hook panicked: %v", e.Value)
}
