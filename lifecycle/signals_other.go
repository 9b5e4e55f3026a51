// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !unix

package lifecycle

import "os"

// TerminationSignals returns the signals which end an otel-cli process.
func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
