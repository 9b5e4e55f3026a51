// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !unix

package cli

import "os/exec"

func detach(cmd *exec.Cmd) {}
