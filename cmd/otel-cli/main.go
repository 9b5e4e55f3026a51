// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/z5labs/otel-cli/internal/cli"
	"github.com/z5labs/otel-cli/lifecycle"
)

func main() {
	err := cli.New().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.Name, err)
		lifecycle.Exit(1)
	}
	lifecycle.Exit(0)
}
