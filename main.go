// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the Tether CLI.
package main

import (
	"tether/cli/cmd"
)

func main() {
	cmd.Execute()
}
