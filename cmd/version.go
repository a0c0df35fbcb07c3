// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tether/cli/internal/identity"
)

var (
	// Version holds the CLI version information.
	// This value is typically set at build time using -ldflags.
	Version = "0.0.0-dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI and Appwrite server versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printVersion prints the CLI version and, when an endpoint is configured, the
// Appwrite server version. No session is needed.
func printVersion(ctx context.Context, out io.Writer) error {
	serverVersion := "unknown"
	if cfg.Appwrite.Endpoint != "" {
		c := identity.New(identity.Options{
			Endpoint:  cfg.Appwrite.Endpoint,
			Project:   cfg.Appwrite.Project,
			Timeout:   cfg.Identity.Timeout,
			UserAgent: "tether-cli/" + Version,
		})
		if v, err := c.GetVersion(ctx); err == nil {
			serverVersion = v
		}
	}
	fmt.Fprintf(out, "tether %s\nappwrite %s\n", Version, serverVersion)
	return nil
}
