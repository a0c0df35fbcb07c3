// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tether/cli/internal/logger"
)

// logoutCmd clears the session locally and, best effort, on Appwrite.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the cached user and session secret",
	Long: `The logout command deletes the current Appwrite session (best effort, so it
works offline), removes the cached user from the local store and removes the
session secret from the OS keyring.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return runLogout(cmd.Context(), cmd.OutOrStdout(), a)
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

// runLogout needs no startup check: the remote session is deleted while the
// secret is still stored, then the cached user and the secret are removed.
func runLogout(ctx context.Context, out io.Writer, a *app) error {
	if err := a.identity.DeleteSession(ctx); err != nil {
		logger.Logger.Debug().Err(err).Msg("remote logout failed")
	}
	if err := a.provider.LogOut(ctx); err != nil {
		return err
	}
	if err := a.keys.ClearAuth(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, "✅ Logged out; cached user and session secret removed")
	return nil
}
