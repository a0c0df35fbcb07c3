// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tether/cli/internal/logging"
	"tether/cli/internal/session"
)

// watchCmd prints every session transition until the startup check settles.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print session changes as they happen",
	Long: `The watch command starts the session check and prints each state change
as it happens, then exits once the check has settled.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return runWatch(ctx, cmd.OutOrStdout(), a)
	},
}

// runWatch subscribes before starting the check so the first loading
// snapshot is printed too. It returns after the first settled snapshot.
func runWatch(ctx context.Context, out io.Writer, a *app) error {
	updates, cancel := a.provider.Subscribe()
	defer cancel()
	ctx = a.start(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), describeState(st.IsLoading, st.IsLoggedIn, st.User.Label()))
			if st.IsLoading {
				continue
			}
			if res := session.FromContext(ctx).Result(); res.Err != nil {
				fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), logging.PresentError(res.Outcome.String(), res.Err))
			}
			return nil
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
