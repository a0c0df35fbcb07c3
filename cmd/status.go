// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tether/cli/internal/logging"
	"tether/cli/internal/session"
)

var statusJSON bool

// statusView is the machine-readable form of a settled session.
type statusView struct {
	session.State
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func newStatusView(st session.State, res session.Result) statusView {
	sv := statusView{State: st, Outcome: res.Outcome.String()}
	if res.Err != nil {
		sv.Error = logging.Mask(res.Err.Error())
	}
	return sv
}

// statusCmd restores the session and reports who is signed in.
var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"whoami", "me"},
	Short:   "Show the signed-in Appwrite user",
	Long: `The status command restores the session the same way every tether command does:
the cached user in the local store wins, otherwise the Appwrite account API is asked
and a signed-in user is cached for next time. Failures are reported and the session
is treated as logged out.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		spin := !statusJSON && term.IsTerminal(int(os.Stdout.Fd()))
		return runStatus(cmd.Context(), cmd.OutOrStdout(), a, statusJSON, spin)
	},
}

func runStatus(ctx context.Context, out io.Writer, a *app, asJSON, spin bool) error {
	ctx = a.start(ctx)
	p := session.FromContext(ctx)

	var stop func()
	if spin {
		cursor.Hide()
		stop = startInlineSpinner(out, "Checking session", []string{"|", "/", "-", "\\"}, 120*time.Millisecond)
	}
	res, err := p.Wait(ctx)
	if stop != nil {
		stop()
		cursor.Show()
	}
	if err != nil {
		return err
	}

	if asJSON {
		return writeStatusJSON(out, newStatusView(p.State(), res))
	}
	renderStatus(out, p.State(), res)
	return nil
}

func writeStatusJSON(w io.Writer, sv statusView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sv)
}

func renderStatus(w io.Writer, st session.State, res session.Result) {
	if res.Outcome == session.OutcomeFailed {
		fmt.Fprintln(w, logging.FormatCheckError(res.Err))
		fmt.Fprintln(w)
	}

	if !st.IsLoggedIn {
		fmt.Fprintln(w, "🔒 You're not logged in.")
		fmt.Fprintln(w, "   Run 'tether login' to sign in.")
		return
	}

	source := "Appwrite"
	if res.Outcome == session.OutcomeCached {
		source = "local cache"
	}
	fmt.Fprintln(w, pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Signed in as: ")+pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(st.User.Label()))
	if id := st.User.ID(); id != "" {
		fmt.Fprintln(w, pterm.NewStyle(pterm.FgLightCyan).Sprint("→ User ID:      ")+id)
	}
	fmt.Fprintln(w, pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Restored from: ")+source)

	if res.Outcome == session.OutcomeRemote && res.Err != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "⚠️  The user could not be cached; the next run will ask Appwrite again.")
		pterm.Debug.Println(logging.PresentError("cache", res.Err))
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the session as JSON")
	rootCmd.AddCommand(statusCmd)
}
