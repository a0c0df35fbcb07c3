// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tether/cli/internal/httperrors"
	"tether/cli/internal/identity"
	"tether/cli/internal/logger"
	"tether/cli/internal/logging"
	"tether/cli/internal/session"
	"tether/cli/internal/terminal"
)

var (
	loginEmail string
	stdin      = bufio.NewReader(os.Stdin)
)

// credentials supplies the email and password to sign in with.
type credentials func() (email, password string, err error)

// loginCmd signs in with an Appwrite email/password session.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Sign in to Appwrite with email and password",
	Long: `The login command creates an Appwrite email session, stores the session secret
in the OS keyring and caches the signed-in user for the next run.

If a session is already restored, the command reports it and does nothing.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return runLogin(ctx, cmd.OutOrStdout(), a, promptCredentials)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
}

// runLogin restores the session and only asks for credentials when nobody is
// signed in.
func runLogin(ctx context.Context, out io.Writer, a *app, creds credentials) error {
	ctx = a.start(ctx)
	p := session.FromContext(ctx)
	if _, err := p.Wait(ctx); err != nil {
		return err
	}
	if p.IsLoggedIn() {
		fmt.Fprintf(out, "Already logged in as %s\n", p.User().Label())
		return nil
	}

	email, password, err := creds()
	if err != nil {
		return err
	}
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	sess, err := a.identity.CreateEmailSession(ctx, email, password)
	if errors.Is(err, identity.ErrUnauthorized) {
		fmt.Fprintln(out, "❌ Invalid email or password")
		return err
	}
	if err != nil {
		return networkFailure(out, err, "signing in to "+httperrors.ExtractHostFromURL(cfg.Appwrite.Endpoint))
	}
	if err := a.keys.SaveSessionSecret(ctx, sess.Secret); err != nil {
		return fmt.Errorf("save session secret: %w", err)
	}

	u, err := a.identity.CurrentUser(ctx)
	if err != nil {
		return networkFailure(out, err, "loading your account")
	}
	if u == nil {
		return errors.New("appwrite accepted the credentials but reported no signed-in user")
	}
	if err := p.LogIn(ctx, u); err != nil {
		logger.Logger.Warn().Err(err).Msg("signed in but could not cache the user")
	}

	fmt.Fprintf(out, "✅ Logged in as %s\n", u.Label())
	return nil
}

func networkFailure(out io.Writer, err error, action string) error {
	fmt.Fprintln(out, logging.NetworkErrorMessage(err, action))
	return fmt.Errorf("network error: %w", err)
}

func promptCredentials() (string, string, error) {
	email := strings.TrimSpace(loginEmail)
	if email == "" {
		var err error
		if email, err = promptLine("Email: "); err != nil {
			return "", "", err
		}
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echo when stdin is a terminal.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(prompt)
	}
	fmt.Print(prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	terminal.ClearPreviousLines(len(prompt))
	return string(raw), nil
}
