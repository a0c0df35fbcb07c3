// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the Tether CLI.
// It wires configuration, the OS keyring and the Appwrite identity service
// into a session provider and exposes commands to inspect and change the
// signed-in user, built on the Cobra CLI framework.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tether/cli/internal/config"
	"tether/cli/internal/logger"
)

var (
	cfgFile     string
	showVersion bool

	v   = viper.New()
	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "tether",
	Short:         "Tether keeps track of who is signed in to your Appwrite project",
	Long:          `Tether restores the signed-in Appwrite user from a local cache on startup, falling back to the Appwrite account API, and lets you log in and out from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		logger.Logger.Debug().
			Str("endpoint", cfg.Appwrite.Endpoint).
			Str("store", cfg.Store.Backend).
			Msg("configuration loaded")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			return printVersion(cmd.Context(), cmd.OutOrStdout())
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and Appwrite version information")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/tether/config.yaml)")
	pf.String("endpoint", "", "Appwrite API endpoint")
	pf.String("project", "", "Appwrite project ID")
	pf.String("log-level", "", "log level (debug, info, warn, error, off)")
	pf.String("log-format", "", "log format (console, json)")

	_ = v.BindPFlag("appwrite.endpoint", pf.Lookup("endpoint"))
	_ = v.BindPFlag("appwrite.project", pf.Lookup("project"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log.format", pf.Lookup("log-format"))
}
