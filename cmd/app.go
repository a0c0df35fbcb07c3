// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"tether/cli/internal/config"
	"tether/cli/internal/identity"
	"tether/cli/internal/keychain"
	"tether/cli/internal/logger"
	"tether/cli/internal/pgstore"
	"tether/cli/internal/session"
	"tether/cli/internal/xdg"
)

// app bundles the collaborators a command needs. Secrets always live in the
// keychain; the cached user lives in the configured store.
type app struct {
	keys     *keychain.Manager
	identity identity.API
	provider *session.Provider
	closers  []func()
}

// newApp validates the loaded config and builds the keychain, the user store,
// the Appwrite client and an unstarted session provider.
func newApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir := cfg.Store.KeyringDir
	if dir == "" {
		state, err := xdg.StateDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(state, "keyring")
	}
	km, err := keychain.Open(keychain.Options{FileDir: dir})
	if err != nil {
		return nil, err
	}

	var (
		store   session.Store = km
		closers []func()
	)
	if cfg.Store.Backend == config.BackendPostgres {
		pg, err := pgstore.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		store = pg
		closers = append(closers, pg.Close)
	}

	client := identity.New(identity.Options{
		Endpoint:  cfg.Appwrite.Endpoint,
		Project:   cfg.Appwrite.Project,
		Timeout:   cfg.Identity.Timeout,
		UserAgent: "tether-cli/" + Version,
		Secret:    km.SessionSecret,
	})
	a := assemble(km, store, client)
	a.closers = append(closers, a.closers...)
	return a, nil
}

// assemble wires the collaborators into an app with an unstarted provider.
func assemble(keys *keychain.Manager, store session.Store, api identity.API) *app {
	p := session.NewProvider(store, api, session.WithLogger(logger.Logger))
	return &app{
		keys:     keys,
		identity: api,
		provider: p,
		closers:  []func(){p.Close},
	}
}

// start attaches the provider to ctx and launches the startup check.
func (a *app) start(ctx context.Context) context.Context {
	ctx = session.NewContext(ctx, a.provider)
	a.provider.Start(ctx)
	return ctx
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
