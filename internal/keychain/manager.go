// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for tether.
// It is the default local key-value store behind the session provider: the cached
// user record and the Appwrite session secret both live in the OS credential store.
//
// Native backends are preferred (macOS Keychain, Windows Credential Manager,
// Secret Service, KWallet, pass). When none is available the encrypted file
// backend is used, keyed by TETHER_KEYRING_PASSWORD.
package keychain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "tether"

// Keys used for storing values in the OS keychain.
const (
	KeyUser          = "user"
	KeySessionSecret = "session_secret"
)

// PasswordEnv names the variable holding the file backend passphrase.
const PasswordEnv = "TETHER_KEYRING_PASSWORD"

// ErrNoPassword is returned by the file backend when no passphrase is configured.
var ErrNoPassword = errors.New("keychain: file backend needs " + PasswordEnv)

// Manager provides thread-safe Get/Set/Delete over a keyring.Keyring.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Options configures Open.
type Options struct {
	// FileDir is where the file backend keeps its encrypted items.
	FileDir string
}

// Open opens the OS keyring, falling back to the file backend.
func Open(opts Options) (*Manager, error) {
	cfg := keyring.Config{
		ServiceName:                    ServiceName,
		KeychainTrustApplication:       true,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		LibSecretCollectionName:        ServiceName,
		KWalletAppID:                   ServiceName,
		KWalletFolder:                  ServiceName,
		WinCredPrefix:                  ServiceName,
		PassPrefix:                     ServiceName,
		FileDir:                        opts.FileDir,
		FilePasswordFunc:               filePassword,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewManagerWithRing(ring), nil
}

// NewManagerWithRing wraps an already opened keyring, e.g. keyring.NewArrayKeyring in tests.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

func filePassword(string) (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	return "", ErrNoPassword
}

// Get returns the value stored under key. A missing key is reported as
// ok == false with a nil error.
func (m *Manager) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("keychain get %q: %w", key, err)
	}
	return string(it.Data), true, nil
}

// Set stores value under key, replacing any previous value.
func (m *Manager) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       ServiceName + " " + key,
		Description: "tether session data",
	}
	if err := m.ring.Set(item); err != nil {
		return fmt.Errorf("keychain set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (m *Manager) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !os.IsNotExist(err) {
		return fmt.Errorf("keychain delete %q: %w", key, err)
	}
	return nil
}

// SessionSecret returns the stored Appwrite session secret, or "" when none is stored.
func (m *Manager) SessionSecret(ctx context.Context) (string, error) {
	v, _, err := m.Get(ctx, KeySessionSecret)
	return v, err
}

// SaveSessionSecret stores the Appwrite session secret.
func (m *Manager) SaveSessionSecret(ctx context.Context, secret string) error {
	return m.Set(ctx, KeySessionSecret, secret)
}

// ClearAuth removes the session secret. The cached user is owned by the
// session store, which may not be this keyring; session.Provider.LogOut
// removes it.
func (m *Manager) ClearAuth(ctx context.Context) error {
	return m.Delete(ctx, KeySessionSecret)
}
