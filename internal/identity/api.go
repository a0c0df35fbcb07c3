// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package identity talks to the Appwrite account API, the remote source of
// truth for who the current user is. It defines the API contract the CLI
// depends on and a REST implementation on top of resty.
package identity

import (
	"context"

	"tether/cli/internal/principal"
)

// API defines identity operations the CLI depends on.
// Implementations may call the real Appwrite endpoint or provide fakes for tests.
type API interface {
	// CurrentUser returns the authenticated user, or nil with a nil error when
	// the caller is anonymous.
	CurrentUser(ctx context.Context) (principal.User, error)
	// CreateEmailSession signs in with email and password.
	CreateEmailSession(ctx context.Context, email, password string) (Session, error)
	// DeleteSession invalidates the current session on the server.
	DeleteSession(ctx context.Context) error
	// GetVersion returns the Appwrite server version.
	GetVersion(ctx context.Context) (string, error)
}

// Session is the subset of an Appwrite session the CLI keeps.
type Session struct {
	ID     string `json:"$id"`
	UserID string `json:"userId"`
	Expire string `json:"expire"`
	// Secret authenticates later requests through the X-Appwrite-Session header.
	Secret string `json:"secret"`
}

// SecretFunc supplies the stored session secret; "" means no session.
type SecretFunc func(ctx context.Context) (string, error)
