// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// unmounted answers FromContext when no provider was attached: loading,
// logged out, and deaf to LogIn/LogOut.
var unmounted = &Provider{
	key:      DefaultKey,
	log:      zerolog.Nop(),
	detached: true,
	state:    initialState(),
	result:   Result{Outcome: OutcomePending},
	done:     make(chan struct{}),
	subs:     make(map[int]chan State),
}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the provider attached to ctx. Without one it returns a
// detached provider that always reports the initial state.
func FromContext(ctx context.Context) *Provider {
	if p, ok := ctx.Value(contextKey{}).(*Provider); ok && p != nil {
		return p
	}
	return unmounted
}
