// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session owns the process-wide session state: whether the startup
// check is still running, whether a user is logged in, and who that user is.
//
// A Provider runs a one-shot cache-aside bootstrap: the cached user in the
// local store wins; otherwise the identity service is asked and a positive
// answer is written back to the store for the next launch. Failures degrade
// to the logged-out state and are kept as a typed Result for diagnostics.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tether/cli/internal/principal"
)

// DefaultKey is the store key holding the serialized user.
const DefaultKey = "user"

// Store is the local key-value store the cached user lives in.
type Store interface {
	// Get returns the value under key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Identity is the remote source of truth for the current user.
type Identity interface {
	// CurrentUser returns nil with a nil error when nobody is signed in.
	CurrentUser(ctx context.Context) (principal.User, error)
}

// State is a snapshot of the session.
type State struct {
	IsLoading  bool           `json:"isLoading"`
	IsLoggedIn bool           `json:"isLoggedIn"`
	User       principal.User `json:"user"`
}

func initialState() State {
	return State{IsLoading: true}
}

// ErrNilUser is returned by LogIn when called without a user.
var ErrNilUser = errors.New("session: log in requires a user")

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// WithKey overrides the store key holding the serialized user.
func WithKey(key string) Option {
	return func(p *Provider) { p.key = key }
}

// Provider holds the session state and runs the startup check.
type Provider struct {
	store  Store
	remote Identity
	key    string
	log    zerolog.Logger

	// detached providers back FromContext when nothing was attached.
	detached bool

	mu        sync.RWMutex
	state     State
	result    Result
	started   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
	doneOnce  sync.Once
	subs      map[int]chan State
	nextSubID int
}

// NewProvider creates a provider in its initial state: loading, logged out.
func NewProvider(store Store, remote Identity, opts ...Option) *Provider {
	p := &Provider{
		store:  store,
		remote: remote,
		key:    DefaultKey,
		log:    log.Logger,
		state:  initialState(),
		result: Result{Outcome: OutcomePending},
		done:   make(chan struct{}),
		subs:   make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the bootstrap in the background. Only the first call has an
// effect; the check is never re-run for the lifetime of the provider.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed || p.detached {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.bootstrap(ctx)
}

// Close cancels an in-flight bootstrap. A check that completes afterwards is
// ignored and the state stays as it was at Close.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancel := p.cancel
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.markDone()
}

// Done is closed once the bootstrap has settled or the provider is closed.
func (p *Provider) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until Done or ctx expires and returns the bootstrap result.
func (p *Provider) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.Result(), nil
	case <-ctx.Done():
		return p.Result(), ctx.Err()
	}
}

// State returns a snapshot of the session. The user is a copy.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

// IsLoading reports whether the startup check is still running.
func (p *Provider) IsLoading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.IsLoading
}

// IsLoggedIn reports whether a user is established.
func (p *Provider) IsLoggedIn() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.IsLoggedIn
}

// User returns a copy of the current user, or nil.
func (p *Provider) User() principal.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.User.Clone()
}

// Result returns how the bootstrap ended, or OutcomePending while it runs.
func (p *Provider) Result() Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result
}

// LogIn sets the user and the logged-in flag together and writes the user to
// the store so the next launch finds it. The in-memory state changes even
// when the write fails; the write error is returned.
func (p *Provider) LogIn(ctx context.Context, u principal.User) error {
	if u == nil {
		return ErrNilUser
	}
	if p.detached {
		return nil
	}
	if !p.apply(func(s *State) {
		s.User = u.Clone()
		s.IsLoggedIn = true
	}) {
		return nil
	}

	raw, err := principal.Encode(u)
	if err != nil {
		return fmt.Errorf("session: log in: %w", err)
	}
	if err := p.store.Set(ctx, p.key, raw); err != nil {
		p.log.Warn().Err(err).Str("key", p.key).Msg("failed to cache user after log in")
		return fmt.Errorf("session: log in: %w", err)
	}
	return nil
}

// LogOut clears the user and the logged-in flag together and removes the
// cached user so the next launch asks the identity service again.
func (p *Provider) LogOut(ctx context.Context) error {
	if p.detached {
		return nil
	}
	if !p.apply(func(s *State) {
		s.User = nil
		s.IsLoggedIn = false
	}) {
		return nil
	}
	if err := p.store.Delete(ctx, p.key); err != nil {
		p.log.Warn().Err(err).Str("key", p.key).Msg("failed to remove cached user after log out")
		return fmt.Errorf("session: log out: %w", err)
	}
	return nil
}

// Subscribe returns a channel receiving the newest state after every change,
// and a function to stop the subscription. The channel holds at most one
// pending snapshot; a slow reader only ever sees the latest one. The channel
// is closed by cancel or by Close.
func (p *Provider) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := p.nextSubID
	p.nextSubID++
	p.subs[id] = ch
	ch <- p.snapshotLocked()
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.subs[id]; ok {
				close(c)
				delete(p.subs, id)
			}
		})
	}
}

// apply mutates the state under the lock and notifies subscribers. It
// reports false, leaving the state untouched, once the provider is closed.
func (p *Provider) apply(mutate func(s *State)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	mutate(&p.state)
	p.notifyLocked()
	return true
}

func (p *Provider) snapshotLocked() State {
	s := p.state
	s.User = s.User.Clone()
	return s
}

func (p *Provider) notifyLocked() {
	snap := p.snapshotLocked()
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- State{IsLoading: snap.IsLoading, IsLoggedIn: snap.IsLoggedIn, User: snap.User.Clone()}:
		default:
		}
	}
}

func (p *Provider) markDone() {
	p.doneOnce.Do(func() { close(p.done) })
}
