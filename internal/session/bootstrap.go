// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"fmt"

	tethererrors "tether/cli/internal/errors"
	"tether/cli/internal/principal"
)

// Outcome tells how the bootstrap settled.
type Outcome int

const (
	// OutcomePending means the bootstrap has not settled yet.
	OutcomePending Outcome = iota
	// OutcomeCached means the user came from the local store.
	OutcomeCached
	// OutcomeRemote means the identity service returned the user.
	OutcomeRemote
	// OutcomeAnonymous means the identity service confirmed nobody is signed in.
	OutcomeAnonymous
	// OutcomeFailed means the check failed; the session looks logged out.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCached:
		return "cached"
	case OutcomeRemote:
		return "remote"
	case OutcomeAnonymous:
		return "anonymous"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the typed outcome of the bootstrap. Err is set for OutcomeFailed,
// and for OutcomeRemote when writing the user back to the store failed.
type Result struct {
	Outcome Outcome
	Err     error
}

// stage is how far the check got; a panic is attributed to it.
type stage int

const (
	stageRead stage = iota
	stageDecode
	stageRemote
	stagePersist
)

// bootstrap runs the cache-aside check once. Loading is cleared on every
// exit path, including a panic in a collaborator.
func (p *Provider) bootstrap(ctx context.Context) {
	at := stageRead
	res := Result{Outcome: OutcomeFailed}
	defer func() {
		if r := recover(); r != nil {
			res = p.recovered(ctx, at, fmt.Errorf("panic: %v", r))
		}
		p.settle(res)
	}()

	res = p.check(ctx, &at)
}

func (p *Provider) check(ctx context.Context, at *stage) Result {
	raw, ok, err := p.store.Get(ctx, p.key)
	if err != nil {
		return p.failed(ctx, tethererrors.Wrap(tethererrors.StoreReadFailed, "read cached user", err))
	}

	if ok && raw != "" {
		*at = stageDecode
		u, err := principal.Decode(raw)
		if err != nil {
			return p.failed(ctx, tethererrors.Wrap(tethererrors.DecodeFailed, "decode cached user", err))
		}
		p.apply(func(s *State) {
			s.User = u
			s.IsLoggedIn = true
		})
		p.log.Debug().Str("source", "cache").Msg("session restored")
		return Result{Outcome: OutcomeCached}
	}

	*at = stageRemote
	u, err := p.remote.CurrentUser(ctx)
	if err != nil {
		return p.failed(ctx, tethererrors.Wrap(tethererrors.RemoteCheckFailed, "fetch current user", err))
	}
	if u == nil {
		p.log.Debug().Msg("no active session")
		return Result{Outcome: OutcomeAnonymous}
	}

	if !p.apply(func(s *State) {
		s.User = u.Clone()
		s.IsLoggedIn = true
	}) {
		return Result{Outcome: OutcomeRemote}
	}
	p.log.Debug().Str("source", "remote").Msg("session restored")

	*at = stagePersist
	res := Result{Outcome: OutcomeRemote}
	encoded, err := principal.Encode(u)
	if err == nil {
		err = p.store.Set(ctx, p.key, encoded)
	}
	if err != nil {
		res.Err = p.persistFailed(err)
	}
	return res
}

// recovered turns a panic into the result of the stage it happened in. Once
// the user is applied the session stays logged in and only caching failed.
func (p *Provider) recovered(ctx context.Context, at stage, err error) Result {
	switch at {
	case stagePersist:
		return Result{Outcome: OutcomeRemote, Err: p.persistFailed(err)}
	case stageRead:
		return p.failed(ctx, tethererrors.Wrap(tethererrors.StoreReadFailed, "read cached user", err))
	case stageDecode:
		return p.failed(ctx, tethererrors.Wrap(tethererrors.DecodeFailed, "decode cached user", err))
	default:
		return p.failed(ctx, tethererrors.Wrap(tethererrors.RemoteCheckFailed, "fetch current user", err))
	}
}

func (p *Provider) persistFailed(err error) error {
	wrapped := tethererrors.Wrap(tethererrors.PersistFailed, "cache current user", err)
	p.log.Warn().Err(wrapped).Msg("failed to cache user; next launch will ask the identity service again")
	return wrapped
}

// failed logs a check failure. A canceled check is only noted at debug level;
// whoever canceled it no longer wants the result.
func (p *Provider) failed(ctx context.Context, err error) Result {
	if ctx.Err() != nil {
		p.log.Debug().Err(err).Msg("session check canceled")
	} else {
		p.log.Error().Err(err).Msg("error checking user session")
	}
	return Result{Outcome: OutcomeFailed, Err: err}
}

// settle records the result, clears the loading flag and releases waiters.
// Nothing changes when the provider was closed first.
func (p *Provider) settle(res Result) {
	p.mu.Lock()
	if !p.closed {
		p.result = res
		p.state.IsLoading = false
		p.notifyLocked()
	}
	p.mu.Unlock()
	p.markDone()
}
