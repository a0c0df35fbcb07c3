// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tethererrors "tether/cli/internal/errors"
	"tether/cli/internal/principal"
)

// memStore is an in-memory Store that records writes.
type memStore struct {
	mu        sync.Mutex
	data      map[string]string
	getErr    error
	setErr    error
	setPanics bool
	delErr    error
	sets      int
	deletes   int
}

func newMemStore(kv map[string]string) *memStore {
	if kv == nil {
		kv = map[string]string{}
	}
	return &memStore{data: kv}
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setPanics {
		panic("store exploded")
	}
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, key)
	return nil
}

func (m *memStore) value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// fakeIdentity answers CurrentUser, optionally blocking until released.
type fakeIdentity struct {
	mu      sync.Mutex
	user    principal.User
	err     error
	panics  bool
	calls   int
	release chan struct{}
}

func (f *fakeIdentity) CurrentUser(ctx context.Context) (principal.User, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panics {
		panic("identity exploded")
	}
	return f.user, f.err
}

func (f *fakeIdentity) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestProvider(store Store, remote Identity) *Provider {
	return NewProvider(store, remote, WithLogger(zerolog.Nop()))
}

func waitSettled(t *testing.T, p *Provider) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := p.Wait(ctx)
	require.NoError(t, err, "bootstrap did not settle")
	return res
}

func TestInitialState(t *testing.T) {
	p := newTestProvider(newMemStore(nil), &fakeIdentity{})

	assert.Equal(t, State{IsLoading: true, IsLoggedIn: false, User: nil}, p.State())
	assert.Equal(t, OutcomePending, p.Result().Outcome)
}

func TestLoadingUntilSettled(t *testing.T) {
	remote := &fakeIdentity{user: principal.User{"id": "u1"}, release: make(chan struct{})}
	p := newTestProvider(newMemStore(nil), remote)
	p.Start(context.Background())

	assert.True(t, p.IsLoading())
	select {
	case <-p.Done():
		t.Fatal("bootstrap settled before the identity call returned")
	case <-time.After(20 * time.Millisecond):
	}
	assert.True(t, p.IsLoading())

	close(remote.release)
	waitSettled(t, p)
	assert.False(t, p.IsLoading())
}

func TestBootstrapPaths(t *testing.T) {
	ann := principal.User{"id": "u1", "name": "Ann"}

	tests := []struct {
		name        string
		stored      map[string]string
		getErr      error
		setErr      error
		setPanics   bool
		remote      *fakeIdentity
		wantState   State
		wantOutcome Outcome
		wantKind    tethererrors.Kind
		wantCalls   int
		wantStored  string
		wantSets    int
	}{
		{
			name:        "cache hit skips the identity service",
			stored:      map[string]string{"user": `{"id":"u1","name":"Ann"}`},
			remote:      &fakeIdentity{user: principal.User{"id": "other"}},
			wantState:   State{IsLoggedIn: true, User: ann},
			wantOutcome: OutcomeCached,
			wantCalls:   0,
			wantStored:  `{"id":"u1","name":"Ann"}`,
		},
		{
			name:        "cache miss and remote hit persists the user",
			remote:      &fakeIdentity{user: principal.User{"id": "u1", "name": "Ann"}},
			wantState:   State{IsLoggedIn: true, User: ann},
			wantOutcome: OutcomeRemote,
			wantCalls:   1,
			wantStored:  `{"id":"u1","name":"Ann"}`,
			wantSets:    1,
		},
		{
			name:        "empty cached value counts as a miss",
			stored:      map[string]string{"user": ""},
			remote:      &fakeIdentity{user: principal.User{"id": "u1", "name": "Ann"}},
			wantState:   State{IsLoggedIn: true, User: ann},
			wantOutcome: OutcomeRemote,
			wantCalls:   1,
			wantStored:  `{"id":"u1","name":"Ann"}`,
			wantSets:    1,
		},
		{
			name:        "cache miss and remote miss leaves the store alone",
			remote:      &fakeIdentity{},
			wantState:   State{},
			wantOutcome: OutcomeAnonymous,
			wantCalls:   1,
		},
		{
			name:        "remote error degrades to logged out",
			remote:      &fakeIdentity{err: errors.New("network down")},
			wantState:   State{},
			wantOutcome: OutcomeFailed,
			wantKind:    tethererrors.RemoteCheckFailed,
			wantCalls:   1,
		},
		{
			name:        "remote panic degrades to logged out",
			remote:      &fakeIdentity{panics: true},
			wantState:   State{},
			wantOutcome: OutcomeFailed,
			wantKind:    tethererrors.RemoteCheckFailed,
			wantCalls:   1,
		},
		{
			name:        "store read error degrades to logged out",
			getErr:      errors.New("keyring locked"),
			remote:      &fakeIdentity{user: ann},
			wantState:   State{},
			wantOutcome: OutcomeFailed,
			wantKind:    tethererrors.StoreReadFailed,
			wantCalls:   0,
		},
		{
			name:        "corrupt cache degrades to logged out",
			stored:      map[string]string{"user": `{"id":`},
			remote:      &fakeIdentity{user: ann},
			wantState:   State{},
			wantOutcome: OutcomeFailed,
			wantKind:    tethererrors.DecodeFailed,
			wantCalls:   0,
			wantStored:  `{"id":`,
		},
		{
			name:        "cached null is not a user",
			stored:      map[string]string{"user": `null`},
			remote:      &fakeIdentity{user: ann},
			wantState:   State{},
			wantOutcome: OutcomeFailed,
			wantKind:    tethererrors.DecodeFailed,
			wantStored:  `null`,
		},
		{
			name:        "persist failure keeps the session",
			setErr:      errors.New("disk full"),
			remote:      &fakeIdentity{user: principal.User{"id": "u1", "name": "Ann"}},
			wantState:   State{IsLoggedIn: true, User: ann},
			wantOutcome: OutcomeRemote,
			wantKind:    tethererrors.PersistFailed,
			wantCalls:   1,
			wantSets:    1,
		},
		{
			name:        "persist panic keeps the session",
			setPanics:   true,
			remote:      &fakeIdentity{user: principal.User{"id": "u1", "name": "Ann"}},
			wantState:   State{IsLoggedIn: true, User: ann},
			wantOutcome: OutcomeRemote,
			wantKind:    tethererrors.PersistFailed,
			wantCalls:   1,
			wantSets:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(tt.stored)
			store.getErr = tt.getErr
			store.setErr = tt.setErr
			store.setPanics = tt.setPanics

			p := newTestProvider(store, tt.remote)
			p.Start(context.Background())
			res := waitSettled(t, p)

			assert.Equal(t, tt.wantState, p.State())
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			if tt.wantKind != "" {
				require.Error(t, res.Err)
				assert.True(t, tethererrors.IsKind(res.Err, tt.wantKind), "got %v", res.Err)
			} else {
				assert.NoError(t, res.Err)
			}
			assert.Equal(t, tt.wantCalls, tt.remote.callCount())
			assert.Equal(t, tt.wantSets, store.setCount())

			v, ok := store.value(DefaultKey)
			if tt.wantStored == "" {
				assert.False(t, ok && v != "", "store should not hold a user, got %q", v)
			} else {
				assert.Equal(t, tt.wantStored, v)
			}
		})
	}
}

func TestScenarioRemoteUserIsCached(t *testing.T) {
	store := newMemStore(nil)
	p := newTestProvider(store, &fakeIdentity{user: principal.User{"id": "u1", "name": "Ann"}})
	p.Start(context.Background())
	waitSettled(t, p)

	assert.Equal(t, State{
		IsLoading:  false,
		IsLoggedIn: true,
		User:       principal.User{"id": "u1", "name": "Ann"},
	}, p.State())

	v, ok := store.value("user")
	require.True(t, ok)
	assert.Equal(t, `{"id":"u1","name":"Ann"}`, v)

	// The next launch trusts the cache.
	remote := &fakeIdentity{}
	next := newTestProvider(store, remote)
	next.Start(context.Background())
	res := waitSettled(t, next)
	assert.Equal(t, OutcomeCached, res.Outcome)
	assert.True(t, next.IsLoggedIn())
	assert.Equal(t, 0, remote.callCount())
}

func TestStartOnlyOnce(t *testing.T) {
	remote := &fakeIdentity{user: principal.User{"id": "u1"}}
	p := newTestProvider(newMemStore(nil), remote)

	p.Start(context.Background())
	waitSettled(t, p)
	p.Start(context.Background())
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, remote.callCount())
}

func TestCloseIgnoresLateCompletion(t *testing.T) {
	remote := &fakeIdentity{user: principal.User{"id": "u1"}, release: make(chan struct{})}
	store := newMemStore(nil)
	p := newTestProvider(store, remote)
	p.Start(context.Background())

	require.Eventually(t, func() bool { return remote.callCount() == 1 }, time.Second, time.Millisecond)
	p.Close()
	close(remote.release)

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, State{IsLoading: true}, p.State())
	assert.Equal(t, OutcomePending, p.Result().Outcome)
	assert.Equal(t, 0, store.setCount())
	assert.NoError(t, p.LogIn(context.Background(), principal.User{"id": "u2"}))
	assert.False(t, p.IsLoggedIn(), "closed provider ignores LogIn")
}

// syncBuffer is a log sink safe to read while the bootstrap goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCanceledCheckLogsAtDebug(t *testing.T) {
	var out syncBuffer
	remote := &fakeIdentity{release: make(chan struct{})}
	p := NewProvider(newMemStore(nil), remote, WithLogger(zerolog.New(&out).Level(zerolog.DebugLevel)))
	p.Start(context.Background())
	require.Eventually(t, func() bool { return remote.callCount() == 1 }, time.Second, time.Millisecond)

	p.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "session check canceled")
	}, time.Second, time.Millisecond)
	assert.NotContains(t, out.String(), `"level":"error"`)
}

func TestCloseCancelsContext(t *testing.T) {
	remote := &fakeIdentity{release: make(chan struct{})}
	p := newTestProvider(newMemStore(nil), remote)
	p.Start(context.Background())
	require.Eventually(t, func() bool { return remote.callCount() == 1 }, time.Second, time.Millisecond)

	p.Close()
	p.Close()

	_, err := p.Wait(context.Background())
	assert.NoError(t, err)
}

func TestWaitRespectsContext(t *testing.T) {
	remote := &fakeIdentity{release: make(chan struct{})}
	p := newTestProvider(newMemStore(nil), remote)
	p.Start(context.Background())
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, OutcomePending, res.Outcome)
}

func TestLogInLogOut(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(nil)
	p := newTestProvider(store, &fakeIdentity{})
	p.Start(ctx)
	waitSettled(t, p)

	assert.ErrorIs(t, p.LogIn(ctx, nil), ErrNilUser)
	assert.False(t, p.IsLoggedIn())

	require.NoError(t, p.LogIn(ctx, principal.User{"id": "u1", "name": "Ann"}))
	st := p.State()
	assert.True(t, st.IsLoggedIn)
	assert.Equal(t, principal.User{"id": "u1", "name": "Ann"}, st.User)
	v, _ := store.value("user")
	assert.Equal(t, `{"id":"u1","name":"Ann"}`, v)

	require.NoError(t, p.LogOut(ctx))
	assert.Equal(t, State{}, p.State())
	_, ok := store.value("user")
	assert.False(t, ok)
}

func TestLogInStoreFailureStillLogsIn(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(nil)
	store.setErr = errors.New("read-only")
	p := newTestProvider(store, &fakeIdentity{})

	err := p.LogIn(ctx, principal.User{"id": "u1"})
	assert.Error(t, err)
	assert.True(t, p.IsLoggedIn())
	assert.NotNil(t, p.User())
}

func TestLogOutStoreFailureStillLogsOut(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(nil)
	p := newTestProvider(store, &fakeIdentity{})
	require.NoError(t, p.LogIn(ctx, principal.User{"id": "u1"}))

	store.delErr = errors.New("locked")
	assert.Error(t, p.LogOut(ctx))
	assert.False(t, p.IsLoggedIn())
	assert.Nil(t, p.User())
}

func TestSnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(newMemStore(nil), &fakeIdentity{})
	u := principal.User{"id": "u1"}
	require.NoError(t, p.LogIn(ctx, u))

	u["id"] = "mutated-by-caller"
	p.User()["id"] = "mutated-by-reader"
	p.State().User["id"] = "mutated-by-snapshot"

	assert.Equal(t, "u1", p.User()["id"])
}

func TestInvariantUnderConcurrentMutation(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(newMemStore(nil), &fakeIdentity{user: principal.User{"id": "u0"}})
	p.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if (i+j)%2 == 0 {
					_ = p.LogIn(ctx, principal.User{"id": "u"})
				} else {
					_ = p.LogOut(ctx)
				}
				st := p.State()
				if st.IsLoggedIn && st.User == nil {
					t.Error("logged in without a user")
				}
			}
		}(i)
	}
	wg.Wait()
	waitSettled(t, p)
}

func TestSubscribe(t *testing.T) {
	remote := &fakeIdentity{user: principal.User{"id": "u1"}, release: make(chan struct{})}
	p := newTestProvider(newMemStore(nil), remote)

	updates, cancel := p.Subscribe()
	defer cancel()

	first := <-updates
	assert.Equal(t, State{IsLoading: true}, first)

	p.Start(context.Background())
	close(remote.release)
	waitSettled(t, p)

	var last State
	require.Eventually(t, func() bool {
		select {
		case last = <-updates:
		default:
		}
		return !last.IsLoading
	}, time.Second, time.Millisecond)
	assert.True(t, last.IsLoggedIn)
	assert.Equal(t, principal.User{"id": "u1"}, last.User)
}

func TestSubscribeCancelAndClose(t *testing.T) {
	p := newTestProvider(newMemStore(nil), &fakeIdentity{})

	a, cancelA := p.Subscribe()
	b, cancelB := p.Subscribe()
	<-a
	<-b

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)

	p.Close()
	_, open = <-b
	assert.False(t, open)
	cancelB()

	c, _ := p.Subscribe()
	_, open = <-c
	assert.False(t, open, "subscribing after Close yields a closed channel")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "cached", OutcomeCached.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}
