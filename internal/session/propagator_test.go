// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/session"
)

// # Fakes

type fakeSource struct {
	mu      sync.Mutex
	token   string
	err     error
	changes chan credential.Change
}

func newFakeSource(token string) *fakeSource {
	return &fakeSource{token: token, changes: make(chan credential.Change, 4)}
}

func (f *fakeSource) Token(context.Context) (string, credential.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, credential.PolicyEphemeral, f.err
}

func (f *fakeSource) Watch(context.Context) <-chan credential.Change {
	return f.changes
}

func (f *fakeSource) set(token string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token, f.err = token, err
}

// fakeDeriver echoes the token as the subject and can hold one token until released.
type fakeDeriver struct {
	mu      sync.Mutex
	calls   map[string]int
	block   string
	entered chan struct{}
	release chan struct{}
}

func newFakeDeriver() *fakeDeriver {
	return &fakeDeriver{calls: make(map[string]int)}
}

func (f *fakeDeriver) Derive(_ context.Context, token string) session.Snapshot {
	f.mu.Lock()
	f.calls[token]++
	block := f.block == token
	f.mu.Unlock()

	if block {
		f.entered <- struct{}{}
		<-f.release
	}

	snapshot := session.Anonymous()
	snapshot.Subject = token
	return snapshot
}

func (f *fakeDeriver) count(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[token]
}

func subject(propagator *session.Propagator) func() string {
	return func() string { return propagator.Snapshot().Subject }
}

/*
TestPropagator_LoadingUntilStart exposes the loading placeholder before the first derivation.
*/
func TestPropagator_LoadingUntilStart(t *testing.T) {
	propagator := session.NewPropagator(newFakeSource("A"), newFakeDeriver(), time.Hour, nil, discardLogger())
	t.Cleanup(propagator.Close)

	assert.True(t, propagator.Snapshot().IsLoading)

	propagator.Start(context.Background())

	snapshot := propagator.Snapshot()
	assert.False(t, snapshot.IsLoading)
	assert.Equal(t, "A", snapshot.Subject)
	assert.Equal(t, uint64(1), snapshot.Generation)
}

/*
TestPropagator_FirstReadFailure settles to anonymous instead of loading forever.
*/
func TestPropagator_FirstReadFailure(t *testing.T) {
	source := newFakeSource("")
	source.set("", errors.New("store unavailable"))

	propagator := session.NewPropagator(source, newFakeDeriver(), time.Hour, nil, discardLogger())
	t.Cleanup(propagator.Close)
	propagator.Start(context.Background())

	snapshot := propagator.Snapshot()
	assert.False(t, snapshot.IsLoading)
	assert.True(t, snapshot.IsAnonymous())
}

/*
TestPropagator_LastTokenWins discards a slow derivation that finishes after a newer one.
*/
func TestPropagator_LastTokenWins(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource("A")
	deriver := newFakeDeriver()
	deriver.block = "A"
	deriver.entered = make(chan struct{})
	deriver.release = make(chan struct{})

	propagator := session.NewPropagator(source, deriver, time.Hour, nil, discardLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		propagator.ForceRefresh(ctx)
	}()
	<-deriver.entered

	source.set("B", nil)
	snapshot := propagator.ForceRefresh(ctx)
	assert.Equal(t, "B", snapshot.Subject)

	close(deriver.release)
	<-done

	final := propagator.Snapshot()
	assert.Equal(t, "B", final.Subject)
	assert.Equal(t, uint64(2), final.Generation)
}

/*
TestPropagator_PollDetectsChange picks up a token written by another process.
*/
func TestPropagator_PollDetectsChange(t *testing.T) {
	source := newFakeSource("A")
	deriver := newFakeDeriver()

	propagator := session.NewPropagator(source, deriver, 10*time.Millisecond, nil, discardLogger())
	t.Cleanup(propagator.Close)
	propagator.Start(context.Background())

	source.set("B", nil)

	assert.Eventually(t, func() bool { return subject(propagator)() == "B" }, time.Second, 5*time.Millisecond)

	// Unchanged tokens are not re-derived on later ticks.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, deriver.count("A"))
	assert.Equal(t, 1, deriver.count("B"))
}

/*
TestPropagator_WatchTriggersRefresh reacts to a change notification without waiting for a poll.
*/
func TestPropagator_WatchTriggersRefresh(t *testing.T) {
	source := newFakeSource("A")

	propagator := session.NewPropagator(source, newFakeDeriver(), time.Hour, nil, discardLogger())
	t.Cleanup(propagator.Close)
	propagator.Start(context.Background())

	source.set("B", nil)
	source.changes <- credential.Change{Key: "access_token", Source: "test"}

	assert.Eventually(t, func() bool { return subject(propagator)() == "B" }, time.Second, 5*time.Millisecond)
}

/*
TestPropagator_SubscribeLatestValue hands a slow subscriber only the newest snapshot.
*/
func TestPropagator_SubscribeLatestValue(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource("A")

	propagator := session.NewPropagator(source, newFakeDeriver(), time.Hour, nil, discardLogger())
	t.Cleanup(propagator.Close)
	propagator.Start(ctx)

	snapshots, cancel := propagator.Subscribe()
	defer cancel()

	initial := <-snapshots
	assert.Equal(t, "A", initial.Subject)

	for _, token := range []string{"B", "C", "D"} {
		source.set(token, nil)
		propagator.ForceRefresh(ctx)
	}

	latest := <-snapshots
	assert.Equal(t, "D", latest.Subject)

	select {
	case extra := <-snapshots:
		t.Fatalf("unexpected buffered snapshot %q", extra.Subject)
	default:
	}
}

/*
TestPropagator_CloseEndsSubscriptions closes subscriber channels and refuses new ones.
*/
func TestPropagator_CloseEndsSubscriptions(t *testing.T) {
	propagator := session.NewPropagator(newFakeSource("A"), newFakeDeriver(), time.Hour, nil, discardLogger())
	propagator.Start(context.Background())

	snapshots, cancel := propagator.Subscribe()
	<-snapshots

	propagator.Close()
	cancel()

	_, open := <-snapshots
	assert.False(t, open)

	late, _ := propagator.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

/*
TestPropagator_Unsubscribe closes only the cancelled channel.
*/
func TestPropagator_Unsubscribe(t *testing.T) {
	propagator := session.NewPropagator(newFakeSource("A"), newFakeDeriver(), time.Hour, nil, discardLogger())
	t.Cleanup(propagator.Close)
	propagator.Start(context.Background())

	first, cancelFirst := propagator.Subscribe()
	second, cancelSecond := propagator.Subscribe()
	defer cancelSecond()
	<-first
	<-second

	cancelFirst()
	cancelFirst()

	_, open := <-first
	assert.False(t, open)

	propagator.ForceRefresh(context.Background())
	snapshot, open := <-second
	require.True(t, open)
	assert.Equal(t, "A", snapshot.Subject)
}
