// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/careops/internal/audit"
	"github.com/taibuivan/careops/internal/credential"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// signToken builds a real HS256 token; the session never verifies the signature.
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func aliceClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"ver":        2,
		"userId":     7,
		"sub":        "alice",
		"globalRole": "ADMIN",
		"activeTeam": "DEPLOYMENT",
		"teams":      []string{"DEPLOYMENT", "MAINTENANCE"},
		"permVer":    2,
	}
}

func newVault() *credential.Vault {
	return credential.NewVault(credential.NewMemoryStore(), credential.NewMemoryStore(), discardLogger(), credential.NewLocalBroadcaster())
}

// # Fakes

type fakeBackend struct {
	mu      sync.Mutex
	calls   []string
	bearers []string
	token   string
	err     error
	release chan struct{}
	entered chan struct{}
}

func (f *fakeBackend) SwitchTeam(ctx context.Context, bearer, team string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, team)
	f.bearers = append(f.bearers, bearer)
	entered, release := f.entered, f.release
	token, err := f.token, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return token, err
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeMirror struct {
	mu     sync.Mutex
	tokens []string
}

func (f *fakeMirror) Mirror(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeMirror) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokens) == 0 {
		return ""
	}
	return f.tokens[len(f.tokens)-1]
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (f *fakeRecorder) Record(_ context.Context, event audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRecorder) all() []audit.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.Event(nil), f.events...)
}

func (f *fakeRecorder) Recent(_ context.Context, limit, offset int) ([]audit.Event, int, error) {
	events := f.all()
	total := len(events)
	events = events[min(offset, total):min(offset+limit, total)]
	return events, total, nil
}

func (f *fakeRecorder) Ping(context.Context) error { return nil }
