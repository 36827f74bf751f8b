// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/careops/internal/audit"
	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/platform/metrics"
)

// Credentials is everything the session needs from the credential vault.
type Credentials interface {
	TokenSource
	TokenWriter
	CacheStore
	Login(ctx context.Context, token string, policy credential.Policy) error
	Logout(ctx context.Context) error
}

// Options carries the collaborators of a [Manager].
type Options struct {
	PollInterval time.Duration
	Client       TeamSwitchClient
	Mirror       TokenMirror
	Recorder     audit.Recorder
	Metrics      *metrics.Metrics
}

// # Manager

// Manager is the session context object owned by the composition root.
//
// Consumers receive it by reference and read snapshots from it; nothing in this
// package keeps module-level state.
type Manager struct {
	credentials Credentials
	propagator  *Propagator
	switcher    *Switcher
	mirror      TokenMirror
	logger      *slog.Logger
}

// NewManager wires the deriver, propagator and switcher around credentials.
func NewManager(credentials Credentials, opts Options, logger *slog.Logger) *Manager {
	deriver := NewDeriver(credentials, opts.Metrics, logger)
	propagator := NewPropagator(credentials, deriver, opts.PollInterval, opts.Metrics, logger)

	return &Manager{
		credentials: credentials,
		propagator:  propagator,
		switcher:    NewSwitcher(propagator, credentials, opts.Client, opts.Mirror, opts.Recorder, opts.Metrics, logger),
		mirror:      opts.Mirror,
		logger:      logger.With(slog.String("component", "session_manager")),
	}
}

// # Lifecycle

// Start derives the initial snapshot and begins watching the credential store.
func (manager *Manager) Start(ctx context.Context) {
	manager.propagator.Start(ctx)

	snapshot := manager.propagator.Snapshot()
	manager.logger.InfoContext(ctx, "session_started",
		slog.Bool("anonymous", snapshot.IsAnonymous()),
		slog.Bool("stale", snapshot.Stale),
	)
}

// Close stops polling and closes subscriber channels.
func (manager *Manager) Close() {
	manager.propagator.Close()
}

// # Read Contract

// Snapshot returns the current snapshot.
func (manager *Manager) Snapshot() Snapshot {
	return manager.propagator.Snapshot()
}

// Subscribe streams snapshots. See [Propagator.Subscribe].
func (manager *Manager) Subscribe() (<-chan Snapshot, func()) {
	return manager.propagator.Subscribe()
}

// ForceRefresh re-derives immediately, bypassing the poll interval.
func (manager *Manager) ForceRefresh(ctx context.Context) Snapshot {
	return manager.propagator.ForceRefresh(ctx)
}

// # Mutations

// SwitchTeam changes the active team. See [Switcher.SwitchTeam].
func (manager *Manager) SwitchTeam(ctx context.Context, target TeamID) (Snapshot, error) {
	return manager.switcher.SwitchTeam(ctx, target)
}

/*
Login stores token under policy and derives the new snapshot.

Description: Tokens that cannot be decoded are refused before anything is
written, so a bad login never replaces a working session.

Parameters:
  - ctx: context.Context
  - token: string
  - policy: credential.Policy

Returns:
  - Snapshot: The derived snapshot
  - error: *MalformedTokenError or storage failures
*/
func (manager *Manager) Login(ctx context.Context, token string, policy credential.Policy) (Snapshot, error) {
	token = strings.TrimSpace(token)
	if _, err := Decode(token); err != nil {
		return manager.Snapshot(), err
	}

	if err := manager.credentials.Login(ctx, token, policy); err != nil {
		return manager.Snapshot(), fmt.Errorf("session: login failed: %w", err)
	}

	if manager.mirror != nil {
		if err := manager.mirror.Mirror(token); err != nil {
			manager.logger.WarnContext(ctx, "session_cookie_mirror_failed", slog.Any("error", err))
		}
	}

	snapshot := manager.propagator.ForceRefresh(ctx)
	manager.logger.InfoContext(ctx, "session_login",
		slog.String("policy", policy.String()),
		slog.String("user_id", snapshot.UserID),
	)
	return snapshot, nil
}

// Logout clears every stored credential and returns the anonymous snapshot.
func (manager *Manager) Logout(ctx context.Context) (Snapshot, error) {
	if err := manager.credentials.Logout(ctx); err != nil {
		return manager.Snapshot(), fmt.Errorf("session: logout failed: %w", err)
	}

	if manager.mirror != nil {
		if err := manager.mirror.Mirror(""); err != nil {
			manager.logger.WarnContext(ctx, "session_cookie_mirror_failed", slog.Any("error", err))
		}
	}

	manager.logger.InfoContext(ctx, "session_logout")
	return manager.propagator.ForceRefresh(ctx), nil
}

// Token returns the stored bearer token, "" when anonymous.
func (manager *Manager) Token(ctx context.Context) (string, error) {
	token, _, err := manager.credentials.Token(ctx)
	return token, err
}
