// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/careops/internal/audit"
	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/platform/metrics"
)

// TeamSwitchClient calls the platform's team switch endpoint.
//
// It returns the rotated bearer token, or "" when the backend rotated the
// credential through a side channel.
type TeamSwitchClient interface {
	SwitchTeam(ctx context.Context, bearer, team string) (string, error)
}

// TokenMirror refreshes the auxiliary same-site cookie copy of the token.
type TokenMirror interface {
	Mirror(token string) error
}

// TokenWriter is the write side of the credential vault used by a team switch.
type TokenWriter interface {
	Token(ctx context.Context) (string, credential.Policy, error)
	ReplaceToken(ctx context.Context, token string) (credential.Policy, error)
}

// # Switcher

// Switcher coordinates team switches for one session. At most one switch runs at a time.
type Switcher struct {
	propagator *Propagator
	tokens     TokenWriter
	client     TeamSwitchClient
	mirror     TokenMirror
	recorder   audit.Recorder
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewSwitcher wires a switcher. mirror and recorder may be nil.
func NewSwitcher(propagator *Propagator, tokens TokenWriter, client TeamSwitchClient, mirror TokenMirror, recorder audit.Recorder, m *metrics.Metrics, logger *slog.Logger) *Switcher {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Switcher{
		propagator: propagator,
		tokens:     tokens,
		client:     client,
		mirror:     mirror,
		recorder:   recorder,
		metrics:    m,
		logger:     logger.With(slog.String("component", "session_switcher")),
	}
}

/*
SwitchTeam makes target the session's active team.

Description: The target must be one of the current snapshot's available
teams; otherwise [*InvalidTeamError] is returned before any network call. A
switch already in flight makes this call fail with [ErrConcurrentSwitch]. A
token returned by the backend replaces the stored one in the same store family
and is mirrored into the cookie; either way the snapshot is re-derived. The
switching flag is cleared on every path. On failure the snapshot is unchanged.

Parameters:
  - ctx: context.Context
  - target: TeamID

Returns:
  - Snapshot: The snapshot after the switch (current snapshot on failure)
  - error: *InvalidTeamError, ErrConcurrentSwitch, *TeamSwitchNetworkError or storage errors
*/
func (switcher *Switcher) SwitchTeam(ctx context.Context, target TeamID) (Snapshot, error) {
	target = TeamID(strings.TrimSpace(string(target)))
	before := switcher.propagator.Snapshot()

	if !before.HasTeam(target) {
		err := &InvalidTeamError{Team: target, Available: before.AvailableTeams}
		switcher.metrics.ObserveTeamSwitch(metrics.ResultInvalid)
		switcher.record(ctx, before, target, audit.OutcomeRejected, err)
		return before, err
	}

	if !switcher.propagator.beginSwitch() {
		switcher.metrics.ObserveTeamSwitch(metrics.ResultConcurrent)
		switcher.record(ctx, before, target, audit.OutcomeRejected, ErrConcurrentSwitch)
		return switcher.propagator.Snapshot(), ErrConcurrentSwitch
	}
	defer switcher.propagator.endSwitch()

	err := switcher.exchange(ctx, target)
	switcher.record(ctx, before, target, audit.OutcomeSuccess, err)

	if err != nil {
		switcher.metrics.ObserveTeamSwitch(metrics.ResultFailed)
		switcher.logger.WarnContext(ctx, "team_switch_failed",
			slog.String("to_team", string(target)),
			slog.Any("error", err),
		)
		current := switcher.propagator.Snapshot()
		current.IsTeamSwitching = false
		return current, err
	}

	switcher.metrics.ObserveTeamSwitch(metrics.ResultSuccess)
	after := switcher.propagator.ForceRefresh(ctx)

	switcher.logger.InfoContext(ctx, "team_switched",
		slog.String("from_team", string(before.ActiveTeamOrEmpty())),
		slog.String("to_team", string(target)),
		slog.String("active_team", string(after.ActiveTeamOrEmpty())),
	)

	after.IsTeamSwitching = false
	return after, nil
}

// exchange performs the network call and persists any rotated token.
func (switcher *Switcher) exchange(ctx context.Context, target TeamID) error {
	bearer, _, err := switcher.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("session: failed to read current token: %w", err)
	}

	rotated, err := switcher.client.SwitchTeam(ctx, bearer, string(target))
	if err != nil {
		return &TeamSwitchNetworkError{Team: target, Err: err}
	}

	rotated = strings.TrimSpace(rotated)
	if rotated == "" {
		return nil
	}

	policy, err := switcher.tokens.ReplaceToken(ctx, rotated)
	if err != nil {
		return fmt.Errorf("session: failed to persist rotated token: %w", err)
	}

	if switcher.mirror != nil {
		if err := switcher.mirror.Mirror(rotated); err != nil {
			switcher.logger.WarnContext(ctx, "team_switch_cookie_mirror_failed", slog.Any("error", err))
		}
	}

	switcher.logger.DebugContext(ctx, "team_switch_token_rotated", slog.String("policy", policy.String()))
	return nil
}

// record writes the audit event. Audit failures never fail the switch.
func (switcher *Switcher) record(ctx context.Context, before Snapshot, target TeamID, outcome audit.Outcome, err error) {
	event := audit.NewEvent(
		before.UserID,
		before.Subject,
		string(before.ActiveTeamOrEmpty()),
		string(target),
		outcome,
		err,
	)

	if recordErr := switcher.recorder.Record(ctx, event); recordErr != nil {
		switcher.logger.WarnContext(ctx, "team_switch_audit_failed", slog.Any("error", recordErr))
	}
}
