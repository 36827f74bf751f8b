// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/platform/metrics"
	"github.com/taibuivan/careops/pkg/pointer"
	"github.com/taibuivan/careops/pkg/slice"
)

// CacheStore is the last-known-good cache the deriver reads and refreshes.
type CacheStore interface {
	Cache(ctx context.Context) (credential.Cache, bool)
	WriteCacheIfCurrent(ctx context.Context, token string, cache credential.Cache) error
}

// SnapshotDeriver turns a token into a snapshot. [*Deriver] is the production implementation.
type SnapshotDeriver interface {
	Derive(ctx context.Context, token string) Snapshot
}

// # Deriver

// Deriver builds snapshots from bearer tokens.
type Deriver struct {
	cache   CacheStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDeriver creates a deriver. A nil cache disables the last-known-good fallback.
func NewDeriver(cache CacheStore, m *metrics.Metrics, logger *slog.Logger) *Deriver {
	return &Deriver{
		cache:   cache,
		metrics: m,
		logger:  logger.With(slog.String("component", "session_deriver")),
	}
}

/*
Derive computes the snapshot for token.

Description: An empty token yields the anonymous snapshot. An undecodable
token falls back to cached roles and teams (marked Stale), then to anonymous.
A successful derivation refreshes the cache next to the token; failures of
that write are swallowed.

Parameters:
  - ctx: context.Context
  - token: string

Returns:
  - Snapshot: Never partially filled, never an error
*/
func (deriver *Deriver) Derive(ctx context.Context, token string) Snapshot {
	token = strings.TrimSpace(token)
	if token == "" {
		deriver.metrics.ObserveDerivation(metrics.OutcomeAnonymous)
		return Anonymous()
	}

	claims, err := Decode(token)
	if err != nil {
		deriver.logger.WarnContext(ctx, "session_token_malformed", slog.Any("error", err))
		return deriver.fallback(ctx)
	}

	snapshot := newSnapshot(
		NormalizeAll(claims.Roles),
		claims.ActiveTeam,
		claims.AvailableTeams,
		claims.PermissionVersion,
	)
	snapshot.Subject = claims.Subject
	snapshot.UserID = claims.UserID
	snapshot.SchemaVersion = claims.SchemaVersion

	deriver.writeBack(ctx, token, snapshot)
	deriver.metrics.ObserveDerivation(metrics.OutcomeDecoded)

	return snapshot
}

// fallback rebuilds a stale snapshot from cached data, or returns anonymous.
func (deriver *Deriver) fallback(ctx context.Context) Snapshot {
	if deriver.cache == nil {
		deriver.metrics.ObserveDerivation(metrics.OutcomeMalformed)
		return Anonymous()
	}

	cache, ok := deriver.cache.Cache(ctx)
	if !ok {
		deriver.metrics.ObserveDerivation(metrics.OutcomeMalformed)
		return Anonymous()
	}

	var activeTeam *TeamID
	if cache.ActiveTeam != "" {
		activeTeam = pointer.To(TeamID(cache.ActiveTeam))
	}

	snapshot := newSnapshot(
		NormalizeAll(slice.Map(cache.Roles, func(role string) any { return role })),
		activeTeam,
		slice.Map(cache.AvailableTeams, func(team string) TeamID { return TeamID(team) }),
		0,
	)
	snapshot.Stale = true

	deriver.logger.InfoContext(ctx, "session_restored_from_cache",
		slog.Int("roles", len(snapshot.Roles)),
		slog.String("active_team", string(snapshot.ActiveTeamOrEmpty())),
	)
	deriver.metrics.ObserveDerivation(metrics.OutcomeCached)

	return snapshot
}

// writeBack refreshes the cache only while token is still the stored one.
func (deriver *Deriver) writeBack(ctx context.Context, token string, snapshot Snapshot) {
	if deriver.cache == nil {
		return
	}

	cache := credential.Cache{
		Roles:          snapshot.Roles.Strings(),
		ActiveTeam:     string(snapshot.ActiveTeamOrEmpty()),
		AvailableTeams: slice.Map(snapshot.AvailableTeams, func(team TeamID) string { return string(team) }),
	}

	err := deriver.cache.WriteCacheIfCurrent(ctx, token, cache)
	switch {
	case err == nil:
	case errors.Is(err, credential.ErrStaleToken):
		deriver.logger.DebugContext(ctx, "session_cache_write_superseded")
	default:
		deriver.logger.DebugContext(ctx, "session_cache_write_failed", slog.Any("error", err))
	}
}
