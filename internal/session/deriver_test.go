// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/session"
)

/*
TestDerive_Alice derives the full snapshot of a v2 admin token.
*/
func TestDerive_Alice(t *testing.T) {
	deriver := session.NewDeriver(nil, nil, discardLogger())

	snapshot := deriver.Derive(context.Background(), signToken(t, aliceClaims()))

	assert.Equal(t, []string{"ADMIN"}, snapshot.RoleNames())
	assert.True(t, snapshot.IsAdmin)
	assert.False(t, snapshot.IsSuperAdmin)
	assert.True(t, snapshot.CanEdit)
	assert.True(t, snapshot.CanDelete)
	assert.True(t, snapshot.CanCreate)
	require.NotNil(t, snapshot.ActiveTeam)
	assert.Equal(t, session.TeamDeployment, *snapshot.ActiveTeam)
	assert.Equal(t, []session.TeamID{session.TeamDeployment, session.TeamMaintenance}, snapshot.AvailableTeams)
	assert.Equal(t, 2, snapshot.PermissionVersion)
	assert.Equal(t, "7", snapshot.UserID)
	assert.False(t, snapshot.IsLoading)
	assert.False(t, snapshot.Stale)
}

/*
TestDerive_V1 leaves team data empty for legacy tokens.
*/
func TestDerive_V1(t *testing.T) {
	deriver := session.NewDeriver(nil, nil, discardLogger())

	snapshot := deriver.Derive(context.Background(), signToken(t, jwt.MapClaims{
		"sub":   "bob",
		"roles": []string{"ROLE_USER"},
	}))

	assert.Equal(t, []string{"USER"}, snapshot.RoleNames())
	assert.False(t, snapshot.IsAdmin)
	assert.False(t, snapshot.CanEdit)
	assert.Nil(t, snapshot.ActiveTeam)
	assert.NotNil(t, snapshot.AvailableTeams)
	assert.Empty(t, snapshot.AvailableTeams)
	assert.Equal(t, 1, snapshot.PermissionVersion)
}

/*
TestDerive_SuperAdmin grants admin to every super-admin spelling.
*/
func TestDerive_SuperAdmin(t *testing.T) {
	deriver := session.NewDeriver(nil, nil, discardLogger())

	for _, role := range []string{"SUPERADMIN", "ROLE_SUPER_ADMIN", "super admin"} {
		t.Run(role, func(t *testing.T) {
			snapshot := deriver.Derive(context.Background(), signToken(t, jwt.MapClaims{"ver": 2, "globalRole": role}))

			assert.True(t, snapshot.IsSuperAdmin)
			assert.True(t, snapshot.IsAdmin)
			assert.True(t, snapshot.CanCreate)
		})
	}
}

/*
TestDerive_ActiveTeamOutsideList adds the active team to the available list.
*/
func TestDerive_ActiveTeamOutsideList(t *testing.T) {
	deriver := session.NewDeriver(nil, nil, discardLogger())

	snapshot := deriver.Derive(context.Background(), signToken(t, jwt.MapClaims{
		"ver":        2,
		"activeTeam": "SALES",
		"teams":      []string{"DEPLOYMENT"},
	}))

	assert.True(t, snapshot.HasTeam(session.TeamSales))
	assert.Equal(t, []session.TeamID{session.TeamDeployment, session.TeamSales}, snapshot.AvailableTeams)
}

/*
TestDerive_Idempotent yields equal snapshots for the same token.
*/
func TestDerive_Idempotent(t *testing.T) {
	deriver := session.NewDeriver(nil, nil, discardLogger())
	token := signToken(t, aliceClaims())

	assert.Equal(t, deriver.Derive(context.Background(), token), deriver.Derive(context.Background(), token))
}

/*
TestDerive_Empty returns the settled anonymous snapshot.
*/
func TestDerive_Empty(t *testing.T) {
	deriver := session.NewDeriver(nil, nil, discardLogger())

	for _, token := range []string{"", "   "} {
		snapshot := deriver.Derive(context.Background(), token)

		assert.True(t, snapshot.IsAnonymous())
		assert.False(t, snapshot.IsLoading)
		assert.False(t, snapshot.IsAdmin)
		assert.Nil(t, snapshot.ActiveTeam)
		assert.Equal(t, 1, snapshot.PermissionVersion)
	}
}

/*
TestDerive_MalformedFallsBackToCache restores roles and teams from the last good derivation.
*/
func TestDerive_MalformedFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	vault := newVault()
	deriver := session.NewDeriver(vault, nil, discardLogger())

	require.NoError(t, vault.Login(ctx, "not.a.jwt", credential.PolicyDurable))
	require.NoError(t, vault.WriteCacheIfCurrent(ctx, "not.a.jwt", credential.Cache{
		Roles:          []string{"ADMIN"},
		ActiveTeam:     "SALES",
		AvailableTeams: []string{"SALES", "DEPLOYMENT"},
	}))

	snapshot := deriver.Derive(ctx, "not.a.jwt")

	assert.True(t, snapshot.Stale)
	assert.True(t, snapshot.IsAdmin)
	assert.False(t, snapshot.IsAnonymous())
	assert.Equal(t, session.TeamSales, snapshot.ActiveTeamOrEmpty())
	assert.Equal(t, []session.TeamID{session.TeamSales, session.TeamDeployment}, snapshot.AvailableTeams)
	assert.Equal(t, 1, snapshot.PermissionVersion)
}

/*
TestDerive_MalformedWithoutCache degrades to anonymous.
*/
func TestDerive_MalformedWithoutCache(t *testing.T) {
	deriver := session.NewDeriver(newVault(), nil, discardLogger())

	snapshot := deriver.Derive(context.Background(), "not.a.jwt")

	assert.True(t, snapshot.IsAnonymous())
	assert.False(t, snapshot.Stale)
	assert.False(t, snapshot.IsLoading)
}

/*
TestDerive_WriteBackGuard refreshes the cache only for the stored token.
*/
func TestDerive_WriteBackGuard(t *testing.T) {
	ctx := context.Background()
	vault := newVault()
	deriver := session.NewDeriver(vault, nil, discardLogger())

	stored := signToken(t, aliceClaims())
	require.NoError(t, vault.Login(ctx, stored, credential.PolicyEphemeral))

	other := aliceClaims()
	other["globalRole"] = "USER"
	deriver.Derive(ctx, signToken(t, other))

	_, ok := vault.Cache(ctx)
	assert.False(t, ok, "a superseded token must not write the cache")

	deriver.Derive(ctx, stored)

	cache, ok := vault.Cache(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{"ADMIN"}, cache.Roles)
	assert.Equal(t, "DEPLOYMENT", cache.ActiveTeam)
	assert.Equal(t, []string{"DEPLOYMENT", "MAINTENANCE"}, cache.AvailableTeams)
}
