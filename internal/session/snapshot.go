// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session derives and propagates the operator's authorization snapshot.

It turns an opaque bearer token into a read-only [Snapshot] and keeps that
snapshot current as the credential store changes.

# Core Responsibility

  - Decoding: [Decode] parses both token schema versions without verifying signatures.
  - Normalization: [Normalize] maps heterogeneous role shapes onto canonical [Role] values.
  - Derivation: [Deriver] builds snapshots, with a last-known-good fallback.
  - Team Switching: [Switcher] exchanges the active team against the platform backend.
  - Propagation: [Propagator] polls, watches and fans snapshots out to subscribers.

[Manager] owns these pieces for one session and is the only type the composition
root needs to construct.
*/
package session

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taibuivan/careops/internal/platform/constants"
	"github.com/taibuivan/careops/pkg/pointer"
)

// # Teams

// TeamID is an opaque team identifier issued by the platform backend.
type TeamID string

const (
	TeamDeployment      TeamID = "DEPLOYMENT"
	TeamMaintenance     TeamID = "MAINTENANCE"
	TeamSales           TeamID = "SALES"
	TeamCustomerService TeamID = "CUSTOMER_SERVICE"
)

var teamDisplayNames = map[TeamID]string{
	TeamDeployment:      "Deployment",
	TeamMaintenance:     "Maintenance",
	TeamSales:           "Sales",
	TeamCustomerService: "Customer Service",
}

// DisplayName returns a human label for team. Unknown ids are title-cased.
func DisplayName(team TeamID) string {
	if name, ok := teamDisplayNames[TeamID(strings.ToUpper(string(team)))]; ok {
		return name
	}
	words := strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(string(team)))
	return cases.Title(language.English).String(words)
}

// # Snapshot

// Snapshot is an immutable view of the session's authorization state.
//
// A snapshot is replaced wholesale whenever the token changes; it is never patched.
type Snapshot struct {
	Roles        RoleSet `json:"roles"`
	IsAdmin      bool    `json:"is_admin"`
	IsSuperAdmin bool    `json:"is_super_admin"`

	// Coarse permission bits. All equal IsAdmin.
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanCreate bool `json:"can_create"`

	ActiveTeam        *TeamID  `json:"active_team"`
	AvailableTeams    []TeamID `json:"available_teams"`
	PermissionVersion int      `json:"permission_version"`

	IsLoading       bool `json:"is_loading"`
	IsTeamSwitching bool `json:"is_team_switching"`

	Subject       string `json:"subject,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	SchemaVersion int    `json:"schema_version,omitempty"`

	// Stale marks a snapshot rebuilt from cached data after a decode failure.
	Stale bool `json:"stale"`

	// Generation orders snapshots applied by the propagator.
	Generation uint64 `json:"generation"`
}

// Anonymous returns the snapshot of a session without a usable token.
func Anonymous() Snapshot {
	return Snapshot{
		Roles:             RoleSet{},
		AvailableTeams:    []TeamID{},
		PermissionVersion: constants.DefaultPermissionVersion,
	}
}

// Loading returns the placeholder exposed before the first derivation completes.
func Loading() Snapshot {
	snapshot := Anonymous()
	snapshot.IsLoading = true
	return snapshot
}

// newSnapshot computes every flag from roles so the permission rules live in one place.
func newSnapshot(roles RoleSet, activeTeam *TeamID, teams []TeamID, permissionVersion int) Snapshot {
	snapshot := Anonymous()
	snapshot.Roles = roles

	for role := range roles {
		if IsSuperAdminRole(role) {
			snapshot.IsSuperAdmin = true
			break
		}
	}
	snapshot.IsAdmin = roles.Has(RoleAdmin) || snapshot.IsSuperAdmin
	snapshot.CanEdit = snapshot.IsAdmin
	snapshot.CanDelete = snapshot.IsAdmin
	snapshot.CanCreate = snapshot.IsAdmin

	if teams != nil {
		snapshot.AvailableTeams = teams
	}
	if activeTeam != nil && !slices.Contains(snapshot.AvailableTeams, *activeTeam) {
		snapshot.AvailableTeams = append(slices.Clone(snapshot.AvailableTeams), *activeTeam)
	}
	snapshot.ActiveTeam = activeTeam

	if permissionVersion >= 1 {
		snapshot.PermissionVersion = permissionVersion
	}
	return snapshot
}

// HasTeam reports whether team is one of the snapshot's available teams.
func (s Snapshot) HasTeam(team TeamID) bool {
	return slices.Contains(s.AvailableTeams, team)
}

// IsAnonymous reports whether the snapshot carries no identity at all.
func (s Snapshot) IsAnonymous() bool {
	return len(s.Roles) == 0 && s.Subject == "" && !s.Stale
}

// ActiveTeamOrEmpty returns the active team or "" when none is set.
func (s Snapshot) ActiveTeamOrEmpty() TeamID {
	return pointer.Val(s.ActiveTeam)
}

// RoleNames returns the canonical roles in lexical order.
func (s Snapshot) RoleNames() []string {
	return s.Roles.Strings()
}

// TeamName returns the active team as a plain string.
func (s Snapshot) TeamName() string {
	return string(s.ActiveTeamOrEmpty())
}
