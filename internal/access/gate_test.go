// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/careops/internal/access"
)

type principal struct {
	roles []string
	team  string
}

func (p principal) RoleNames() []string { return p.roles }
func (p principal) TeamName() string    { return p.team }

func newGate(t *testing.T) *access.Gate {
	t.Helper()
	gate, err := access.NewGate(
		access.Prefixes{Admin: "/api/admin", SuperAdmin: "/api/superadmin"},
		[]string{"SUPER_ADMIN", "SUPER ADMIN"},
	)
	require.NoError(t, err)
	return gate
}

/*
TestGate_Route covers the family choice for each role and verb.
*/
func TestGate_Route(t *testing.T) {
	gate := newGate(t)

	tests := []struct {
		name       string
		roles      []string
		method     string
		wantFamily access.Family
		wantPrefix string
		wantErr    bool
	}{
		{"admin_read", []string{"ADMIN"}, http.MethodGet, access.FamilyAdmin, "/api/admin", false},
		{"admin_write", []string{"ADMIN"}, http.MethodPost, access.FamilyAdmin, "/api/admin", false},
		{"superadmin_read_uses_admin", []string{"SUPERADMIN"}, http.MethodGet, access.FamilyAdmin, "/api/admin", false},
		{"superadmin_write", []string{"SUPERADMIN"}, http.MethodDelete, access.FamilySuperAdmin, "/api/superadmin", false},
		{"synonym_write", []string{"SUPER_ADMIN"}, http.MethodPut, access.FamilySuperAdmin, "/api/superadmin", false},
		{"spaced_synonym_write", []string{"SUPER ADMIN"}, "patch", access.FamilySuperAdmin, "/api/superadmin", false},
		{"mixed_roles", []string{"USER", "ADMIN"}, http.MethodPost, access.FamilyAdmin, "/api/admin", false},
		{"plain_user", []string{"USER"}, http.MethodGet, "", "", true},
		{"anonymous", nil, http.MethodGet, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := gate.Route(principal{roles: tt.roles, team: "DEPLOYMENT"}, tt.method)

			if tt.wantErr {
				assert.ErrorIs(t, err, access.ErrNoEndpointFamily)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFamily, route.Family)
			assert.Equal(t, tt.wantPrefix, route.PathPrefix)
			assert.Equal(t, "DEPLOYMENT", route.ActiveTeam)
		})
	}
}

/*
TestGate_CanMutate mirrors the admin bit.
*/
func TestGate_CanMutate(t *testing.T) {
	gate := newGate(t)

	assert.True(t, gate.CanMutate(principal{roles: []string{"ADMIN"}}))
	assert.True(t, gate.CanMutate(principal{roles: []string{"SUPER ADMIN"}}))
	assert.False(t, gate.CanMutate(principal{roles: []string{"USER"}}))
	assert.False(t, gate.CanMutate(principal{}))
}

/*
TestActionFor classifies safe and unsafe methods.
*/
func TestActionFor(t *testing.T) {
	assert.Equal(t, access.ActionRead, access.ActionFor(""))
	assert.Equal(t, access.ActionRead, access.ActionFor("get"))
	assert.Equal(t, access.ActionRead, access.ActionFor(http.MethodHead))
	assert.Equal(t, access.ActionWrite, access.ActionFor(http.MethodPost))
	assert.Equal(t, access.ActionWrite, access.ActionFor("delete"))
}
