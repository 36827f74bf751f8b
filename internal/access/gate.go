// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package access is the read contract session consumers build on.

A consumer holding a session snapshot asks the [Gate] which endpoint family to
call for a given HTTP method, and whether mutation controls should be offered
at all. The decisions come from a casbin RBAC policy in which every
super-admin spelling inherits SUPERADMIN and SUPERADMIN inherits ADMIN.
*/
package access

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// # Contracts

// ErrNoEndpointFamily is returned when the principal may not use any endpoint family.
var ErrNoEndpointFamily = errors.New("access: no endpoint family for this session")

// Principal is the part of a session snapshot the gate reads.
type Principal interface {
	RoleNames() []string
	TeamName() string
}

// Family names an endpoint family of the platform backend.
type Family string

const (
	FamilyAdmin      Family = "admin"
	FamilySuperAdmin Family = "superadmin"
)

// Action classifies an HTTP method.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Route is the endpoint family a consumer should call.
type Route struct {
	Family     Family `json:"family"`
	Action     Action `json:"action"`
	Method     string `json:"method"`
	PathPrefix string `json:"path_prefix"`
	ActiveTeam string `json:"active_team,omitempty"`
}

// Prefixes maps each family to its path prefix on the platform backend.
type Prefixes struct {
	Admin      string
	SuperAdmin string
}

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// # Gate

// Gate routes snapshots to endpoint families.
type Gate struct {
	enforcer *casbin.SyncedEnforcer
	prefixes Prefixes
}

/*
NewGate builds the RBAC policy.

Parameters:
  - prefixes: Prefixes
  - superAdminSynonyms: []string (spellings that inherit SUPERADMIN)

Returns:
  - *Gate: Ready gate
  - error: Policy construction failures
*/
func NewGate(prefixes Prefixes, superAdminSynonyms []string) (*Gate, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("access: invalid model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("access: failed to create enforcer: %w", err)
	}

	policies := [][]string{
		{"ADMIN", string(FamilyAdmin), string(ActionRead)},
		{"ADMIN", string(FamilyAdmin), string(ActionWrite)},
		{"SUPERADMIN", string(FamilySuperAdmin), string(ActionWrite)},
	}
	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("access: failed to add policies: %w", err)
	}

	groupings := [][]string{{"SUPERADMIN", "ADMIN"}}
	for _, synonym := range superAdminSynonyms {
		groupings = append(groupings, []string{synonym, "SUPERADMIN"})
	}
	if _, err := enforcer.AddGroupingPolicies(groupings); err != nil {
		return nil, fmt.Errorf("access: failed to add role inheritance: %w", err)
	}

	return &Gate{enforcer: enforcer, prefixes: prefixes}, nil
}

// ActionFor classifies method. Safe methods read; everything else writes.
func ActionFor(method string) Action {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	default:
		return ActionWrite
	}
}

/*
Route picks the endpoint family for principal and method.

Description: Mutations by a super-admin go to the super-admin family; any
other request by an admin goes to the admin family.

Returns:
  - Route: Chosen family and prefix
  - error: ErrNoEndpointFamily for anonymous and non-admin sessions
*/
func (gate *Gate) Route(principal Principal, method string) (Route, error) {
	action := ActionFor(method)
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	route := Route{Action: action, Method: method, ActiveTeam: principal.TeamName()}

	switch {
	case action == ActionWrite && gate.allowed(principal, FamilySuperAdmin, ActionWrite):
		route.Family = FamilySuperAdmin
		route.PathPrefix = gate.prefixes.SuperAdmin
	case gate.allowed(principal, FamilyAdmin, action):
		route.Family = FamilyAdmin
		route.PathPrefix = gate.prefixes.Admin
	default:
		return Route{}, ErrNoEndpointFamily
	}

	return route, nil
}

// CanMutate reports whether mutation controls should be shown.
func (gate *Gate) CanMutate(principal Principal) bool {
	return gate.allowed(principal, FamilyAdmin, ActionWrite)
}

func (gate *Gate) allowed(principal Principal, family Family, action Action) bool {
	for _, role := range principal.RoleNames() {
		ok, err := gate.enforcer.Enforce(role, string(family), string(action))
		if err == nil && ok {
			return true
		}
	}
	return false
}
