// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"encoding/json"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// # Canonical Roles

// Role is a canonical role name: trimmed, uppercase, without the ROLE_ prefix.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

// superAdminSynonyms are the canonical spellings that grant super-admin.
var superAdminSynonyms = []Role{RoleSuperAdmin, "SUPER_ADMIN", "SUPER ADMIN"}

// IsSuperAdminRole reports whether role is SUPERADMIN or one of its synonyms.
func IsSuperAdminRole(role Role) bool {
	return slices.Contains(superAdminSynonyms, role)
}

// SuperAdminSynonyms returns the accepted super-admin spellings other than SUPERADMIN.
func SuperAdminSynonyms() []Role {
	return slices.Clone(superAdminSynonyms[1:])
}

const rolePrefix = "ROLE_"

// # Role Inputs

// RoleInput is the tagged union of role shapes found in token claims.
type RoleInput interface {
	rawName() string
}

// PlainRole is a role given as a bare string.
type PlainRole string

func (r PlainRole) rawName() string { return string(r) }

// RoleObject is a role given as an object. The first non-empty field wins,
// in declaration order.
type RoleObject struct {
	RoleName string
	Role     string
	Name     string
}

func (r RoleObject) rawName() string {
	for _, candidate := range []string{r.RoleName, r.Role, r.Name} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

/*
ParseRoleInput matches a raw claim value against the [RoleInput] variants.

Description: Objects are inspected one level deep. A role name nested inside
another object is not followed.

Parameters:
  - raw: any (string, map, or an existing RoleInput)

Returns:
  - RoleInput: The matched variant
  - bool: false when raw has no recognizable shape
*/
func ParseRoleInput(raw any) (RoleInput, bool) {
	switch value := raw.(type) {
	case RoleInput:
		return value, true
	case string:
		return PlainRole(value), true
	case map[string]any:
		object := RoleObject{
			RoleName: stringField(value, "roleName"),
			Role:     stringField(value, "role"),
			Name:     stringField(value, "name"),
		}
		if strings.TrimSpace(object.RoleName) == "" {
			object.RoleName = stringField(value, "role_name")
		}
		return object, true
	default:
		return nil, false
	}
}

func stringField(object map[string]any, key string) string {
	value, _ := object[key].(string)
	return value
}

// # Normalization

// Normalize maps a raw role to its canonical form. Unrecognized input yields "".
func Normalize(raw any) Role {
	input, ok := ParseRoleInput(raw)
	if !ok {
		return ""
	}
	return canonical(input.rawName())
}

func canonical(name string) Role {
	name = strings.TrimSpace(name)
	if len(name) >= len(rolePrefix) && strings.EqualFold(name[:len(rolePrefix)], rolePrefix) {
		name = name[len(rolePrefix):]
	}

	// Caser values are stateful; one per call.
	return Role(strings.TrimSpace(cases.Upper(language.Und).String(name)))
}

// NormalizeAll normalizes every input and drops empty results.
func NormalizeAll(raw []any) RoleSet {
	set := RoleSet{}
	for _, item := range raw {
		if role := Normalize(item); role != "" {
			set[role] = struct{}{}
		}
	}
	return set
}

// # Role Set

// RoleSet is an unordered set of canonical roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from canonical roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		if role != "" {
			set[role] = struct{}{}
		}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// Sorted returns the roles in lexical order.
func (s RoleSet) Sorted() []Role {
	roles := make([]Role, 0, len(s))
	for role := range s {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}

// Strings returns the sorted roles as plain strings.
func (s RoleSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, role := range sorted {
		out[i] = string(role)
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of role names, normalizing each.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}

	set := RoleSet{}
	for _, name := range names {
		if role := canonical(name); role != "" {
			set[role] = struct{}{}
		}
	}
	*s = set
	return nil
}
