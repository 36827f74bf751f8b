// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/careops/internal/platform/constants"
	"github.com/taibuivan/careops/pkg/convert"
)

// # Claims

const (
	SchemaV1 = 1
	SchemaV2 = 2
)

// Claim names of both token schemas.
const (
	claimVersion     = "ver"
	claimSubject     = "sub"
	claimUserID      = "userId"
	claimGlobalRole  = "globalRole"
	claimRoles       = "roles"
	claimAuthorities = "authorities"
	claimRole        = "role"
	claimActiveTeam  = "activeTeam"
	claimTeams       = "teams"
	claimPermVersion = "permVer"
)

// Claims is the decoded token payload, reduced to the fields the deriver needs.
type Claims struct {
	SchemaVersion     int
	Subject           string
	UserID            string
	Roles             []any
	ActiveTeam        *TeamID
	AvailableTeams    []TeamID
	PermissionVersion int
}

// tokenParser only decodes segments; the platform backend verifies signatures.
var tokenParser = jwt.NewParser(jwt.WithPaddingAllowed())

/*
Decode parses the payload of a bearer token into [Claims].

Description: The payload segment is base64url decoded to bytes and parsed as
JSON, so multi-byte subjects survive intact. The header and signature are
neither parsed nor checked.

Parameters:
  - token: string

Returns:
  - Claims: Decoded claims with schema defaults applied
  - error: *MalformedTokenError
*/
func Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return Claims{}, &MalformedTokenError{Reason: "token must have three segments"}
	}

	payload, err := tokenParser.DecodeSegment(strings.Split(token, ".")[1])
	if err != nil {
		return Claims{}, &MalformedTokenError{Reason: "payload is not base64url", Err: err}
	}

	var mapClaims jwt.MapClaims
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&mapClaims); err != nil {
		return Claims{}, &MalformedTokenError{Reason: "payload is not decodable", Err: err}
	}
	if mapClaims == nil {
		return Claims{}, &MalformedTokenError{Reason: "payload is not a JSON object"}
	}

	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(raw jwt.MapClaims) Claims {
	claims := Claims{
		SchemaVersion:     SchemaV1,
		Subject:           scalarString(raw[claimSubject]),
		PermissionVersion: constants.DefaultPermissionVersion,
	}

	if version := scalarInt(raw[claimVersion]); version >= SchemaV2 {
		claims.SchemaVersion = SchemaV2
	}

	if claims.SchemaVersion == SchemaV1 {
		claims.Roles = legacyRoles(raw)
		return claims
	}

	claims.UserID = scalarString(raw[claimUserID])

	if globalRole, ok := raw[claimGlobalRole]; ok && globalRole != nil {
		claims.Roles = asList(globalRole)
	} else {
		claims.Roles = legacyRoles(raw)
	}

	if team := TeamID(strings.TrimSpace(scalarString(raw[claimActiveTeam]))); team != "" {
		claims.ActiveTeam = &team
	}

	claims.AvailableTeams = teamList(raw[claimTeams])

	if version := scalarInt(raw[claimPermVersion]); version >= 1 {
		claims.PermissionVersion = version
	}

	return claims
}

// legacyRoles merges roles and authorities; a singular role claim is the last resort.
func legacyRoles(raw jwt.MapClaims) []any {
	roles := slices.Concat(asList(raw[claimRoles]), asList(raw[claimAuthorities]))
	if len(roles) == 0 {
		roles = asList(raw[claimRole])
	}
	return roles
}

// # Claim Coercion

func asList(value any) []any {
	switch typed := value.(type) {
	case nil:
		return nil
	case []any:
		return typed
	default:
		return []any{typed}
	}
}

func teamList(value any) []TeamID {
	teams := []TeamID{}
	for _, item := range asList(value) {
		team := TeamID(strings.TrimSpace(scalarString(item)))
		if team != "" && !slices.Contains(teams, team) {
			teams = append(teams, team)
		}
	}
	return teams
}

func scalarString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func scalarInt(value any) int {
	switch typed := value.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return int(n)
		}
		if f, err := typed.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(typed)
	case string:
		return convert.ToInt(typed)
	}
	return 0
}

// String implements fmt.Stringer without leaking the token.
func (c Claims) String() string {
	return fmt.Sprintf("claims(v%d sub=%q roles=%d teams=%d)", c.SchemaVersion, c.Subject, len(c.Roles), len(c.AvailableTeams))
}
