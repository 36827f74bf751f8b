// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"encoding/base64"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/careops/internal/session"
)

/*
TestDecode_V2 reads every v2 claim.
*/
func TestDecode_V2(t *testing.T) {
	claims, err := session.Decode(signToken(t, aliceClaims()))
	require.NoError(t, err)

	assert.Equal(t, session.SchemaV2, claims.SchemaVersion)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "7", claims.UserID)
	assert.Equal(t, []any{"ADMIN"}, claims.Roles)
	require.NotNil(t, claims.ActiveTeam)
	assert.Equal(t, session.TeamID("DEPLOYMENT"), *claims.ActiveTeam)
	assert.Equal(t, []session.TeamID{"DEPLOYMENT", "MAINTENANCE"}, claims.AvailableTeams)
	assert.Equal(t, 2, claims.PermissionVersion)
}

/*
TestDecode_V1 applies v1 defaults and merges roles with authorities.
*/
func TestDecode_V1(t *testing.T) {
	claims, err := session.Decode(signToken(t, jwt.MapClaims{
		"sub":         "bob",
		"roles":       []any{"ROLE_USER", map[string]any{"roleName": "ADMIN"}},
		"authorities": []string{"ROLE_AUDITOR"},
		"activeTeam":  "SALES",
		"permVer":     9,
	}))
	require.NoError(t, err)

	assert.Equal(t, session.SchemaV1, claims.SchemaVersion)
	assert.Len(t, claims.Roles, 3)
	assert.Nil(t, claims.ActiveTeam)
	assert.Empty(t, claims.AvailableTeams)
	assert.Equal(t, 1, claims.PermissionVersion)
}

/*
TestDecode_VersionVariants accepts the version as a number or numeric string.
*/
func TestDecode_VersionVariants(t *testing.T) {
	tests := []struct {
		name string
		ver  any
		want int
	}{
		{"absent", nil, session.SchemaV1},
		{"number", 2, session.SchemaV2},
		{"string", "2", session.SchemaV2},
		{"one", 1, session.SchemaV1},
		{"garbage", "two", session.SchemaV1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := jwt.MapClaims{"sub": "x"}
			if tt.ver != nil {
				raw["ver"] = tt.ver
			}
			claims, err := session.Decode(signToken(t, raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, claims.SchemaVersion)
		})
	}
}

/*
TestDecode_V2RoleFallbacks falls back to roles, then authorities, then role.
*/
func TestDecode_V2RoleFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   []any
	}{
		{"global_role_wins", jwt.MapClaims{"ver": 2, "globalRole": "SUPERADMIN", "roles": []string{"USER"}}, []any{"SUPERADMIN"}},
		{"roles_fallback", jwt.MapClaims{"ver": 2, "roles": []string{"USER"}}, []any{"USER"}},
		{"authorities_fallback", jwt.MapClaims{"ver": 2, "authorities": "ROLE_ADMIN"}, []any{"ROLE_ADMIN"}},
		{"singular_role", jwt.MapClaims{"ver": 2, "role": "admin"}, []any{"admin"}},
		{"global_role_object", jwt.MapClaims{"ver": 2, "globalRole": map[string]any{"name": "ADMIN"}}, []any{map[string]any{"name": "ADMIN"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := session.Decode(signToken(t, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, claims.Roles)
		})
	}
}

/*
TestDecode_PermissionVersionFloor keeps the version at least 1.
*/
func TestDecode_PermissionVersionFloor(t *testing.T) {
	claims, err := session.Decode(signToken(t, jwt.MapClaims{"ver": 2, "permVer": 0}))
	require.NoError(t, err)
	assert.Equal(t, 1, claims.PermissionVersion)
}

/*
TestDecode_NonASCIISubject keeps multi-byte subjects intact.
*/
func TestDecode_NonASCIISubject(t *testing.T) {
	subject := "Nguyễn Văn Tài 東京"

	claims, err := session.Decode(signToken(t, jwt.MapClaims{"sub": subject}))
	require.NoError(t, err)
	assert.Equal(t, subject, claims.Subject)
}

/*
TestDecode_Malformed rejects structurally invalid tokens.
*/
func TestDecode_Malformed(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	badPayload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":`))
	arrayPayload := base64.RawURLEncoding.EncodeToString([]byte(`["ADMIN"]`))
	nullPayload := base64.RawURLEncoding.EncodeToString([]byte(`null`))

	for _, token := range []string{
		"not.a.jwt",
		"only-one-part",
		"two.parts",
		"a.b.c.d",
		header + "." + badPayload + ".sig",
		header + ".!!!.sig",
		header + "." + arrayPayload + ".sig",
		header + "." + nullPayload + ".sig",
	} {
		t.Run(token, func(t *testing.T) {
			_, err := session.Decode(token)

			var malformed *session.MalformedTokenError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}

/*
TestDecode_IgnoresHeader reads the payload whatever the header says.
*/
func TestDecode_IgnoresHeader(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(
		`{"ver":2,"sub":"alice","globalRole":"ADMIN","activeTeam":"SALES","teams":["SALES"]}`,
	))

	headers := map[string]string{
		"no_alg":      `{"typ":"JWT"}`,
		"unknown_alg": `{"alg":"ES256K","typ":"JWT"}`,
		"not_json":    `garbage`,
	}

	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			token := base64.RawURLEncoding.EncodeToString([]byte(header)) + "." + payload + ".sig"

			claims, err := session.Decode(token)
			require.NoError(t, err)
			assert.Equal(t, session.SchemaV2, claims.SchemaVersion)
			assert.Equal(t, "alice", claims.Subject)
			assert.Equal(t, []any{"ADMIN"}, claims.Roles)
			require.NotNil(t, claims.ActiveTeam)
			assert.Equal(t, session.TeamID("SALES"), *claims.ActiveTeam)
		})
	}
}

/*
TestDecode_TeamsAreCleaned trims, drops blanks and deduplicates team ids.
*/
func TestDecode_TeamsAreCleaned(t *testing.T) {
	claims, err := session.Decode(signToken(t, jwt.MapClaims{
		"ver":   2,
		"teams": []any{" SALES ", "", "SALES", "MAINTENANCE", 5},
	}))
	require.NoError(t, err)
	assert.Equal(t, []session.TeamID{"SALES", "MAINTENANCE", "5"}, claims.AvailableTeams)
}
