// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Session: Credential key names, cookie settings and poll cadence.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "careops-sessiond"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	// The snapshot event stream is exempt because it writes through [http.Flusher].
	DefaultWriteTimeout = 0

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for a regular request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 15 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 50.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 100

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Session

const (
	// DefaultPollInterval is how often the propagator re-reads the credential store.
	DefaultPollInterval = 1 * time.Second

	// CookieName is the same-site cookie that mirrors the bearer token.
	CookieName = "access_token"

	// CookieTTL is the fixed lifetime of the mirrored token cookie.
	CookieTTL = 7 * 24 * time.Hour

	// DefaultPermissionVersion applies to tokens that do not carry permVer.
	DefaultPermissionVersion = 1
)

// # Credential Keys

const (
	// KeyAccessToken is the canonical bearer token key.
	KeyAccessToken = "access_token"

	// KeyLegacyToken and KeyLegacyAccessToken are read for backward compatibility.
	KeyLegacyToken       = "token"
	KeyLegacyAccessToken = "accessToken"

	// KeyRoles caches the last derived roles as a JSON array.
	KeyRoles = "roles"

	// KeyActiveTeam caches the last derived active team.
	KeyActiveTeam = "activeTeam"

	// KeyAvailableTeams caches the last derived team list as a JSON array.
	KeyAvailableTeams = "availableTeams"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldError = "error"
	FieldCode  = "code"
)

// # Redis Prefixes

const (
	RedisPrefixCredential = "credential:"
	RedisSuffixChanges    = ":changes"
)
