// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (credential store, backend client) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/taibuivan/careops/pkg/slice"
)

// # Credential Backends

const (
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the session daemon.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8090"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Session engine
	SessionNamespace string        `env:"SESSION_NAMESPACE"     envDefault:"default"`
	PollInterval     time.Duration `env:"SESSION_POLL_INTERVAL" envDefault:"1s"`

	// Durable credential store. The ephemeral store is always in-process memory.
	CredentialBackend string `env:"CREDENTIAL_BACKEND"   envDefault:"bolt"`
	BoltPath          string `env:"CREDENTIAL_BOLT_PATH" envDefault:"./data/credentials.db"`

	// Key-Value Cache (Redis). Also enables cross-process change broadcast when set.
	RedisURL string `env:"REDIS_URL"`

	// Platform backend
	BackendBaseURL        string        `env:"BACKEND_BASE_URL,required,notEmpty"`
	BackendSwitchTeamPath string        `env:"BACKEND_SWITCH_TEAM_PATH" envDefault:"/api/auth/switch-team"`
	BackendTimeout        time.Duration `env:"BACKEND_TIMEOUT"          envDefault:"10s"`

	// CookieTTL is the lifetime of the mirrored token cookie.
	CookieTTL time.Duration `env:"COOKIE_TTL" envDefault:"168h"`

	// Relational Database (PostgreSQL) for the team switch audit trail. Optional.
	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./migrations"`

	// Endpoint families handed to consumers
	AdminPathPrefix      string `env:"ADMIN_PATH_PREFIX"      envDefault:"/api/admin"`
	SuperAdminPathPrefix string `env:"SUPERADMIN_PATH_PREFIX" envDefault:"/api/superadmin"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.CredentialBackend {
	case BackendBolt:
		if strings.TrimSpace(c.BoltPath) == "" {
			return fmt.Errorf("config: CREDENTIAL_BOLT_PATH is required for the bolt backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("config: REDIS_URL is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("config: SESSION_POLL_INTERVAL must be positive")
	}

	if c.CookieTTL <= 0 {
		return fmt.Errorf("config: COOKIE_TTL must be positive")
	}

	return nil
}

// IsDevelopment reports whether the daemon is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the daemon is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuditEnabled reports whether a database is configured for the audit trail.
func (c *Config) AuditEnabled() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// AllowedOrigins returns the parsed EXTRA_ORIGINS list.
func (c *Config) AllowedOrigins() []string {
	origins := slice.Map(strings.Split(c.ExtraOrigins, ","), strings.TrimSpace)
	return slice.Filter(origins, func(origin string) bool { return origin != "" })
}
