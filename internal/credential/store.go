// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package credential implements the storage layer for the operator's bearer token.

It replaces scattered "durable-or-session" lookups with a single [Vault] that
owns two [Store] implementations and a persistence [Policy] chosen at login.

# Architecture

  - Store: a flat key-value contract (memory, Redis, bbolt implementations).
  - Vault: token precedence, legacy key aliases, last-known-good claim cache.
  - Broadcaster: change notifications for token keys, in-process and cross-process.
*/
package credential

import (
	"context"
	"errors"
)

// # Contracts

// ErrNotFound is returned by [Store.Get] when the key is absent.
var ErrNotFound = errors.New("credential: key not found")

// ErrStaleToken is returned when a guarded write targets a token that is no longer current.
var ErrStaleToken = errors.New("credential: token is no longer current")

// Store is a flat key-value store holding credential material for one session namespace.
type Store interface {
	// Get returns the value for key or [ErrNotFound].
	Get(ctx context.Context, key string) (string, error)

	// Set writes key unconditionally (last write wins).
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

// # Persistence Policy

// Policy selects which store family holds the token.
type Policy int

const (
	// PolicyEphemeral keeps the token for the lifetime of the process only.
	PolicyEphemeral Policy = iota

	// PolicyDurable keeps the token across restarts ("remember me").
	PolicyDurable
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	if p == PolicyDurable {
		return "durable"
	}
	return "ephemeral"
}

// PolicyFor maps the login "remember me" flag to a persistence policy.
func PolicyFor(remember bool) Policy {
	if remember {
		return PolicyDurable
	}
	return PolicyEphemeral
}

// # Change Notifications

// Change describes a write to a credential key.
type Change struct {
	Key    string
	Source string
}

// Broadcaster fans credential changes out to watchers.
type Broadcaster interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context) (<-chan Change, error)
}
