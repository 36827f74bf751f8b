// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/taibuivan/careops/internal/platform/constants"
)

// # Key Sets

// tokenKeys lists the token key and its legacy aliases in lookup order.
var tokenKeys = []string{
	constants.KeyAccessToken,
	constants.KeyLegacyToken,
	constants.KeyLegacyAccessToken,
}

// cacheKeys lists the last-known-good claim cache entries.
var cacheKeys = []string{
	constants.KeyRoles,
	constants.KeyActiveTeam,
	constants.KeyAvailableTeams,
}

// WatchedKeys are the only keys whose changes are forwarded by [Vault.Watch].
var WatchedKeys = []string{
	constants.KeyAccessToken,
	constants.KeyLegacyToken,
}

// Cache is the last-known-good authorization data persisted next to the token.
type Cache struct {
	Roles          []string
	ActiveTeam     string
	AvailableTeams []string
}

// # Vault

// Vault is the single credential abstraction used by the session engine.
//
// # Precedence
//
// The durable store is consulted first; whichever store holds a non-empty token
// is authoritative. Within a store the canonical key wins over legacy aliases.
type Vault struct {
	durable      Store
	ephemeral    Store
	broadcasters []Broadcaster
	logger       *slog.Logger

	// writeMu serializes token writes against guarded cache writes in this process.
	writeMu sync.Mutex
}

// NewVault wires the two store families and any change broadcasters.
func NewVault(durable, ephemeral Store, logger *slog.Logger, broadcasters ...Broadcaster) *Vault {
	return &Vault{
		durable:      durable,
		ephemeral:    ephemeral,
		broadcasters: broadcasters,
		logger:       logger.With(slog.String("component", "credential_vault")),
	}
}

func (vault *Vault) storeFor(policy Policy) Store {
	if policy == PolicyDurable {
		return vault.durable
	}
	return vault.ephemeral
}

// # Token Access

/*
Token returns the authoritative bearer token and the policy of the store holding it.

Description: An empty token with a nil error means the session is anonymous.
A read failure of one store does not hide a token held by the other; an error is
returned only when no token was found and at least one store failed.

Parameters:
  - ctx: context.Context

Returns:
  - string: Bearer token, possibly empty
  - Policy: Store family holding the token
  - error: Storage failures
*/
func (vault *Vault) Token(ctx context.Context) (string, Policy, error) {
	var readErrors []error

	for _, policy := range []Policy{PolicyDurable, PolicyEphemeral} {
		token, err := lookupToken(ctx, vault.storeFor(policy))
		if err != nil {
			readErrors = append(readErrors, fmt.Errorf("%s store: %w", policy, err))
			continue
		}
		if token != "" {
			return token, policy, nil
		}
	}

	if len(readErrors) > 0 {
		return "", PolicyEphemeral, errors.Join(readErrors...)
	}
	return "", PolicyEphemeral, nil
}

func lookupToken(ctx context.Context, store Store) (string, error) {
	for _, key := range tokenKeys {
		value, err := store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, nil
		}
	}
	return "", nil
}

/*
Login stores a freshly issued token under the chosen persistence policy.

Description: The other store family is cleared so that precedence never
resurrects an older credential.

Parameters:
  - ctx: context.Context
  - token: string
  - policy: Policy

Returns:
  - error: Storage failures
*/
func (vault *Vault) Login(ctx context.Context, token string, policy Policy) error {
	vault.writeMu.Lock()
	defer vault.writeMu.Unlock()

	target := vault.storeFor(policy)
	other := vault.storeFor(otherPolicy(policy))

	if err := other.Delete(ctx, allKeys()...); err != nil {
		return fmt.Errorf("credential: failed to clear %s store: %w", otherPolicy(policy), err)
	}
	if err := writeToken(ctx, target, token); err != nil {
		return err
	}
	if err := target.Delete(ctx, cacheKeys...); err != nil {
		vault.logger.DebugContext(ctx, "credential_cache_clear_failed", slog.Any("error", err))
	}

	vault.publish(ctx, constants.KeyAccessToken)
	return nil
}

/*
ReplaceToken writes a rotated token into the store family holding the current one.

Description: Used after a team switch. Without a current token the ephemeral
family is used.

Parameters:
  - ctx: context.Context
  - token: string

Returns:
  - Policy: Store family written
  - error: Storage failures
*/
func (vault *Vault) ReplaceToken(ctx context.Context, token string) (Policy, error) {
	vault.writeMu.Lock()
	defer vault.writeMu.Unlock()

	current, policy, err := vault.Token(ctx)
	if err != nil {
		return policy, err
	}
	if current == "" {
		policy = PolicyEphemeral
	}

	if err := writeToken(ctx, vault.storeFor(policy), token); err != nil {
		return policy, err
	}

	vault.publish(ctx, constants.KeyAccessToken)
	return policy, nil
}

// Logout clears every credential key in both store families.
func (vault *Vault) Logout(ctx context.Context) error {
	vault.writeMu.Lock()
	defer vault.writeMu.Unlock()

	var deleteErrors []error
	for _, policy := range []Policy{PolicyDurable, PolicyEphemeral} {
		if err := vault.storeFor(policy).Delete(ctx, allKeys()...); err != nil {
			deleteErrors = append(deleteErrors, fmt.Errorf("%s store: %w", policy, err))
		}
	}

	vault.publish(ctx, constants.KeyAccessToken)
	return errors.Join(deleteErrors...)
}

// writeToken sets the canonical key and drops legacy aliases so they cannot shadow it later.
func writeToken(ctx context.Context, store Store, token string) error {
	if err := store.Set(ctx, constants.KeyAccessToken, token); err != nil {
		return fmt.Errorf("credential: failed to write token: %w", err)
	}
	if err := store.Delete(ctx, constants.KeyLegacyToken, constants.KeyLegacyAccessToken); err != nil {
		return fmt.Errorf("credential: failed to drop legacy token keys: %w", err)
	}
	return nil
}

// # Last-Known-Good Cache

/*
Cache reads the cached roles and team data, preferring the store that holds the token.

Returns:
  - Cache: Decoded cache entries
  - bool: true when at least one cached role is present
*/
func (vault *Vault) Cache(ctx context.Context) (Cache, bool) {
	_, policy, _ := vault.Token(ctx)

	for _, candidate := range []Policy{policy, otherPolicy(policy)} {
		cache, ok := readCache(ctx, vault.storeFor(candidate))
		if ok {
			return cache, true
		}
	}
	return Cache{}, false
}

func readCache(ctx context.Context, store Store) (Cache, bool) {
	var cache Cache

	rawRoles, err := store.Get(ctx, constants.KeyRoles)
	if err != nil || json.Unmarshal([]byte(rawRoles), &cache.Roles) != nil || len(cache.Roles) == 0 {
		return Cache{}, false
	}

	if team, err := store.Get(ctx, constants.KeyActiveTeam); err == nil {
		cache.ActiveTeam = strings.TrimSpace(team)
	}

	if rawTeams, err := store.Get(ctx, constants.KeyAvailableTeams); err == nil {
		_ = json.Unmarshal([]byte(rawTeams), &cache.AvailableTeams)
	}

	return cache, true
}

/*
WriteCacheIfCurrent persists cache next to token, but only while token is still current.

Description: Guards the opportunistic write-back of a derivation against a newer
authoritative token write (team switch, login). Returns [ErrStaleToken] when the
guard rejects the write.

Parameters:
  - ctx: context.Context
  - token: string (the token the cache was derived from)
  - cache: Cache

Returns:
  - error: ErrStaleToken or storage failures
*/
func (vault *Vault) WriteCacheIfCurrent(ctx context.Context, token string, cache Cache) error {
	vault.writeMu.Lock()
	defer vault.writeMu.Unlock()

	current, policy, err := vault.Token(ctx)
	if err != nil {
		return err
	}
	if current == "" || current != token {
		return ErrStaleToken
	}

	store := vault.storeFor(policy)

	roles, err := json.Marshal(nonNil(cache.Roles))
	if err != nil {
		return fmt.Errorf("credential: failed to encode roles: %w", err)
	}
	teams, err := json.Marshal(nonNil(cache.AvailableTeams))
	if err != nil {
		return fmt.Errorf("credential: failed to encode teams: %w", err)
	}

	if err := store.Set(ctx, constants.KeyRoles, string(roles)); err != nil {
		return err
	}
	if err := store.Set(ctx, constants.KeyAvailableTeams, string(teams)); err != nil {
		return err
	}
	if cache.ActiveTeam == "" {
		return store.Delete(ctx, constants.KeyActiveTeam)
	}
	return store.Set(ctx, constants.KeyActiveTeam, cache.ActiveTeam)
}

// # Change Notifications

/*
Watch merges all broadcaster subscriptions into one channel of token key changes.

Description: Broadcasters that fail to subscribe are logged and skipped; the
caller keeps polling as a fallback. The channel closes when ctx is done.
*/
func (vault *Vault) Watch(ctx context.Context) <-chan Change {
	out := make(chan Change, 16)
	var wg sync.WaitGroup

	for _, broadcaster := range vault.broadcasters {
		changes, err := broadcaster.Subscribe(ctx)
		if err != nil {
			vault.logger.WarnContext(ctx, "credential_watch_subscribe_failed", slog.Any("error", err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for change := range changes {
				if !slices.Contains(WatchedKeys, change.Key) {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(out)
	}()

	return out
}

func (vault *Vault) publish(ctx context.Context, key string) {
	for _, broadcaster := range vault.broadcasters {
		if err := broadcaster.Publish(ctx, Change{Key: key, Source: "local"}); err != nil {
			vault.logger.WarnContext(ctx, "credential_publish_failed", slog.Any("error", err))
		}
	}
}

// Ping reports whether the durable store is reachable.
func (vault *Vault) Ping(ctx context.Context) error {
	return vault.durable.Ping(ctx)
}

// # Helpers

func otherPolicy(policy Policy) Policy {
	if policy == PolicyDurable {
		return PolicyEphemeral
	}
	return PolicyDurable
}

func allKeys() []string {
	return append(slices.Clone(tokenKeys), cacheKeys...)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
