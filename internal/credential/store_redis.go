// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/careops/internal/platform/constants"
)

// # Redis Store

// RedisStore implements [Store] using Redis. Keys never expire; the token's own
// lifetime is enforced by the platform backend, not by the store.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store scoped to a session namespace.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: constants.RedisPrefixCredential + namespace + ":",
	}
}

/*
Get retrieves the value stored under key.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - string: Stored value
  - error: ErrNotFound or connectivity errors
*/
func (store *RedisStore) Get(context context.Context, key string) (string, error) {
	value, err := store.client.Get(context, store.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis_credential_get_failed: %w", err)
	}
	return value, nil
}

/*
Set stores value under key without expiry.

Parameters:
  - context: context.Context
  - key: string
  - value: string

Returns:
  - error: Storage failures
*/
func (store *RedisStore) Set(context context.Context, key, value string) error {
	if err := store.client.Set(context, store.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis_credential_set_failed: %w", err)
	}
	return nil
}

/*
Delete removes the given keys in a single round trip.

Parameters:
  - context: context.Context
  - keys: ...string

Returns:
  - error: Deletion failures
*/
func (store *RedisStore) Delete(context context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = store.prefix + key
	}

	if err := store.client.Del(context, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis_credential_delete_failed: %w", err)
	}
	return nil
}

// Ping implements [Store].
func (store *RedisStore) Ping(context context.Context) error {
	if err := store.client.Ping(context).Err(); err != nil {
		return fmt.Errorf("redis_credential_ping_failed: %w", err)
	}
	return nil
}

// # Redis Broadcaster

// RedisBroadcaster publishes credential changes on a Redis pub/sub channel so that
// other processes sharing the namespace observe writes they did not make.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster creates a broadcaster for the namespace's change channel.
func NewRedisBroadcaster(client *redis.Client, namespace string) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:  client,
		channel: constants.RedisPrefixCredential + namespace + constants.RedisSuffixChanges,
	}
}

// Publish implements [Broadcaster]. The payload is the changed key name only.
func (broadcaster *RedisBroadcaster) Publish(context context.Context, change Change) error {
	if err := broadcaster.client.Publish(context, broadcaster.channel, change.Key).Err(); err != nil {
		return fmt.Errorf("redis_credential_publish_failed: %w", err)
	}
	return nil
}

/*
Subscribe opens a pub/sub subscription that lives until context is cancelled.

Description: Waits for the subscription confirmation so that no message published
after Subscribe returns is missed. Slow readers drop notifications; the
propagator's poll covers any gap.

Parameters:
  - context: context.Context

Returns:
  - <-chan Change: Closed when the subscription ends
  - error: Subscription failures
*/
func (broadcaster *RedisBroadcaster) Subscribe(context context.Context) (<-chan Change, error) {
	pubsub := broadcaster.client.Subscribe(context, broadcaster.channel)
	if _, err := pubsub.Receive(context); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis_credential_subscribe_failed: %w", err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-context.Done():
				return
			case message, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- Change{Key: message.Payload, Source: "redis"}:
				default:
				}
			}
		}
	}()

	return out, nil
}
