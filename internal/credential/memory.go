// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential

import (
	"context"
	"sync"
)

// MemoryStore is a process-local [Store]. It backs the ephemeral policy.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements [Store].
func (store *MemoryStore) Get(_ context.Context, key string) (string, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	value, ok := store.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set implements [Store].
func (store *MemoryStore) Set(_ context.Context, key, value string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.values[key] = value
	return nil
}

// Delete implements [Store].
func (store *MemoryStore) Delete(_ context.Context, keys ...string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, key := range keys {
		delete(store.values, key)
	}
	return nil
}

// Ping implements [Store]. Memory is always reachable.
func (store *MemoryStore) Ping(context.Context) error {
	return nil
}
