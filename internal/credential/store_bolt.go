// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltOpenTimeout = 1 * time.Second

// BoltStore implements [Store] on a single bbolt file. It is the default durable
// store for a single-node daemon; one bucket per session namespace.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBoltStore opens (or creates) the database file at path.
func OpenBoltStore(path, namespace string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: failed to create directory for %s: %w", path, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: failed to open %s: %w", path, err)
	}

	bucket := []byte("credential:" + namespace)
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, bucket: bucket}, nil
}

// Get implements [Store].
func (store *BoltStore) Get(_ context.Context, key string) (string, error) {
	var value string
	found := false

	err := store.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(store.bucket).Get([]byte(key))
		if raw != nil {
			// Copy: raw is only valid for the life of the transaction.
			value = string(raw)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("bolt_credential_get_failed: %w", err)
	}
	if !found {
		return "", ErrNotFound
	}
	return value, nil
}

// Set implements [Store].
func (store *BoltStore) Set(_ context.Context, key, value string) error {
	err := store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(store.bucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt_credential_set_failed: %w", err)
	}
	return nil
}

// Delete implements [Store].
func (store *BoltStore) Delete(_ context.Context, keys ...string) error {
	err := store.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(store.bucket)
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt_credential_delete_failed: %w", err)
	}
	return nil
}

// Ping implements [Store]. A closed database fails the read transaction.
func (store *BoltStore) Ping(context.Context) error {
	if err := store.db.View(func(*bolt.Tx) error { return nil }); err != nil {
		return fmt.Errorf("bolt_credential_ping_failed: %w", err)
	}
	return nil
}

// Close releases the file lock.
func (store *BoltStore) Close() error {
	return store.db.Close()
}
