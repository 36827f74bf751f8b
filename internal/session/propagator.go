// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/careops/internal/credential"
	"github.com/taibuivan/careops/internal/platform/constants"
	"github.com/taibuivan/careops/internal/platform/metrics"
)

// TokenSource is the read side of the credential vault.
type TokenSource interface {
	Token(ctx context.Context) (string, credential.Policy, error)
	Watch(ctx context.Context) <-chan credential.Change
}

// # Propagator

// Propagator holds the current snapshot and keeps it in step with the credential store.
//
// # Ordering
//
// Every refresh takes a generation number at the moment it reads the token. A
// derivation result is applied only when its generation is newer than the one
// already applied, so the last token read wins even if an older derivation
// finishes later.
type Propagator struct {
	source   TokenSource
	deriver  SnapshotDeriver
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// readMu pairs a token read with its generation number.
	readMu     sync.Mutex
	generation uint64
	lastSeen   string
	seenAny    bool

	mu          sync.Mutex
	current     Snapshot
	applied     uint64
	switching   bool
	closed      bool
	subscribers map[int]chan Snapshot
	nextID      int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPropagator creates a propagator exposing the loading snapshot until Start runs.
func NewPropagator(source TokenSource, deriver SnapshotDeriver, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Propagator {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	return &Propagator{
		source:      source,
		deriver:     deriver,
		interval:    interval,
		metrics:     m,
		logger:      logger.With(slog.String("component", "session_propagator")),
		current:     Loading(),
		subscribers: make(map[int]chan Snapshot),
	}
}

/*
Start performs the initial derivation and launches the poll and watch loop.

Description: The initial derivation is synchronous; when Start returns the
snapshot is no longer loading. The loop stops on [Propagator.Close] or when ctx
is cancelled.

Parameters:
  - ctx: context.Context
*/
func (propagator *Propagator) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	propagator.cancel = cancel

	propagator.refresh(loopCtx, true)

	changes := propagator.source.Watch(loopCtx)

	propagator.wg.Add(1)
	go propagator.loop(loopCtx, changes)
}

func (propagator *Propagator) loop(ctx context.Context, changes <-chan credential.Change) {
	defer propagator.wg.Done()

	ticker := time.NewTicker(propagator.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			propagator.metrics.ObservePoll()
			propagator.refresh(ctx, false)

		case change, ok := <-changes:
			if !ok {
				// Watch ended; polling alone keeps the snapshot fresh.
				changes = nil
				continue
			}
			propagator.logger.DebugContext(ctx, "session_credential_changed",
				slog.String("key", change.Key),
				slog.String("source", change.Source),
			)
			propagator.refresh(ctx, false)
		}
	}
}

// Close stops the loop, waits for it and closes every subscriber channel.
func (propagator *Propagator) Close() {
	if propagator.cancel != nil {
		propagator.cancel()
	}
	propagator.wg.Wait()

	propagator.mu.Lock()
	defer propagator.mu.Unlock()

	propagator.closed = true
	for id, subscriber := range propagator.subscribers {
		close(subscriber)
		delete(propagator.subscribers, id)
	}
}

// # Refresh

// ForceRefresh re-derives from the current token regardless of whether it changed.
func (propagator *Propagator) ForceRefresh(ctx context.Context) Snapshot {
	propagator.refresh(ctx, true)
	return propagator.Snapshot()
}

func (propagator *Propagator) refresh(ctx context.Context, force bool) {
	propagator.readMu.Lock()
	token, _, err := propagator.source.Token(ctx)
	if err != nil {
		propagator.readMu.Unlock()
		propagator.logger.WarnContext(ctx, "session_token_read_failed", slog.Any("error", err))
		propagator.settleLoading()
		return
	}

	if !force && propagator.seenAny && token == propagator.lastSeen {
		propagator.readMu.Unlock()
		return
	}
	propagator.generation++
	generation := propagator.generation
	propagator.lastSeen = token
	propagator.seenAny = true
	propagator.readMu.Unlock()

	snapshot := propagator.deriver.Derive(ctx, token)

	if propagator.apply(generation, snapshot) {
		propagator.logger.DebugContext(ctx, "session_derived",
			slog.Uint64("generation", generation),
			slog.Bool("is_admin", snapshot.IsAdmin),
			slog.Bool("stale", snapshot.Stale),
		)
	}
}

// settleLoading replaces the loading placeholder with anonymous when the first read fails.
func (propagator *Propagator) settleLoading() {
	propagator.readMu.Lock()
	propagator.generation++
	generation := propagator.generation
	propagator.readMu.Unlock()

	propagator.mu.Lock()
	loading := propagator.applied == 0
	propagator.mu.Unlock()

	if loading {
		propagator.apply(generation, Anonymous())
	}
}

// apply installs snapshot if generation is newer than the applied one.
func (propagator *Propagator) apply(generation uint64, snapshot Snapshot) bool {
	propagator.mu.Lock()
	defer propagator.mu.Unlock()

	if generation <= propagator.applied {
		return false
	}

	snapshot.Generation = generation
	snapshot.IsLoading = false
	snapshot.IsTeamSwitching = propagator.switching

	propagator.applied = generation
	propagator.current = snapshot
	propagator.metrics.SetGeneration(generation)
	propagator.broadcastLocked()
	return true
}

// # Team Switch Flag

// beginSwitch raises the switching flag. It fails when a switch is already in flight.
func (propagator *Propagator) beginSwitch() bool {
	propagator.mu.Lock()
	defer propagator.mu.Unlock()

	if propagator.switching {
		return false
	}
	propagator.switching = true
	propagator.current.IsTeamSwitching = true
	propagator.broadcastLocked()
	return true
}

func (propagator *Propagator) endSwitch() {
	propagator.mu.Lock()
	defer propagator.mu.Unlock()

	propagator.switching = false
	propagator.current.IsTeamSwitching = false
	propagator.broadcastLocked()
}

// # Subscribers

// Snapshot returns the currently applied snapshot.
func (propagator *Propagator) Snapshot() Snapshot {
	propagator.mu.Lock()
	defer propagator.mu.Unlock()
	return propagator.current
}

/*
Subscribe registers a latest-value subscriber.

Description: The channel holds at most one snapshot; a slow reader only ever
sees the newest value. It starts with the current snapshot and is closed by
the returned cancel func or by [Propagator.Close].

Returns:
  - <-chan Snapshot: Snapshot stream
  - func(): Unsubscribe
*/
func (propagator *Propagator) Subscribe() (<-chan Snapshot, func()) {
	out := make(chan Snapshot, 1)

	propagator.mu.Lock()
	if propagator.closed {
		propagator.mu.Unlock()
		close(out)
		return out, func() {}
	}

	id := propagator.nextID
	propagator.nextID++
	propagator.subscribers[id] = out
	out <- propagator.current
	propagator.mu.Unlock()

	propagator.metrics.AddSubscribers(1)

	var once sync.Once
	return out, func() {
		once.Do(func() {
			propagator.mu.Lock()
			defer propagator.mu.Unlock()

			if subscriber, ok := propagator.subscribers[id]; ok {
				delete(propagator.subscribers, id)
				close(subscriber)
			}
			propagator.metrics.AddSubscribers(-1)
		})
	}
}

// broadcastLocked hands the current snapshot to every subscriber. Callers hold mu.
func (propagator *Propagator) broadcastLocked() {
	for _, subscriber := range propagator.subscribers {
		select {
		case <-subscriber:
		default:
		}
		subscriber <- propagator.current
	}
}
