// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential

import (
	"context"
	"sync"
)

// LocalBroadcaster delivers changes to watchers in the same process.
type LocalBroadcaster struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]chan Change
}

// NewLocalBroadcaster creates an in-process broadcaster.
func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{subscribers: make(map[int]chan Change)}
}

// Publish implements [Broadcaster]. It never blocks; a full subscriber misses the event.
func (broadcaster *LocalBroadcaster) Publish(_ context.Context, change Change) error {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()

	for _, subscriber := range broadcaster.subscribers {
		select {
		case subscriber <- change:
		default:
		}
	}
	return nil
}

// Subscribe implements [Broadcaster]. The channel closes once ctx is done.
func (broadcaster *LocalBroadcaster) Subscribe(ctx context.Context) (<-chan Change, error) {
	out := make(chan Change, 16)

	broadcaster.mu.Lock()
	id := broadcaster.nextID
	broadcaster.nextID++
	broadcaster.subscribers[id] = out
	broadcaster.mu.Unlock()

	go func() {
		<-ctx.Done()
		broadcaster.mu.Lock()
		delete(broadcaster.subscribers, id)
		close(out)
		broadcaster.mu.Unlock()
	}()

	return out, nil
}
