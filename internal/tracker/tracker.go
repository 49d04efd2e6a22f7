// Package tracker provides the keyed pending-exchange stores used by both
// peers: a map from exchange id to a timestamped value, guarded by a single
// mutex and swept for entries whose acknowledgment never arrived.
package tracker

import (
	"context"
	"sync"
	"time"
)

// Expired describes an entry dropped by a sweep.
type Expired[V any] struct {
	ID    string
	Value V
	Age   time.Duration
}

type entry[V any] struct {
	value   V
	created time.Time
}

// Tracker maps exchange ids to values. All methods are safe for concurrent
// use; the lock is held only for the map access itself.
type Tracker[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
}

// New creates an empty tracker. Entries older than ttl are dropped by Sweep;
// a ttl of zero disables eviction.
func New[V any](ttl time.Duration) *Tracker[V] {
	return &Tracker[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
}

// Put stores v under id, replacing any previous value.
func (t *Tracker[V]) Put(id string, v V) {
	created := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = entry[V]{value: v, created: created}
}

// Get returns the value stored under id without removing it.
func (t *Tracker[V]) Get(id string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e.value, ok
}

// Take returns and removes the value stored under id.
func (t *Tracker[V]) Take(id string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return e.value, ok
}

// Delete removes id. Removing an unknown id is a no-op.
func (t *Tracker[V]) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Len returns the number of pending entries.
func (t *Tracker[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear drops every entry.
func (t *Tracker[V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.entries)
}

// Sweep removes and returns the entries older than the tracker's ttl.
func (t *Tracker[V]) Sweep() []Expired[V] {
	if t.ttl <= 0 {
		return nil
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []Expired[V]
	for id, e := range t.entries {
		if age := now.Sub(e.created); age >= t.ttl {
			expired = append(expired, Expired[V]{ID: id, Value: e.value, Age: age})
			delete(t.entries, id)
		}
	}
	return expired
}

// Run sweeps every interval until ctx is cancelled, calling onExpire for each
// dropped entry outside the lock. It returns immediately when eviction is
// disabled.
func (t *Tracker[V]) Run(ctx context.Context, interval time.Duration, onExpire func(Expired[V])) {
	if t.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, e := range t.Sweep() {
				if onExpire != nil {
					onExpire(e)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
