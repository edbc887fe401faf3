package streaming

import (
	"sync"
	"sync/atomic"
)

// registryEntry is the arena slot for one registered observer. The deleted
// flag is sticky: once set it is never cleared, and the entry is skipped by
// every pass that checks it, even a pass whose snapshot predates the flag.
type registryEntry struct {
	observer Observer
	deleted  atomic.Bool
}

// observerRegistry is an ordered, insertion-order-preserving collection of
// observers. Mutations (register, scheduleDeletion, compact) are serialized
// by a single mutex; iteration works over a stable snapshot of the entry
// slice so a pass never observes mid-pass registrations and never mutates
// storage under traversal. Physical removal of flagged entries happens only
// in compact, between passes.
type observerRegistry struct {
	mu      sync.Mutex
	entries []*registryEntry
	byKey   map[string]*registryEntry
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{byKey: map[string]*registryEntry{}}
}

// register appends observer to the end of the sequence. A key that is still
// present is rejected even when it is deletion-flagged: the identity is not
// reusable until the next compaction drops it.
func (r *observerRegistry) register(observer Observer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := observer.Key()
	if _, ok := r.byKey[key]; ok {
		return &DuplicateObserverError{Key: key}
	}
	entry := &registryEntry{observer: observer}
	r.entries = append(r.entries, entry)
	r.byKey[key] = entry
	return nil
}

// scheduleDeletion flags the observer with the given key. Missing or
// already-flagged keys are a no-op.
func (r *observerRegistry) scheduleDeletion(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.byKey[key]; ok {
		entry.deleted.Store(true)
	}
}

// snapshot returns a stable copy of the current membership for one pass.
// Callers must check each entry's deleted flag at yield time; a deletion
// that lands after an entry was already yielded is unavoidable and handlers
// must tolerate running once more.
func (r *observerRegistry) snapshot() []*registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*registryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// compact physically drops flagged entries. Only called between passes.
func (r *observerRegistry) compact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, entry := range r.entries {
		if entry.deleted.Load() {
			delete(r.byKey, entry.observer.Key())
			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept
}

func (r *observerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
