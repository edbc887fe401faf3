package streaming

import (
	"context"
	"sync"
)

// Observer is a stateful unit of change detection bound to one watched
// resource. Implementations compare successive snapshots of the resource,
// fire registered handlers for every detected change, and advance their
// baseline only when both the fetch and all handlers succeeded.
//
// Export/Import must round-trip exactly: importing an exported state into a
// fresh observer reproduces identical diff behavior for any subsequent
// snapshot sequence.
type Observer interface {
	// Key returns the stable identity used for registry membership and
	// checkpoint lookup.
	Key() string

	// Kind returns the observer kind tag (diff rule family).
	Kind() string

	// ResourceID returns the identifier of the watched resource.
	ResourceID() string

	// AddHandler registers a handler invoked for every emitted event.
	AddHandler(handler Handler)

	// DetectAndFire fetches the resource's current snapshot, diffs it against
	// the baseline, and invokes all handlers for each detected change. It
	// returns the events it fired, including events delivered before a
	// handler failure.
	DetectAndFire(ctx context.Context) ([]Event, error)

	// ExportState serializes the observer's baseline for checkpointing.
	ExportState() ([]byte, error)

	// ImportState restores a baseline previously produced by ExportState.
	ImportState(data []byte) error
}

// ObserverKey derives the registry identity for a kind/resource pair.
func ObserverKey(kind, resourceID string) string {
	return kind + ":" + resourceID
}

// handlerSet holds an observer's registered handlers. Registration may race
// with a running detection pass, so reads take a copy.
type handlerSet struct {
	mu       sync.Mutex
	handlers []Handler
}

func (s *handlerSet) add(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

func (s *handlerSet) snapshot() []Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handler, len(s.handlers))
	copy(out, s.handlers)
	return out
}

// fire delivers event to every handler in registration order. The first
// handler failure aborts delivery and is wrapped as a CallbackError.
func (s *handlerSet) fire(ctx context.Context, observerKey string, event Event) error {
	for _, handler := range s.snapshot() {
		if err := handler(ctx, event); err != nil {
			return &CallbackError{ObserverKey: observerKey, EventID: event.ID, Err: err}
		}
	}
	return nil
}
