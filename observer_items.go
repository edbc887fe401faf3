package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// KindItemSet tags observers that watch a growing set of item identifiers.
const KindItemSet = "items"

// ItemFetchFunc returns the current full set of item identifiers for a
// resource (e.g. completed task ids in a pool). Supplied by the surrounding
// platform client.
type ItemFetchFunc func(ctx context.Context, resourceID string) ([]string, error)

// ItemSetObserver watches a resource whose observable state is a set of item
// identifiers and fires one EventTypeNewItem event per never-before-seen id.
// The seen-set only grows: an id that disappears from a later raw snapshot
// (pagination glitches, platform-side reordering) and then reappears is never
// reported twice.
//
// The first successful fetch of an observer with no imported state baselines
// silently: all current items are marked seen and no events fire, so a fresh
// pipeline does not replay the platform's entire backlog.
type ItemSetObserver struct {
	resourceID string
	fetch      ItemFetchFunc
	handlers   handlerSet

	mu     sync.Mutex
	seen   map[string]struct{}
	primed bool
}

// NewItemSetObserver creates an item-set observer for the given resource.
func NewItemSetObserver(resourceID string, fetch ItemFetchFunc) *ItemSetObserver {
	return &ItemSetObserver{
		resourceID: resourceID,
		fetch:      fetch,
		seen:       map[string]struct{}{},
	}
}

func (o *ItemSetObserver) Key() string {
	return ObserverKey(KindItemSet, o.resourceID)
}

func (o *ItemSetObserver) Kind() string {
	return KindItemSet
}

func (o *ItemSetObserver) ResourceID() string {
	return o.resourceID
}

func (o *ItemSetObserver) AddHandler(handler Handler) {
	o.handlers.add(handler)
}

func (o *ItemSetObserver) DetectAndFire(ctx context.Context) ([]Event, error) {
	items, err := o.fetch(ctx, o.resourceID)
	if err != nil {
		return nil, classifyFetchError(o.resourceID, err)
	}

	o.mu.Lock()
	primed := o.primed
	var fresh []string
	for _, item := range items {
		if _, ok := o.seen[item]; !ok {
			fresh = append(fresh, item)
		}
	}
	o.mu.Unlock()
	sort.Strings(fresh)

	if !primed {
		// First observation: treat everything as already seen.
		o.commit(fresh)
		return nil, nil
	}

	var fired []Event
	for _, item := range fresh {
		event := Event{
			ID:          NewEventID(),
			Type:        EventTypeNewItem,
			Kind:        KindItemSet,
			ResourceID:  o.resourceID,
			ObserverKey: o.Key(),
			Payload:     map[string]any{"item_id": item},
			ObservedAt:  time.Now(),
		}
		if err := o.handlers.fire(ctx, o.Key(), event); err != nil {
			// Baseline stays put so the whole batch is redelivered next cycle.
			return fired, err
		}
		fired = append(fired, event)
	}
	o.commit(fresh)
	return fired, nil
}

func (o *ItemSetObserver) commit(items []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, item := range items {
		o.seen[item] = struct{}{}
	}
	o.primed = true
}

type itemSetState struct {
	Primed bool     `json:"primed"`
	Seen   []string `json:"seen"`
}

func (o *ItemSetObserver) ExportState() ([]byte, error) {
	o.mu.Lock()
	state := itemSetState{Primed: o.primed, Seen: make([]string, 0, len(o.seen))}
	for item := range o.seen {
		state.Seen = append(state.Seen, item)
	}
	o.mu.Unlock()
	sort.Strings(state.Seen)
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to export state for %s: %w", o.Key(), err)
	}
	return data, nil
}

func (o *ItemSetObserver) ImportState(data []byte) error {
	var state itemSetState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to import state for %s: %w", o.Key(), err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.primed = state.Primed
	o.seen = make(map[string]struct{}, len(state.Seen))
	for _, item := range state.Seen {
		o.seen[item] = struct{}{}
	}
	return nil
}
