package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// KindStatus tags observers that watch a scalar status field.
const KindStatus = "status"

// StatusFetchFunc returns the current status value of a resource (e.g. a
// pool's open/closed state). Supplied by the surrounding platform client.
type StatusFetchFunc func(ctx context.Context, resourceID string) (string, error)

// StatusObserver watches a resource's status field and fires one
// EventTypeStatusChanged event per observed value transition. An unchanged
// value never re-fires. The first observation baselines silently.
type StatusObserver struct {
	resourceID string
	fetch      StatusFetchFunc
	handlers   handlerSet

	mu     sync.Mutex
	last   string
	primed bool
}

// NewStatusObserver creates a status observer for the given resource.
func NewStatusObserver(resourceID string, fetch StatusFetchFunc) *StatusObserver {
	return &StatusObserver{resourceID: resourceID, fetch: fetch}
}

func (o *StatusObserver) Key() string {
	return ObserverKey(KindStatus, o.resourceID)
}

func (o *StatusObserver) Kind() string {
	return KindStatus
}

func (o *StatusObserver) ResourceID() string {
	return o.resourceID
}

func (o *StatusObserver) AddHandler(handler Handler) {
	o.handlers.add(handler)
}

func (o *StatusObserver) DetectAndFire(ctx context.Context) ([]Event, error) {
	status, err := o.fetch(ctx, o.resourceID)
	if err != nil {
		return nil, classifyFetchError(o.resourceID, err)
	}

	o.mu.Lock()
	primed := o.primed
	last := o.last
	o.mu.Unlock()

	if !primed {
		o.commit(status)
		return nil, nil
	}
	if status == last {
		return nil, nil
	}

	event := Event{
		ID:          NewEventID(),
		Type:        EventTypeStatusChanged,
		Kind:        KindStatus,
		ResourceID:  o.resourceID,
		ObserverKey: o.Key(),
		Payload:     map[string]any{"from": last, "to": status},
		ObservedAt:  time.Now(),
	}
	if err := o.handlers.fire(ctx, o.Key(), event); err != nil {
		return nil, err
	}
	o.commit(status)
	return []Event{event}, nil
}

func (o *StatusObserver) commit(status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = status
	o.primed = true
}

type statusState struct {
	Primed bool   `json:"primed"`
	Last   string `json:"last"`
}

func (o *StatusObserver) ExportState() ([]byte, error) {
	o.mu.Lock()
	state := statusState{Primed: o.primed, Last: o.last}
	o.mu.Unlock()
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to export state for %s: %w", o.Key(), err)
	}
	return data, nil
}

func (o *StatusObserver) ImportState(data []byte) error {
	var state statusState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to import state for %s: %w", o.Key(), err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.primed = state.Primed
	o.last = state.Last
	return nil
}
