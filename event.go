package streaming

import (
	"context"
	"time"

	"go.jetify.com/typeid"
)

// Event types emitted by the built-in observer kinds.
const (
	EventTypeNewItem       = "item.new"
	EventTypeStatusChanged = "status.changed"
)

// NewEventID returns a new typed UUID for event identification
func NewEventID() string {
	id, err := typeid.WithPrefix("evt")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Event describes one detected change on a watched resource.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Kind        string         `json:"kind"`
	ResourceID  string         `json:"resource_id"`
	ObserverKey string         `json:"observer_key"`
	Payload     map[string]any `json:"payload,omitempty"`
	ObservedAt  time.Time      `json:"observed_at"`
}

// Handler reacts to a single event. Handlers run synchronously inside the
// observer's detection pass and must tolerate seeing the same logical event
// more than once: a failed cycle redelivers everything it already fired.
type Handler func(ctx context.Context, event Event) error
