package streaming

import (
	"context"
	"fmt"

	"github.com/crowdkit/streaming/script"
)

// ScriptHandler is an event Handler whose reaction logic is a Risor script.
// The script runs once per event with an `event` global holding the event's
// fields. A script evaluation error fails the handler, which keeps the
// observer's baseline unadvanced and redelivers the event next cycle.
type ScriptHandler struct {
	source   string
	compiled script.Script
}

// NewScriptHandler compiles source with the default globals plus the
// `event` binding.
func NewScriptHandler(ctx context.Context, source string) (*ScriptHandler, error) {
	globals := script.DefaultGlobals()
	globals["event"] = nil
	engine := script.NewRisorEngine(globals)
	compiled, err := engine.Compile(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile handler script: %w", err)
	}
	return &ScriptHandler{source: source, compiled: compiled}, nil
}

// Handle implements the Handler contract for a single event.
func (h *ScriptHandler) Handle(ctx context.Context, event Event) error {
	_, err := h.compiled.Evaluate(ctx, map[string]any{
		"event": map[string]any{
			"id":          event.ID,
			"type":        event.Type,
			"kind":        event.Kind,
			"resource_id": event.ResourceID,
			"payload":     event.Payload,
			"observed_at": event.ObservedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("handler script failed: %w", err)
	}
	return nil
}

// Handler adapts the ScriptHandler to the Handler function type.
func (h *ScriptHandler) Handler() Handler {
	return h.Handle
}
