package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testEvent() Event {
	return Event{
		ID:          NewEventID(),
		Type:        EventTypeNewItem,
		Kind:        KindItemSet,
		ResourceID:  "pool-1",
		ObserverKey: ObserverKey(KindItemSet, "pool-1"),
		Payload:     map[string]any{"item_id": "a3"},
		ObservedAt:  time.Now(),
	}
}

func TestScriptHandlerSeesEventFields(t *testing.T) {
	ctx := context.Background()
	handler, err := NewScriptHandler(ctx, `
		assert(event["type"] == "item.new")
		assert(event["resource_id"] == "pool-1")
		assert(event["payload"]["item_id"] == "a3")
	`)
	require.NoError(t, err)
	require.NoError(t, handler.Handle(ctx, testEvent()))
}

func TestScriptHandlerFailureSurfacesAsError(t *testing.T) {
	ctx := context.Background()
	handler, err := NewScriptHandler(ctx, `assert(event["type"] == "status.changed", "unexpected event type")`)
	require.NoError(t, err)

	err = handler.Handle(ctx, testEvent())
	require.Error(t, err)
	require.Contains(t, err.Error(), "handler script failed")
}

func TestScriptHandlerCompileError(t *testing.T) {
	_, err := NewScriptHandler(context.Background(), "func (")
	require.Error(t, err)
}

func TestScriptHandlerBlocksObserverAdvance(t *testing.T) {
	// A failing script handler keeps the observer's baseline unadvanced,
	// so the event is redelivered once the script's condition is met.
	ctx := context.Background()
	source := &fakeItemSource{items: []string{"a1"}}
	observer := NewItemSetObserver("pool-1", source.fetch)

	handler, err := NewScriptHandler(ctx, `assert(event["payload"]["item_id"] != "a2", "a2 rejected")`)
	require.NoError(t, err)
	observer.AddHandler(handler.Handler())

	_, err = observer.DetectAndFire(ctx)
	require.NoError(t, err)

	source.set("a1", "a2")
	_, err = observer.DetectAndFire(ctx)
	var callbackErr *CallbackError
	require.ErrorAs(t, err, &callbackErr)

	// Still pending on the next pass.
	_, err = observer.DetectAndFire(ctx)
	require.ErrorAs(t, err, &callbackErr)
}
