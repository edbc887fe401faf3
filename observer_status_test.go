package streaming

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStatusSource is a mutable in-memory snapshot source for status fields.
type fakeStatusSource struct {
	mu     sync.Mutex
	status string
	err    error
}

func (f *fakeStatusSource) fetch(ctx context.Context, resourceID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.status, nil
}

func (f *fakeStatusSource) set(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func TestStatusObserverBaselinesSilently(t *testing.T) {
	ctx := context.Background()
	source := &fakeStatusSource{status: "OPEN"}
	collector := &eventCollector{}
	observer := NewStatusObserver("pool-7", source.fetch)
	observer.AddHandler(collector.handler)

	events, err := observer.DetectAndFire(ctx)
	require.NoError(t, err)
	require.Empty(t, events)

	// Unchanged status never fires.
	events, err = observer.DetectAndFire(ctx)
	require.NoError(t, err)
	require.Empty(t, events)
	require.Zero(t, collector.count())
}

func TestStatusObserverFiresTransitions(t *testing.T) {
	ctx := context.Background()
	source := &fakeStatusSource{status: "OPEN"}
	collector := &eventCollector{}
	observer := NewStatusObserver("pool-7", source.fetch)
	observer.AddHandler(collector.handler)

	_, err := observer.DetectAndFire(ctx)
	require.NoError(t, err)

	source.set("CLOSED")
	events, err := observer.DetectAndFire(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventTypeStatusChanged, events[0].Type)
	require.Equal(t, "OPEN", events[0].Payload["from"])
	require.Equal(t, "CLOSED", events[0].Payload["to"])

	// Reverting is a real transition, not a duplicate.
	source.set("OPEN")
	events, err = observer.DetectAndFire(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "CLOSED", events[0].Payload["from"])
	require.Equal(t, "OPEN", events[0].Payload["to"])
}

func TestStatusObserverFetchFailureKeepsBaseline(t *testing.T) {
	ctx := context.Background()
	source := &fakeStatusSource{status: "OPEN"}
	observer := NewStatusObserver("pool-7", source.fetch)

	_, err := observer.DetectAndFire(ctx)
	require.NoError(t, err)

	source.err = errors.New("rate limit")
	_, err = observer.DetectAndFire(ctx)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)

	source.err = nil
	source.set("CLOSED")
	events, err := observer.DetectAndFire(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "OPEN", events[0].Payload["from"])
}

func TestStatusObserverHandlerFailureRedelivers(t *testing.T) {
	ctx := context.Background()
	source := &fakeStatusSource{status: "OPEN"}
	collector := &eventCollector{}
	observer := NewStatusObserver("pool-7", source.fetch)
	observer.AddHandler(collector.handler)

	_, err := observer.DetectAndFire(ctx)
	require.NoError(t, err)

	source.set("CLOSED")
	collector.failWith(errors.New("sink down"))
	_, err = observer.DetectAndFire(ctx)
	var callbackErr *CallbackError
	require.ErrorAs(t, err, &callbackErr)

	collector.failWith(nil)
	events, err := observer.DetectAndFire(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "CLOSED", events[0].Payload["to"])
}

func TestStatusObserverStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := &fakeStatusSource{status: "OPEN"}
	original := NewStatusObserver("pool-7", source.fetch)

	_, err := original.DetectAndFire(ctx)
	require.NoError(t, err)

	blob, err := original.ExportState()
	require.NoError(t, err)

	restored := NewStatusObserver("pool-7", source.fetch)
	require.NoError(t, restored.ImportState(blob))

	source.set("CLOSED")
	originalEvents, err := original.DetectAndFire(ctx)
	require.NoError(t, err)
	restoredEvents, err := restored.DetectAndFire(ctx)
	require.NoError(t, err)
	require.Len(t, originalEvents, 1)
	require.Len(t, restoredEvents, 1)
	require.Equal(t, originalEvents[0].Payload, restoredEvents[0].Payload)
}
