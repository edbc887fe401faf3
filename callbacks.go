package streaming

import (
	"context"
	"time"
)

// PipelineCallbacks defines the callback interface for pipeline lifecycle
// events. Observer errors and checkpoint failures are surfaced here rather
// than aborting the runner.
type PipelineCallbacks interface {
	// Cycle-level callbacks
	BeforeCycle(ctx context.Context, event *CycleEvent)
	AfterCycle(ctx context.Context, event *CycleEvent)

	// OnEvent is called for every event an observer fired, after its
	// handlers ran.
	OnEvent(ctx context.Context, event *Event)

	// OnObserverError is called when one observer's detection pass failed
	// for the cycle, after its retry budget was spent.
	OnObserverError(ctx context.Context, event *ObserverErrorEvent)

	// OnCheckpointSave is called after every checkpoint save attempt.
	OnCheckpointSave(ctx context.Context, event *CheckpointSaveEvent)
}

// CycleEvent provides context for cycle-level callbacks
type CycleEvent struct {
	Pipeline  string
	Cycle     int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Observers int
	Events    int
	Errors    int
}

// ObserverErrorEvent provides context for a contained per-observer failure
type ObserverErrorEvent struct {
	Pipeline    string
	Cycle       int
	ObserverKey string
	Attempts    int
	Error       error
}

// CheckpointSaveEvent provides context for a checkpoint save attempt
type CheckpointSaveEvent struct {
	Pipeline  string
	Cycle     int
	Observers int
	Error     error
}

// BasePipelineCallbacks provides a default implementation that does nothing.
// Embed this in your own callbacks to only implement what you need.
type BasePipelineCallbacks struct{}

func (b *BasePipelineCallbacks) BeforeCycle(ctx context.Context, event *CycleEvent) {
	// noop
}

func (b *BasePipelineCallbacks) AfterCycle(ctx context.Context, event *CycleEvent) {
	// noop
}

func (b *BasePipelineCallbacks) OnEvent(ctx context.Context, event *Event) {
	// noop
}

func (b *BasePipelineCallbacks) OnObserverError(ctx context.Context, event *ObserverErrorEvent) {
	// noop
}

func (b *BasePipelineCallbacks) OnCheckpointSave(ctx context.Context, event *CheckpointSaveEvent) {
	// noop
}

// CallbackChain allows chaining multiple callback implementations
type CallbackChain struct {
	callbacks []PipelineCallbacks
}

// NewCallbackChain creates a new callback chain
func NewCallbackChain(callbacks ...PipelineCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add adds a callback to the chain
func (c *CallbackChain) Add(callback PipelineCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) BeforeCycle(ctx context.Context, event *CycleEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeCycle(ctx, event)
	}
}

func (c *CallbackChain) AfterCycle(ctx context.Context, event *CycleEvent) {
	for _, callback := range c.callbacks {
		callback.AfterCycle(ctx, event)
	}
}

func (c *CallbackChain) OnEvent(ctx context.Context, event *Event) {
	for _, callback := range c.callbacks {
		callback.OnEvent(ctx, event)
	}
}

func (c *CallbackChain) OnObserverError(ctx context.Context, event *ObserverErrorEvent) {
	for _, callback := range c.callbacks {
		callback.OnObserverError(ctx, event)
	}
}

func (c *CallbackChain) OnCheckpointSave(ctx context.Context, event *CheckpointSaveEvent) {
	for _, callback := range c.callbacks {
		callback.OnCheckpointSave(ctx, event)
	}
}
