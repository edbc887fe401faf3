package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/crowdkit/streaming/retry"
)

// Status represents the pipeline lifecycle state
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
)

// Options configures a new pipeline
type Options struct {
	// Name identifies the pipeline; it keys the persisted checkpoint.
	Name string

	// Store persists checkpoints. Defaults to NullCheckpointStore.
	Store CheckpointStore

	// Logger for pipeline diagnostics. Defaults to a discard logger.
	Logger *slog.Logger

	// Callbacks receive cycle and error notifications. Optional.
	Callbacks PipelineCallbacks

	// Formatter pretty-prints events as they fire. Optional.
	Formatter EventFormatter

	// Period is the sleep between cycles. Defaults to one minute.
	Period time.Duration

	// RetryMaxAttempts caps fetch attempts per observer per cycle,
	// counting the first try. Defaults to 3.
	RetryMaxAttempts int

	// RetryBaseWait is the backoff before the first retry. Defaults to 1s.
	RetryBaseWait time.Duration

	// RetryMaxWait caps the exponential backoff. Defaults to 30s.
	RetryMaxWait time.Duration

	// MaxCycles bounds the run when positive; zero means run until
	// cancelled or stopped.
	MaxCycles int

	// StartFresh skips checkpoint restore at startup.
	StartFresh bool

	// StrictCheckpoint makes a failed checkpoint save fatal. By default the
	// loop logs the failure and keeps going, accepting that a later restart
	// may redeliver events already fired this cycle.
	StrictCheckpoint bool
}

// Pipeline polls a set of observers on a fixed period and checkpoints their
// state after every pass. It is constructed and owned by the caller; there is
// no process-wide instance.
type Pipeline struct {
	name      string
	registry  *observerRegistry
	store     CheckpointStore
	logger    *slog.Logger
	callbacks PipelineCallbacks
	formatter EventFormatter

	period           time.Duration
	retryMaxAttempts int
	retryBaseWait    time.Duration
	retryMaxWait     time.Duration
	maxCycles        int
	startFresh       bool
	strictCheckpoint bool

	mu      sync.Mutex
	status  Status
	started bool
	cycle   int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a new pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("pipeline name required")
	}
	if opts.Store == nil {
		opts.Store = NewNullCheckpointStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BasePipelineCallbacks{}
	}
	if opts.Period <= 0 {
		opts.Period = time.Minute
	}
	if opts.RetryMaxAttempts <= 0 {
		opts.RetryMaxAttempts = 3
	}
	if opts.RetryBaseWait <= 0 {
		opts.RetryBaseWait = time.Second
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 30 * time.Second
	}
	return &Pipeline{
		name:             opts.Name,
		registry:         newObserverRegistry(),
		store:            opts.Store,
		logger:           opts.Logger.With("pipeline", opts.Name),
		callbacks:        opts.Callbacks,
		formatter:        opts.Formatter,
		period:           opts.Period,
		retryMaxAttempts: opts.RetryMaxAttempts,
		retryBaseWait:    opts.RetryBaseWait,
		retryMaxWait:     opts.RetryMaxWait,
		maxCycles:        opts.MaxCycles,
		startFresh:       opts.StartFresh,
		strictCheckpoint: opts.StrictCheckpoint,
		status:           StatusIdle,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}, nil
}

// Name returns the pipeline name
func (p *Pipeline) Name() string {
	return p.name
}

// Status returns the current lifecycle state
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Register adds an observer to the end of the dispatch order. It is visible
// to any cycle starting after Register returns. Registering a key that is
// still present, even one scheduled for deletion but not yet compacted,
// returns a DuplicateObserverError.
func (p *Pipeline) Register(observer Observer) error {
	if err := p.registry.register(observer); err != nil {
		return err
	}
	p.logger.Info("observer registered", "observer", observer.Key())
	return nil
}

// Deregister schedules the observer with the given key for deletion. The
// observer is skipped from the point the flag is checked and physically
// removed between passes. Unknown keys are a no-op.
func (p *Pipeline) Deregister(key string) {
	p.registry.scheduleDeletion(key)
	p.logger.Info("observer deletion scheduled", "observer", key)
}

func (p *Pipeline) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("pipeline already started")
	}
	p.started = true
	p.status = StatusRunning
	return nil
}

// Run restores state from the checkpoint store, then loops cycles until the
// context is cancelled, Stop is called, or MaxCycles is reached. The current
// cycle always finishes before the loop exits; in-flight fetches and
// handlers are never interrupted by Stop.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.start(); err != nil {
		return err
	}
	err := p.run(ctx)
	p.mu.Lock()
	p.status = StatusStopped
	p.mu.Unlock()
	close(p.done)
	if err != nil {
		p.logger.Error("pipeline stopped with error", "error", err)
	} else {
		p.logger.Info("pipeline stopped")
	}
	return err
}

// RequestStop requests a graceful stop without waiting for it. Safe to call
// from handlers running inside a cycle: the current cycle still finishes and
// is checkpointed before Run returns.
func (p *Pipeline) RequestStop() {
	p.mu.Lock()
	if p.status == StatusRunning {
		p.status = StatusStopping
	} else if !p.started {
		p.status = StatusStopped
	}
	p.mu.Unlock()
	p.stopOnce.Do(func() { close(p.stop) })
}

// Stop requests a graceful stop and blocks until the pipeline reaches
// StatusStopped. It waits on the run loop, so it must be called from outside
// it; a handler stopping its own pipeline uses RequestStop instead.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	p.RequestStop()
	if started {
		<-p.done
	}
}

func (p *Pipeline) stopping() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

func (p *Pipeline) run(ctx context.Context) error {
	if !p.startFresh {
		if err := p.restore(ctx); err != nil {
			return err
		}
	}
	p.logger.Info("pipeline started",
		"period", p.period,
		"observers", p.registry.len(),
		"start_fresh", p.startFresh)

	cycles := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.stopping() {
			return nil
		}
		if err := p.runCycle(ctx); err != nil {
			return err
		}
		cycles++
		if p.maxCycles > 0 && cycles >= p.maxCycles {
			p.logger.Info("cycle limit reached", "cycles", cycles)
			return nil
		}
		timer := time.NewTimer(p.period)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// restore imports checkpointed state into every pre-registered observer with
// a matching identity. Observers without an entry keep their empty baseline,
// so their first cycle marks current platform state as seen instead of
// replaying the backlog. A load or import failure refuses startup.
func (p *Pipeline) restore(ctx context.Context) error {
	checkpoint, err := p.store.Load(ctx, p.name)
	if err != nil {
		return &CheckpointError{Op: "load", Err: err}
	}
	if checkpoint == nil {
		return nil
	}
	p.cycle = checkpoint.Cycle
	restored := 0
	for _, entry := range p.registry.snapshot() {
		state, ok := checkpoint.States[entry.observer.Key()]
		if !ok {
			continue
		}
		if err := entry.observer.ImportState(state); err != nil {
			return &CheckpointError{Op: "load", Err: err}
		}
		restored++
	}
	p.logger.Info("restored from checkpoint",
		"cycle", checkpoint.Cycle,
		"restored", restored,
		"saved_at", checkpoint.SavedAt)
	return nil
}

func (p *Pipeline) runCycle(ctx context.Context) error {
	p.cycle++
	cycleEvent := &CycleEvent{
		Pipeline:  p.name,
		Cycle:     p.cycle,
		StartTime: time.Now(),
	}
	p.callbacks.BeforeCycle(ctx, cycleEvent)

	entries := p.registry.snapshot()
	cycleEvent.Observers = len(entries)
	for _, entry := range entries {
		// Deletion flag is checked at yield time, not at snapshot time.
		if entry.deleted.Load() {
			continue
		}
		observer := entry.observer
		events, attempts, err := p.detectWithRetry(ctx, observer)
		cycleEvent.Events += len(events)
		for i := range events {
			p.callbacks.OnEvent(ctx, &events[i])
			if p.formatter != nil {
				p.formatter.PrintEvent(events[i])
			}
		}
		if err != nil {
			cycleEvent.Errors++
			p.logger.Error("observer failed for cycle",
				"observer", observer.Key(),
				"attempts", attempts,
				"error", err)
			if p.formatter != nil {
				p.formatter.PrintObserverError(observer.Key(), err)
			}
			p.callbacks.OnObserverError(ctx, &ObserverErrorEvent{
				Pipeline:    p.name,
				Cycle:       p.cycle,
				ObserverKey: observer.Key(),
				Attempts:    attempts,
				Error:       err,
			})
		}
	}

	// All observers in the pass have been attempted; now it is safe to drop
	// flagged entries and persist the cycle's resulting state.
	p.registry.compact()
	if err := p.saveCheckpoint(ctx); err != nil {
		return err
	}

	cycleEvent.EndTime = time.Now()
	cycleEvent.Duration = cycleEvent.EndTime.Sub(cycleEvent.StartTime)
	if p.formatter != nil {
		p.formatter.PrintCycleSummary(p.cycle, cycleEvent.Events, cycleEvent.Errors)
	}
	p.callbacks.AfterCycle(ctx, cycleEvent)
	p.logger.Debug("cycle complete",
		"cycle", p.cycle,
		"events", cycleEvent.Events,
		"errors", cycleEvent.Errors,
		"duration", cycleEvent.Duration)
	return nil
}

// detectWithRetry runs one observer's detection pass under the pipeline's
// retry policy. Only transient failures are retried; permanent fetch errors
// and handler failures exhaust the budget immediately. Events fired on a
// failed attempt are still reported.
func (p *Pipeline) detectWithRetry(ctx context.Context, observer Observer) ([]Event, int, error) {
	var events []Event
	attempts := 0
	err := retry.Do(ctx, func() error {
		attempts++
		fired, err := observer.DetectAndFire(ctx)
		events = append(events, fired...)
		return err
	},
		retry.WithMaxRetries(p.retryMaxAttempts-1),
		retry.WithBaseWait(p.retryBaseWait),
		retry.WithMaxWait(p.retryMaxWait))
	return events, attempts, err
}

// saveCheckpoint persists the exported state of all surviving observers.
// This runs strictly after every observer in the pass finished, so a
// persisted checkpoint always reflects a whole cycle.
func (p *Pipeline) saveCheckpoint(ctx context.Context) error {
	states := map[string]json.RawMessage{}
	for _, entry := range p.registry.snapshot() {
		if entry.deleted.Load() {
			continue
		}
		blob, err := entry.observer.ExportState()
		if err != nil {
			exportErr := &CheckpointError{Op: "export", Err: err}
			if p.strictCheckpoint {
				return exportErr
			}
			p.logger.Error("skipping checkpoint for cycle", "error", exportErr)
			p.callbacks.OnCheckpointSave(ctx, &CheckpointSaveEvent{
				Pipeline: p.name,
				Cycle:    p.cycle,
				Error:    exportErr,
			})
			return nil
		}
		states[entry.observer.Key()] = blob
	}

	checkpoint := &Checkpoint{
		Pipeline: p.name,
		Cycle:    p.cycle,
		States:   states,
		SavedAt:  time.Now(),
	}
	err := p.store.Save(ctx, checkpoint)
	p.callbacks.OnCheckpointSave(ctx, &CheckpointSaveEvent{
		Pipeline:  p.name,
		Cycle:     p.cycle,
		Observers: len(states),
		Error:     err,
	})
	if err != nil {
		saveErr := &CheckpointError{Op: "save", Err: err}
		if p.strictCheckpoint {
			return saveErr
		}
		// At-least-once: a restart before the next successful save replays
		// this cycle's events.
		p.logger.Error("checkpoint save failed, continuing unsaved", "error", saveErr)
	}
	return nil
}
