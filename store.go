package streaming

import (
	"context"
)

// CheckpointStore persists pipeline checkpoints. Save must replace the
// persisted checkpoint atomically: a crash mid-save leaves either the old or
// the new complete checkpoint, never a torn one.
type CheckpointStore interface {
	// Save atomically replaces the persisted checkpoint for a pipeline
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load returns the persisted checkpoint for a pipeline, or (nil, nil)
	// when none exists
	Load(ctx context.Context, pipeline string) (*Checkpoint, error)

	// Delete removes checkpoint data for a pipeline
	Delete(ctx context.Context, pipeline string) error
}
