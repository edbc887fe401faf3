package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryCheckpointStore keeps checkpoints in memory. Checkpoints are stored
// in marshaled form so a loaded checkpoint never aliases live observer state.
// Useful for tests and short-lived embedded pipelines.
type MemoryCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string][]byte
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: map[string][]byte{}}
}

func (s *MemoryCheckpointStore) Save(ctx context.Context, checkpoint *Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpoint.Pipeline] = data
	return nil
}

func (s *MemoryCheckpointStore) Load(ctx context.Context, pipeline string) (*Checkpoint, error) {
	s.mu.Lock()
	data, ok := s.checkpoints[pipeline]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (s *MemoryCheckpointStore) Delete(ctx context.Context, pipeline string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, pipeline)
	return nil
}
