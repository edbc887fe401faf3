package streaming

import "context"

// NullCheckpointStore is a no-op implementation
type NullCheckpointStore struct{}

func NewNullCheckpointStore() *NullCheckpointStore {
	return &NullCheckpointStore{}
}

func (s *NullCheckpointStore) Save(ctx context.Context, checkpoint *Checkpoint) error {
	return nil
}

func (s *NullCheckpointStore) Load(ctx context.Context, pipeline string) (*Checkpoint, error) {
	return nil, nil
}

func (s *NullCheckpointStore) Delete(ctx context.Context, pipeline string) error {
	return nil
}
