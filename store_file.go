package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileCheckpointStore is a file-based implementation that persists one JSON
// checkpoint file per pipeline. Saves go through a temp file followed by a
// rename so readers always see a complete checkpoint.
type FileCheckpointStore struct {
	dataDir string
}

// NewFileCheckpointStore creates a new file-based checkpoint store
func NewFileCheckpointStore(dataDir string) (*FileCheckpointStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".crowdkit", "streaming", "checkpoints")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileCheckpointStore{dataDir: dataDir}, nil
}

func (s *FileCheckpointStore) path(pipeline string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("checkpoint-%s.json", pipeline))
}

// Save writes the checkpoint to a temp file and renames it into place.
func (s *FileCheckpointStore) Save(ctx context.Context, checkpoint *Checkpoint) error {
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, "checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp checkpoint file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(checkpoint.Pipeline)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

// Load reads the checkpoint for a pipeline, returning (nil, nil) when no
// checkpoint file exists.
func (s *FileCheckpointStore) Load(ctx context.Context, pipeline string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(pipeline))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// Delete removes the checkpoint file for a pipeline.
func (s *FileCheckpointStore) Delete(ctx context.Context, pipeline string) error {
	if err := os.Remove(s.path(pipeline)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}
