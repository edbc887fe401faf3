package streaming

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresCheckpointStore persists one checkpoint row per pipeline. The
// single-row upsert makes each save an atomic replace, which satisfies the
// same torn-write guarantee the file store gets from rename.
type PostgresCheckpointStore struct {
	db *sql.DB
}

// NewPostgresCheckpointStore wraps an existing database handle.
func NewPostgresCheckpointStore(db *sql.DB) *PostgresCheckpointStore {
	return &PostgresCheckpointStore{db: db}
}

// OpenPostgresCheckpointStore opens a connection with the pq driver and
// verifies it before returning a store.
func OpenPostgresCheckpointStore(ctx context.Context, dsn string) (*PostgresCheckpointStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresCheckpointStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *PostgresCheckpointStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *PostgresCheckpointStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS streaming_checkpoint (
			pipeline TEXT PRIMARY KEY,
			data     JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint table: %w", err)
	}
	return nil
}

func (s *PostgresCheckpointStore) Save(ctx context.Context, checkpoint *Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO streaming_checkpoint (pipeline, data, saved_at)
		VALUES ($1, $2, now())
		ON CONFLICT (pipeline)
		DO UPDATE SET data = EXCLUDED.data, saved_at = now()`,
		checkpoint.Pipeline, data)
	if err != nil {
		return fmt.Errorf("failed to upsert checkpoint: %w", err)
	}
	return nil
}

func (s *PostgresCheckpointStore) Load(ctx context.Context, pipeline string) (*Checkpoint, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM streaming_checkpoint WHERE pipeline = $1`, pipeline).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (s *PostgresCheckpointStore) Delete(ctx context.Context, pipeline string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM streaming_checkpoint WHERE pipeline = $1`, pipeline); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
