package streaming

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileCheckpointStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileCheckpointStore(t.TempDir())
	require.NoError(t, err)

	checkpoint := &Checkpoint{
		Pipeline: "main",
		Cycle:    7,
		States: map[string]json.RawMessage{
			"items:pool-1": json.RawMessage(`{"primed":true,"seen":["a1"]}`),
		},
		SavedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(ctx, checkpoint))

	loaded, err := store.Load(ctx, "main")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 7, loaded.Cycle)
	require.JSONEq(t, `{"primed":true,"seen":["a1"]}`, string(loaded.States["items:pool-1"]))
}

func TestFileCheckpointStoreLoadMissing(t *testing.T) {
	store, err := NewFileCheckpointStore(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestFileCheckpointStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileCheckpointStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, &Checkpoint{Pipeline: "main", Cycle: 1}))
	require.NoError(t, store.Save(ctx, &Checkpoint{Pipeline: "main", Cycle: 2}))

	loaded, err := store.Load(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Cycle)

	// The temp-then-rename discipline leaves no partial files behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "checkpoint-main.json", entries[0].Name())
}

func TestFileCheckpointStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileCheckpointStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, &Checkpoint{Pipeline: "main", Cycle: 1}))
	require.NoError(t, store.Delete(ctx, "main"))
	require.NoError(t, store.Delete(ctx, "main")) // idempotent

	loaded, err := store.Load(ctx, "main")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestFileCheckpointStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileCheckpointStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint-main.json"), []byte("{torn"), 0644))
	_, err = store.Load(ctx, "main")
	require.Error(t, err)
}
