package streaming

import (
	"context"
	"errors"
	"testing"

	"github.com/crowdkit/streaming/retry"
	"github.com/stretchr/testify/require"
)

func TestFetchErrorClassification(t *testing.T) {
	cause := errors.New("connection refused")

	transient := NewTransientFetchError("pool-1", cause)
	require.Equal(t, "fetch pool-1: transient: connection refused", transient.Error())
	require.ErrorIs(t, transient, cause)
	require.False(t, IsPermanentFetch(transient))
	require.True(t, retry.IsRecoverable(transient))

	permanent := NewPermanentFetchError("pool-1", errors.New("resource gone"))
	require.True(t, IsPermanentFetch(permanent))
	require.False(t, retry.IsRecoverable(permanent))
}

func TestClassifyFetchError(t *testing.T) {
	t.Run("passes through FetchError", func(t *testing.T) {
		original := NewPermanentFetchError("pool-1", errors.New("gone"))
		require.Same(t, original, classifyFetchError("pool-1", original))
	})

	t.Run("unknown errors default to transient", func(t *testing.T) {
		classified := classifyFetchError("pool-1", errors.New("weird failure"))
		require.False(t, classified.Permanent)
		require.Equal(t, "pool-1", classified.ResourceID)
	})

	t.Run("cancellation is permanent", func(t *testing.T) {
		classified := classifyFetchError("pool-1", context.Canceled)
		require.True(t, classified.Permanent)
	})
}

func TestCallbackErrorIsNotRetried(t *testing.T) {
	cause := errors.New("sink down")
	err := &CallbackError{ObserverKey: "items:pool-1", EventID: "evt_123", Err: cause}
	require.ErrorIs(t, err, cause)
	require.False(t, retry.IsRecoverable(err))
	require.Contains(t, err.Error(), "items:pool-1")
	require.Contains(t, err.Error(), "evt_123")
}

func TestDuplicateObserverError(t *testing.T) {
	err := &DuplicateObserverError{Key: "items:pool-1"}
	require.Equal(t, "observer already registered: items:pool-1", err.Error())
}

func TestCheckpointErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := &CheckpointError{Op: "save", Err: cause}
	require.Equal(t, "checkpoint save: disk full", err.Error())
	require.ErrorIs(t, err, cause)
}
