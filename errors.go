package streaming

import (
	"context"
	"errors"
	"fmt"
)

// FetchError reports a failed snapshot fetch for a watched resource.
// Transient failures (Permanent == false) are retried with backoff inside the
// cycle and again on the next cycle; permanent ones exhaust the observer's
// retry budget for the current cycle immediately.
type FetchError struct {
	ResourceID string
	Permanent  bool
	Err        error
}

func (e *FetchError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("fetch %s: %s: %s", e.ResourceID, kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRecoverable implements retry.RecoverableError.
func (e *FetchError) IsRecoverable() bool {
	return !e.Permanent
}

// NewTransientFetchError wraps err as a retryable fetch failure.
func NewTransientFetchError(resourceID string, err error) *FetchError {
	return &FetchError{ResourceID: resourceID, Err: err}
}

// NewPermanentFetchError wraps err as a fetch failure that retrying cannot
// fix (e.g. the watched resource no longer exists).
func NewPermanentFetchError(resourceID string, err error) *FetchError {
	return &FetchError{ResourceID: resourceID, Permanent: true, Err: err}
}

// IsPermanentFetch reports whether err is (or wraps) a permanent FetchError.
func IsPermanentFetch(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Permanent
}

// classifyFetchError normalizes an arbitrary snapshot source error into a
// FetchError. Unknown errors default to transient so they get retried;
// sources that know better return a permanent FetchError themselves.
func classifyFetchError(resourceID string, err error) *FetchError {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	return &FetchError{
		ResourceID: resourceID,
		Permanent:  errors.Is(err, context.Canceled),
		Err:        err,
	}
}

// CallbackError reports a handler that failed while reacting to an event.
// The observer's baseline is not advanced, so the same event is redelivered
// on the next cycle; handlers must be idempotent under redelivery.
type CallbackError struct {
	ObserverKey string
	EventID     string
	Err         error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback for %s (event %s): %s", e.ObserverKey, e.EventID, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// IsRecoverable implements retry.RecoverableError. Handler failures are not
// retried within a cycle; redelivery happens on the next cycle instead.
func (e *CallbackError) IsRecoverable() bool {
	return false
}

// DuplicateObserverError is returned when registering an observer whose key
// is already present, including keys flagged for deletion but not yet
// compacted away.
type DuplicateObserverError struct {
	Key string
}

func (e *DuplicateObserverError) Error() string {
	return fmt.Sprintf("observer already registered: %s", e.Key)
}

// CheckpointError reports a failed checkpoint load or save.
type CheckpointError struct {
	Op  string
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s: %s", e.Op, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}
