package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = time.Second
	DefaultMaxWait    = 30 * time.Second
)

type settings struct {
	maxRetries int
	baseWait   time.Duration
	maxWait    time.Duration
}

// Option configures a call to Do.
type Option func(*settings)

// WithMaxRetries sets how many times a failed call is retried. The function
// passed to Do is always invoked at least once, so Do makes up to n+1 attempts.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.maxRetries = n }
}

// WithBaseWait sets the wait before the first retry. Each subsequent retry
// doubles the wait.
func WithBaseWait(d time.Duration) Option {
	return func(s *settings) { s.baseWait = d }
}

// WithMaxWait caps the exponentially growing wait between retries.
func WithMaxWait(d time.Duration) Option {
	return func(s *settings) { s.maxWait = d }
}

// Do invokes fn and retries it with exponential backoff while it returns a
// recoverable error. Non-recoverable errors are returned immediately. The
// last error is returned once retries are exhausted or ctx is done.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	s := settings{
		maxRetries: DefaultMaxRetries,
		baseWait:   DefaultBaseWait,
		maxWait:    DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(&s)
	}
	wait := s.baseWait
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRecoverable(err) {
			return err
		}
		if attempt >= s.maxRetries {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		wait *= 2
		if s.maxWait > 0 && wait > s.maxWait {
			wait = s.maxWait
		}
	}
}
