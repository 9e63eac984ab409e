// Package util provides shared utility functions for replicasync.
package util

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"replicasync/internal/common"
)

// LockRetry configures how long a session keeps trying to lock an archive file.
type LockRetry struct {
	Attempts uint
	Delay    time.Duration
}

// DefaultLockRetry returns the lock retry policy used when nothing is configured.
func DefaultLockRetry() LockRetry {
	return LockRetry{Attempts: 5, Delay: 200 * time.Millisecond}
}

// LockRetryOptions returns retry options for archive lock acquisition.
// Only lock failures are retried; I/O and decode errors return at once.
func LockRetryOptions(ctx context.Context, cfg LockRetry) []retry.Option {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	return []retry.Option{
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsLocked),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
}

// DatabaseRetryOptions returns retry options optimized for database operations.
// Uses linear backoff (100ms, 200ms, 300ms) suitable for transient lock errors.
func DatabaseRetryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(300 * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsDatabaseLocked),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
}

// DefaultRetryOptions returns sensible defaults for retry operations.
func DefaultRetryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(1 * time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	}
}

// Retry executes fn with retry logic.
// Returns the last error if all attempts fail.
func Retry(ctx context.Context, fn func() error, opts ...retry.Option) error {
	if len(opts) == 0 {
		opts = DefaultRetryOptions(ctx)
	}
	return retry.Do(fn, opts...)
}

// RetryWithResult executes fn with retry logic and returns the result.
func RetryWithResult[T any](ctx context.Context, fn func() (T, error), opts ...retry.Option) (T, error) {
	if len(opts) == 0 {
		opts = DefaultRetryOptions(ctx)
	}
	return retry.DoWithData(fn, opts...)
}

// Common retry predicates

// IsLocked returns true if the error is an archive lock acquisition failure.
func IsLocked(err error) bool {
	return errors.Is(err, common.ErrLocked)
}

// IsDatabaseLocked returns true if the error indicates a database lock.
func IsDatabaseLocked(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}
