package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	busyMaxRetries = 3
	busyBaseDelay  = 50 * time.Millisecond
)

// isConflictError reports SQLite concurrency errors (SQLITE_BUSY or
// "database is locked") that warrant a retry.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry runs fn, retrying conflict errors with exponential backoff:
// 50ms, 100ms.
func withBusyRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < busyMaxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isConflictError(err) || i == busyMaxRetries-1 {
			break
		}

		delay := busyBaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
