package chat

import (
	"time"
)

// Backoff returns the delay before the reconnect that follows retryCount
// consecutive failed attempts: min(base * 2^retryCount, max).
func Backoff(retryCount int, base, max time.Duration) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	d := base
	for i := 0; i < retryCount; i++ {
		if d >= max {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
