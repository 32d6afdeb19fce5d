package providers

import (
	"context"
	"time"
)

// CounterProvider keeps per-key counters that expire with a fixed window
type CounterProvider interface {
	// Increment adds one to key atomically. The window starts with the first
	// increment; the new count and the time left in the window are returned.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}
