package repositories

import (
	"context"
	"time"
)

const defaultQueryTimeout = 5 * time.Second

// queryContext bounds a single store call.
func queryContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
