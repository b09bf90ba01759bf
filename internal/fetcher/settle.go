package fetcher

import (
	"context"
	"time"
)

// Settle waits d for dynamic content to render, returning early with the
// context error if ctx is done first.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
