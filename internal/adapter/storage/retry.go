package storage

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxUpdateRetry = 64
	maxBackoff     = 20 * time.Millisecond
)

// backoff sleeps before retry attempt n, with jitter so racing writers spread out.
func backoff(ctx context.Context, n int) error {
	d := time.Duration(n+1) * time.Millisecond
	if d > maxBackoff {
		d = maxBackoff
	}
	d = d/2 + rand.N(d/2+1)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
