package straincrawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// throttle enforces a fixed pause between successive requests. The first Wait returns immediately.
type throttle struct {
	limiter *rate.Limiter
}

func newThrottle(delay time.Duration) *throttle {
	if delay <= 0 {
		return &throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &throttle{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request may start or ctx is done.
func (t *throttle) Wait(ctx context.Context) error {
	if t == nil {
		return ctx.Err()
	}
	return t.limiter.Wait(ctx)
}
