package device

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to the wrapped dispatcher.
type RateLimited struct {
	next    Dispatcher
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with a burst of at least one.
func NewRateLimited(next Dispatcher, rps float64) *RateLimited {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// CallDevice waits for a token, then forwards the call.
func (r *RateLimited) CallDevice(ctx context.Context, id int, cmd string, args ...any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for device %d: %w", id, err)
	}
	return r.next.CallDevice(ctx, id, cmd, args...)
}
