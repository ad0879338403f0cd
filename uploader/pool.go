package uploader

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// pool bounds the number of requests in flight across every session and the
// batch of an engine, and optionally paces them.
type pool struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func newPool(maxInFlight int, requestsPerSecond float64) *pool {
	p := &pool{sem: semaphore.NewWeighted(int64(maxInFlight))}
	if requestsPerSecond > 0 {
		burst := max(1, int(requestsPerSecond))
		p.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return p
}

// run executes fn while holding one slot. Work queued behind a cancelled
// context is never dispatched. A panic in fn is returned as an error.
func (p *pool) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request panicked: %v", r)
		}
	}()
	// Acquire may succeed on an already cancelled context.
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return fn(ctx)
}
