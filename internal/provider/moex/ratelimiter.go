package moex

import (
	"context"
	"time"
)

// DefaultAPIDelay keeps us under the ISS ceiling of 50 requests per minute.
const DefaultAPIDelay = 1200 * time.Millisecond

// RateLimiter spaces consecutive ISS calls at least minDelay apart, measured from
// the moment the previous call returned. One limiter is shared by every endpoint of a
// Client; a call is admitted by Wait and finished by Done, and only one call is in
// flight at a time.
type RateLimiter struct {
	token    chan struct{}
	last     time.Time // guarded by token
	minDelay time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter whose clock starts now. A zero delay disables it.
func NewRateLimiter(minDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		token:    make(chan struct{}, 1),
		last:     time.Now(),
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until no other call is in flight and minDelay has passed since the
// previous call returned (or since construction). Every successful Wait must be
// paired with Done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.minDelay <= 0 {
		return nil
	}
	select {
	case r.token <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if elapsed := r.now().Sub(r.last); elapsed < r.minDelay {
		if err := r.sleep(ctx, r.minDelay-elapsed); err != nil {
			<-r.token
			return err
		}
	}
	return nil
}

// Done records that the admitted call has returned and lets the next one in.
func (r *RateLimiter) Done() {
	if r == nil || r.minDelay <= 0 {
		return
	}
	r.last = r.now()
	<-r.token
}

// MinDelay returns the configured spacing.
func (r *RateLimiter) MinDelay() time.Duration {
	if r == nil {
		return 0
	}
	return r.minDelay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
