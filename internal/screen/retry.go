package screen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moex-bonds/internal/provider/moex"
)

// Retry defaults for per-security stages.
const (
	DefaultAttempts = 5
	DefaultBackoff  = 60 * time.Second
)

// ErrRetriesExhausted wraps the last failure of a security that ran out of attempts.
var ErrRetriesExhausted = errors.New("retries exhausted")

// retryState is the attempt budget of one security, shared by all of its stages.
type retryState struct {
	attempt int
	max     int
	backoff time.Duration
}

func newRetryState(max int, backoff time.Duration) *retryState {
	if max < 1 {
		max = 1
	}
	return &retryState{max: max, backoff: backoff}
}

// fail records a failed attempt and reports whether another one is allowed.
func (r *retryState) fail() bool {
	r.attempt++
	return r.attempt < r.max
}

// exhausted reports whether the budget is used up.
func (r *retryState) exhausted() bool {
	return r.attempt >= r.max
}

// run calls fn until it succeeds, returns a data-absent error, or the budget is used up.
// Every transport or unexpected failure bumps the run error counter and sleeps the backoff.
func (s *Screener) run(ctx context.Context, st *runState, rs *retryState, secID, stage string, fn func() error) error {
	for {
		if rs.exhausted() {
			return fmt.Errorf("%s: %w", stage, ErrRetriesExhausted)
		}
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if moex.IsDataAbsent(err) {
			return err
		}
		st.addError()
		kind := "unexpected"
		if moex.IsTransport(err) {
			kind = "transport"
		}
		if !rs.fail() {
			s.logger.Error("giving up on security", "secid", secID, "stage", stage, "attempt", rs.attempt, "kind", kind, "error", err)
			return fmt.Errorf("%s: %w: %w", stage, ErrRetriesExhausted, err)
		}
		s.logger.Warn("stage failed, will retry", "secid", secID, "stage", stage, "attempt", rs.attempt, "of", rs.max, "kind", kind, "backoff", rs.backoff, "error", err)
		if err := s.sleep(ctx, rs.backoff); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
