// Package backoff holds the per-run throttle state for platform fetch loops.
package backoff

import (
	"context"
	"time"
)

const (
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 8 * time.Second
	defaultMaxAttempts  = 5
)

// Controller tracks hard rate-limit responses within one run. Delays grow
// exponentially from the initial value and cap at the maximum; once the
// attempt ceiling is reached the run must fail with a rate-limit-exhausted
// error.
type Controller struct {
	initial     time.Duration
	max         time.Duration
	maxAttempts int

	attempts       int
	throttleEvents int
	sleep          func(context.Context, time.Duration) error
}

// New builds a controller; non-positive tuning values fall back to defaults.
func New(initial, max time.Duration, maxAttempts int) *Controller {
	if initial <= 0 {
		initial = defaultInitialDelay
	}
	if max <= 0 {
		max = defaultMaxDelay
	}
	if max < initial {
		max = initial
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Controller{
		initial:     initial,
		max:         max,
		maxAttempts: maxAttempts,
		sleep:       sleepCtx,
	}
}

// Attempts returns how many hard throttle responses this run has absorbed.
func (c *Controller) Attempts() int {
	return c.attempts
}

// ThrottleEvents counts every throttle signal, cooperative waits included.
func (c *Controller) ThrottleEvents() int {
	return c.throttleEvents
}

// Exhausted reports whether the attempt ceiling has been reached.
func (c *Controller) Exhausted() bool {
	return c.attempts >= c.maxAttempts
}

// NextDelay returns the delay for the current attempt without consuming it.
func (c *Controller) NextDelay() time.Duration {
	delay := c.initial
	for i := 0; i < c.attempts; i++ {
		delay *= 2
		if delay >= c.max {
			return c.max
		}
	}
	return delay
}

// WaitAfterThrottle records a hard throttle response and sleeps the current
// backoff delay. A platform-provided minimum (Retry-After) extends the sleep
// when it exceeds the computed delay. Returns false when the attempt ceiling
// was already reached and the run must abort.
func (c *Controller) WaitAfterThrottle(ctx context.Context, minimum time.Duration) (bool, error) {
	if c.Exhausted() {
		return false, nil
	}
	delay := c.NextDelay()
	if minimum > delay {
		delay = minimum
	}
	c.attempts++
	c.throttleEvents++
	if err := c.sleep(ctx, delay); err != nil {
		return false, err
	}
	return true, nil
}

// CooperativeWait sleeps long enough for a leaky-bucket style limit to
// restore room for the next call. It does not count against the hard attempt
// ceiling. used/capacity come from the platform's usage header; restorePerSec
// is the bucket's drain rate; nextCost is the bucket cost of the upcoming
// call.
func (c *Controller) CooperativeWait(ctx context.Context, used, capacity int, restorePerSec float64, nextCost int) error {
	if capacity <= 0 || restorePerSec <= 0 {
		return nil
	}
	if nextCost <= 0 {
		nextCost = 1
	}
	overage := used + nextCost - capacity
	if overage <= 0 {
		return nil
	}
	c.throttleEvents++
	wait := time.Duration(float64(overage) / restorePerSec * float64(time.Second))
	return c.sleep(ctx, wait)
}

// CooperativeWaitPct is the percent-utilization variant used by ad-account
// usage headers: when utilization is at or past the threshold, sleep long
// enough for the stated restore rate to bring it back under.
func (c *Controller) CooperativeWaitPct(ctx context.Context, utilPct, thresholdPct, restorePctPerSec float64) error {
	if thresholdPct <= 0 || restorePctPerSec <= 0 {
		return nil
	}
	if utilPct < thresholdPct {
		return nil
	}
	c.throttleEvents++
	wait := time.Duration((utilPct - thresholdPct + 1) / restorePctPerSec * float64(time.Second))
	return c.sleep(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
