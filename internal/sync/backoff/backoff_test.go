package backoff

import (
	"context"
	"testing"
	"time"
)

func stubController(initial, max time.Duration, maxAttempts int) (*Controller, *[]time.Duration) {
	c := New(initial, max, maxAttempts)
	slept := &[]time.Duration{}
	c.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return c, slept
}

func TestNextDelayDoublesAndCaps(t *testing.T) {
	c, _ := stubController(500*time.Millisecond, 8*time.Second, 10)

	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, expected := range want {
		if got := c.NextDelay(); got != expected {
			t.Fatalf("attempt %d: expected %s, got %s", i, expected, got)
		}
		if ok, err := c.WaitAfterThrottle(context.Background(), 0); !ok || err != nil {
			t.Fatalf("attempt %d: wait failed: %v %v", i, ok, err)
		}
	}
}

func TestWaitAfterThrottleHonorsRetryAfterMinimum(t *testing.T) {
	c, slept := stubController(500*time.Millisecond, 8*time.Second, 5)

	if ok, err := c.WaitAfterThrottle(context.Background(), 3*time.Second); !ok || err != nil {
		t.Fatalf("wait failed: %v %v", ok, err)
	}
	if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
		t.Fatalf("expected 3s sleep, got %v", *slept)
	}
}

func TestExhaustedAfterMaxAttempts(t *testing.T) {
	c, _ := stubController(time.Millisecond, time.Millisecond, 3)

	for i := 0; i < 3; i++ {
		if c.Exhausted() {
			t.Fatalf("exhausted too early at attempt %d", i)
		}
		if ok, err := c.WaitAfterThrottle(context.Background(), 0); !ok || err != nil {
			t.Fatalf("wait %d failed: %v %v", i, ok, err)
		}
	}
	if !c.Exhausted() {
		t.Fatal("expected exhausted after 3 attempts")
	}
	if ok, _ := c.WaitAfterThrottle(context.Background(), 0); ok {
		t.Fatal("expected refusal once exhausted")
	}
	if c.Attempts() != 3 {
		t.Fatalf("expected 3 attempts, got %d", c.Attempts())
	}
}

func TestCooperativeWaitOnlyWhenBucketFull(t *testing.T) {
	c, slept := stubController(time.Millisecond, time.Millisecond, 5)

	// Room for the next call: no sleep, no event.
	if err := c.CooperativeWait(context.Background(), 30, 40, 2, 1); err != nil {
		t.Fatalf("cooperative wait: %v", err)
	}
	if len(*slept) != 0 || c.ThrottleEvents() != 0 {
		t.Fatalf("expected no sleep, got %v events=%d", *slept, c.ThrottleEvents())
	}

	// Bucket full: overage of 1 at 2/sec restores in 500ms.
	if err := c.CooperativeWait(context.Background(), 40, 40, 2, 1); err != nil {
		t.Fatalf("cooperative wait: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != 500*time.Millisecond {
		t.Fatalf("expected 500ms sleep, got %v", *slept)
	}
	if c.ThrottleEvents() != 1 {
		t.Fatalf("expected 1 throttle event, got %d", c.ThrottleEvents())
	}
	if c.Attempts() != 0 {
		t.Fatal("cooperative waits must not consume hard attempts")
	}
}

func TestCooperativeWaitPct(t *testing.T) {
	c, slept := stubController(time.Millisecond, time.Millisecond, 5)

	if err := c.CooperativeWaitPct(context.Background(), 50, 85, 0.35); err != nil {
		t.Fatalf("cooperative wait pct: %v", err)
	}
	if len(*slept) != 0 {
		t.Fatalf("expected no sleep under threshold, got %v", *slept)
	}

	if err := c.CooperativeWaitPct(context.Background(), 92, 85, 0.35); err != nil {
		t.Fatalf("cooperative wait pct: %v", err)
	}
	if len(*slept) != 1 {
		t.Fatalf("expected one sleep, got %v", *slept)
	}
	wantSeconds := (92.0 - 85.0 + 1) / 0.35
	want := time.Duration(wantSeconds * float64(time.Second))
	if (*slept)[0] != want {
		t.Fatalf("expected %s sleep, got %s", want, (*slept)[0])
	}
}

func TestWaitAfterThrottleCancel(t *testing.T) {
	c := New(time.Hour, time.Hour, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.WaitAfterThrottle(ctx, 0); err == nil {
		t.Fatal("expected context error")
	}
}
