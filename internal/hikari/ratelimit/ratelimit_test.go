package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(limit, window)
	l.now = clk.now
	return l, clk
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	const limit = 5
	l, _ := newTestLimiter(limit, time.Minute)

	for i := 0; i < limit; i++ {
		if !l.Allow("42") {
			t.Fatalf("Allow returned false on call %d/%d", i+1, limit)
		}
	}
	if l.Allow("42") {
		t.Error("Allow returned true after the burst was exhausted")
	}
	if got := l.Remaining("42"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestLimiter_IndependentPerUser(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.Allow("alice")
	if l.Allow("alice") {
		t.Error("alice should be rate-limited")
	}
	if !l.Allow("bob") {
		t.Error("bob should have an independent quota")
	}
}

func TestLimiter_Refills(t *testing.T) {
	l, clk := newTestLimiter(2, time.Minute)

	l.Allow("u")
	l.Allow("u")
	if l.Allow("u") {
		t.Fatal("expected limit to be hit")
	}

	// One token comes back every window/limit.
	clk.advance(31 * time.Second)
	if !l.Allow("u") {
		t.Error("expected one call to be allowed after refill")
	}
	if l.Allow("u") {
		t.Error("only one token should have been refilled")
	}
}

func TestLimiter_RemainingUnknownUser(t *testing.T) {
	l, _ := newTestLimiter(7, time.Minute)
	if got := l.Remaining("nobody"); got != 7 {
		t.Errorf("Remaining = %d, want 7", got)
	}
}

func TestLimiter_Prune(t *testing.T) {
	l, clk := newTestLimiter(3, time.Minute)
	l.Allow("old")
	clk.advance(time.Hour)
	l.Allow("fresh")

	if n := l.Prune(10 * time.Minute); n != 1 {
		t.Fatalf("Prune removed %d buckets, want 1", n)
	}
	if got := l.Remaining("fresh"); got != 2 {
		t.Errorf("Remaining(fresh) = %d, want 2", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, 0)
	if l.limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", l.limit, DefaultLimit)
	}
}
