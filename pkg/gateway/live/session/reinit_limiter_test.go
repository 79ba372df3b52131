package session

import (
	"testing"
	"time"
)

func TestReinitLimiter_AllowsBurstThenDenies(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	lim := newReinitLimiter(clock, 3, 2*time.Second)
	for i := 0; i < 3; i++ {
		if !lim.Allow() {
			t.Fatalf("expected allow at i=%d", i)
		}
	}
	if lim.Allow() {
		t.Fatalf("expected deny once burst is spent")
	}
	if got := lim.RetryAfter(); got != 2*time.Second {
		t.Fatalf("RetryAfter()=%v, want 2s", got)
	}
}

func TestReinitLimiter_RefillsOneTokenPerInterval(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	lim := newReinitLimiter(clock, 2, time.Second)
	lim.Allow()
	lim.Allow()

	now = now.Add(500 * time.Millisecond)
	if lim.Allow() {
		t.Fatalf("expected deny before a full interval")
	}
	now = now.Add(600 * time.Millisecond)
	if !lim.Allow() {
		t.Fatalf("expected allow after refill")
	}
	if lim.Allow() {
		t.Fatalf("expected only one token restored")
	}

	now = now.Add(10 * time.Second)
	if !lim.Allow() || !lim.Allow() {
		t.Fatalf("expected full burst after a long idle")
	}
	if lim.Allow() {
		t.Fatalf("tokens must be capped at burst")
	}
}

func TestReinitLimiter_NilIsUnlimited(t *testing.T) {
	lim := newReinitLimiter(nil, 0, time.Second)
	if lim != nil {
		t.Fatalf("expected nil limiter when burst <= 0")
	}
	for i := 0; i < 10; i++ {
		if !lim.Allow() {
			t.Fatalf("nil limiter must always allow")
		}
	}
}
