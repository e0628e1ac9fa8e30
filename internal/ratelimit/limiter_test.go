package ratelimit

import (
	"testing"
	"time"
)

// newTestLimiter returns a limiter with a controllable clock and no
// sweep goroutine.
func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	clock := start
	l := &Limiter{
		policies: defaultPolicies,
		windows:  make(map[key][]time.Time),
		now:      func() time.Time { return clock },
		stop:     make(chan struct{}),
	}
	return l, &clock
}

func TestAllow_EleventhThrowRejected(t *testing.T) {
	l, clock := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 10; i++ {
		if !l.Allow("10.0.0.1", ClassThrow) {
			t.Fatalf("throw %d should be admitted", i+1)
		}
		*clock = clock.Add(10 * time.Millisecond)
	}
	if l.Allow("10.0.0.1", ClassThrow) {
		t.Fatalf("11th throw within the window must be rejected")
	}
}

func TestAllow_RejectionsDoNotConsumeBudget(t *testing.T) {
	l, clock := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 10; i++ {
		l.Allow("10.0.0.1", ClassThrow)
	}
	// flood of rejected attempts inside the window
	for i := 0; i < 50; i++ {
		if l.Allow("10.0.0.1", ClassThrow) {
			t.Fatalf("attempt inside full window must be rejected")
		}
	}

	// once the first stamps fall out of the window, admission resumes
	*clock = clock.Add(1100 * time.Millisecond)
	if !l.Allow("10.0.0.1", ClassThrow) {
		t.Fatalf("attempt after window expiry must be admitted")
	}
}

func TestAllow_ActorsAndClassesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 10; i++ {
		l.Allow("10.0.0.1", ClassThrow)
	}
	if l.Allow("10.0.0.1", ClassThrow) {
		t.Fatalf("first actor should be throttled")
	}
	if !l.Allow("10.0.0.2", ClassThrow) {
		t.Fatalf("second actor has its own budget")
	}
	if !l.Allow("10.0.0.1", ClassJoin) {
		t.Fatalf("other classes have their own budget")
	}
}

func TestAllow_CreateAndJoinLimits(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		if !l.Allow("10.0.0.1", ClassCreate) {
			t.Fatalf("create %d should be admitted", i+1)
		}
	}
	if l.Allow("10.0.0.1", ClassCreate) {
		t.Fatalf("6th create within a minute must be rejected")
	}

	for i := 0; i < 20; i++ {
		if !l.Allow("10.0.0.1", ClassJoin) {
			t.Fatalf("join %d should be admitted", i+1)
		}
	}
	if l.Allow("10.0.0.1", ClassJoin) {
		t.Fatalf("21st join within a minute must be rejected")
	}
}

func TestSweep_EvictsIdleActors(t *testing.T) {
	l, clock := newTestLimiter(time.Unix(1000, 0))

	l.Allow("10.0.0.1", ClassThrow)
	l.Allow("10.0.0.2", ClassJoin)
	if len(l.windows) != 2 {
		t.Fatalf("expected two records, got %d", len(l.windows))
	}

	*clock = clock.Add(2 * time.Second)
	l.sweep()
	// throw window (1s) is empty now, join window (1m) still holds one
	if len(l.windows) != 1 {
		t.Fatalf("expected throw record evicted, got %d records", len(l.windows))
	}

	*clock = clock.Add(2 * time.Minute)
	l.sweep()
	if len(l.windows) != 0 {
		t.Fatalf("expected all records evicted, got %d", len(l.windows))
	}
}
