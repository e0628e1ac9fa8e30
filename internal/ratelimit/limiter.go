// Package ratelimit implements sliding-window admission control keyed
// by (actor, action class). The actor is a network-level identity so
// budgets survive reconnects.
package ratelimit

import (
	"sync"
	"time"
)

// Class is an action class with its own window and limit.
type Class string

const (
	ClassThrow  Class = "throw"
	ClassCreate Class = "create"
	ClassJoin   Class = "join"
)

type policy struct {
	window time.Duration
	limit  int
}

// defaultPolicies: scoring is tight, creation and joins are loose.
var defaultPolicies = map[Class]policy{
	ClassThrow:  {window: time.Second, limit: 10},
	ClassCreate: {window: time.Minute, limit: 5},
	ClassJoin:   {window: time.Minute, limit: 20},
}

type key struct {
	actor string
	class Class
}

type Limiter struct {
	mu       sync.Mutex
	policies map[Class]policy
	windows  map[key][]time.Time
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a limiter with the default per-class policies and starts
// the background sweep that evicts idle actor records.
func New(sweepEvery time.Duration) *Limiter {
	l := &Limiter{
		policies: defaultPolicies,
		windows:  make(map[key][]time.Time),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.sweepLoop(sweepEvery)
	return l
}

// Allow admits or rejects one attempt. Rejected attempts are not
// recorded, so hammering a full window does not starve future budget.
func (l *Limiter) Allow(actor string, class Class) bool {
	p, ok := l.policies[class]
	if !ok {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := key{actor: actor, class: class}
	recent := prune(l.windows[k], now.Add(-p.window))
	if len(recent) >= p.limit {
		l.windows[k] = recent
		return false
	}
	l.windows[k] = append(recent, now)
	return true
}

// Close stops the sweep goroutine.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops actor records with no timestamps left inside their
// window, bounding memory when actors go away.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, stamps := range l.windows {
		p := l.policies[k.class]
		recent := prune(stamps, now.Add(-p.window))
		if len(recent) == 0 {
			delete(l.windows, k)
		} else {
			l.windows[k] = recent
		}
	}
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	keep := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	return keep
}
