// Package ratelimit admits requests per client key with lazily refilled
// token buckets.
package ratelimit

import (
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultSweepProbability = 0.01
	defaultIdleAfter        = 5 * time.Minute
)

// Limiter keeps one token bucket per client key. Each bucket holds up to
// perMinute tokens and refills at perMinute/60 tokens per second.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	sweepProb float64

	now    func() time.Time
	random func() float64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns a limiter for perMinute requests per key, or nil when
// perMinute is not positive. A nil limiter admits everything.
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	return &Limiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     perMinute,
		idleAfter: defaultIdleAfter,
		sweepProb: defaultSweepProbability,
		now:       time.Now,
		random:    rand.Float64,
	}
}

// Allow reports whether one request for key is admitted now.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	return l.AllowAt(key, l.now())
}

// AllowAt reports whether one request for key is admitted at now.
func (l *Limiter) AllowAt(key string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	if !b.limiter.AllowN(now, 1) {
		return false
	}
	b.lastSeen = now

	if l.random() < l.sweepProb {
		l.sweepLocked(now)
	}
	return true
}

// Sweep evicts buckets idle for longer than the idle threshold.
func (l *Limiter) Sweep(now time.Time) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(now)
}

func (l *Limiter) sweepLocked(now time.Time) int {
	evicted := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleAfter {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked client keys.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
