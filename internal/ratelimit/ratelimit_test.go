package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, perMinute int) *Limiter {
	t.Helper()
	l := New(perMinute)
	require.NotNil(t, l)
	l.random = func() float64 { return 1 }
	return l
}

func TestBucketAdmitsCapacityThenRefills(t *testing.T) {
	l := newTestLimiter(t, 5)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 0; i < 5; i++ {
		assert.True(t, l.AllowAt("10.0.0.1", start), "request %d", i+1)
	}
	assert.False(t, l.AllowAt("10.0.0.1", start))
	assert.False(t, l.AllowAt("10.0.0.1", start.Add(6*time.Second)))

	assert.True(t, l.AllowAt("10.0.0.1", start.Add(12*time.Second)))
	assert.False(t, l.AllowAt("10.0.0.1", start.Add(12*time.Second)))
}

func TestBucketNeverExceedsCapacity(t *testing.T) {
	l := newTestLimiter(t, 3)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.True(t, l.AllowAt("k", start))
	later := start.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, l.AllowAt("k", later))
	}
	assert.False(t, l.AllowAt("k", later))
}

func TestKeysAreIndependent(t *testing.T) {
	l := newTestLimiter(t, 1)
	now := time.Now()

	assert.True(t, l.AllowAt("a", now))
	assert.False(t, l.AllowAt("a", now))
	assert.True(t, l.AllowAt("b", now))
	assert.Equal(t, 2, l.Len())
}

func TestSweepEvictsIdleBuckets(t *testing.T) {
	l := newTestLimiter(t, 10)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.True(t, l.AllowAt("idle", start))
	require.True(t, l.AllowAt("active", start.Add(4*time.Minute)))

	evicted := l.Sweep(start.Add(5*time.Minute + time.Second))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, l.Len())
}

func TestProbabilisticSweepRunsOnAdmittedRequests(t *testing.T) {
	l := newTestLimiter(t, 10)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.True(t, l.AllowAt("old", start))
	require.True(t, l.AllowAt("new", start.Add(10*time.Minute)))
	assert.Equal(t, 2, l.Len())

	l.random = func() float64 { return 0 }
	require.True(t, l.AllowAt("new", start.Add(10*time.Minute)))
	assert.Equal(t, 1, l.Len())
}

func TestNilLimiterAdmitsEverything(t *testing.T) {
	var l *Limiter
	assert.Nil(t, New(0))
	assert.True(t, l.Allow("anyone"))
	assert.Zero(t, l.Len())
	assert.Zero(t, l.Sweep(time.Now()))
}

func TestConcurrentAllow(t *testing.T) {
	l := newTestLimiter(t, 100)
	now := time.Now()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if l.AllowAt("shared", now) {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}
